package intake

import (
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

var fixedNow = func() time.Time { return time.Date(2025, time.May, 4, 9, 30, 0, 0, time.UTC) }

func newTestNormalizer(vocab *models.Vocabulary) *Normalizer {
	return NewNormalizer(vocab, 80, fixedNow, nil)
}

func TestNormalize_WellFormedRecord(t *testing.T) {
	// Arrange
	n := newTestNormalizer(nil)

	// Act
	entries := n.Normalize(ParseExtraction(`{"item": "Vintage Camera", "price": "45.5", "total_qty": "2"}`))

	// Assert
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "Vintage Camera", e.Item)
	assert.True(t, e.Price.Equal(decimal.RequireFromString("45.5")))
	assert.Equal(t, 2, e.TotalQty)
	assert.Equal(t, 2, e.RemainingQty)
	assert.Empty(t, e.Errors)
	assert.True(t, e.Valid())
	assert.Equal(t, "04/05/2025", e.Date)
	assert.Equal(t, models.DefaultStorageLocation, e.StorageLocation)
	assert.Equal(t, models.DefaultBoxLabel, e.BoxLabel)
	assert.Equal(t, models.DefaultPlaceBought, e.PlaceBought)
}

func TestNormalize_BrokenRecordCollectsEveryTag(t *testing.T) {
	n := newTestNormalizer(nil)

	entries := n.Normalize(ParseExtraction(`{"price": "abc", "total_qty": -3}`))

	require.Len(t, entries, 1)
	e := entries[0]
	assert.ElementsMatch(t, []models.ErrorTag{models.ErrMissingItem, models.ErrInvalidPrice, models.ErrInvalidQuantity}, e.Errors)
	assert.Equal(t, models.UnknownItem, e.Item)
	assert.True(t, e.Price.IsZero())
	assert.Equal(t, 1, e.TotalQty)
	assert.Equal(t, 1, e.RemainingQty)
	assert.False(t, e.Valid())
}

func TestNormalize_QuantityRules(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantTotal     int
		wantRemaining int
		wantTag       bool
	}{
		{name: "absent quantity defaults silently", payload: `{"item":"Lamp","price":1}`, wantTotal: 1, wantRemaining: 1},
		{name: "null quantity defaults silently", payload: `{"item":"Lamp","price":1,"total_qty":null}`, wantTotal: 1, wantRemaining: 1},
		{name: "zero is reported", payload: `{"item":"Lamp","price":1,"total_qty":0}`, wantTotal: 1, wantRemaining: 1, wantTag: true},
		{name: "text is reported", payload: `{"item":"Lamp","price":1,"total_qty":"a few"}`, wantTotal: 1, wantRemaining: 1, wantTag: true},
		{name: "fraction is reported", payload: `{"item":"Lamp","price":1,"total_qty":2.5}`, wantTotal: 1, wantRemaining: 1, wantTag: true},
		{name: "integral float accepted", payload: `{"item":"Lamp","price":1,"total_qty":3.0}`, wantTotal: 3, wantRemaining: 3},
		{name: "remaining kept when in range", payload: `{"item":"Lamp","price":1,"total_qty":5,"remaining_qty":"2"}`, wantTotal: 5, wantRemaining: 2},
		{name: "remaining clamped to total", payload: `{"item":"Lamp","price":1,"total_qty":5,"remaining_qty":9}`, wantTotal: 5, wantRemaining: 5},
		{name: "negative remaining clamped to zero", payload: `{"item":"Lamp","price":1,"total_qty":5,"remaining_qty":-1}`, wantTotal: 5, wantRemaining: 0},
		{name: "garbage remaining falls back to total", payload: `{"item":"Lamp","price":1,"total_qty":4,"remaining_qty":"lots"}`, wantTotal: 4, wantRemaining: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := newTestNormalizer(nil).Normalize(ParseExtraction(tt.payload))

			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantTotal, entries[0].TotalQty)
			assert.Equal(t, tt.wantRemaining, entries[0].RemainingQty)
			assert.Equal(t, tt.wantTag, entries[0].HasError(models.ErrInvalidQuantity))
		})
	}
}

func TestNormalize_PriceRules(t *testing.T) {
	tests := []struct {
		payload string
		want    string
		valid   bool
	}{
		{payload: `{"item":"Jug","price":12}`, want: "12", valid: true},
		{payload: `{"item":"Jug","price":"£7.25"}`, want: "7.25", valid: true},
		{payload: `{"item":"Jug","price":"-4"}`, want: "0", valid: false},
		{payload: `{"item":"Jug"}`, want: "0", valid: false},
		{payload: `{"item":"Jug","price":{"amount":3}}`, want: "0", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			entries := newTestNormalizer(nil).Normalize(ParseExtraction(tt.payload))

			require.Len(t, entries, 1)
			assert.True(t, entries[0].Price.Equal(decimal.RequireFromString(tt.want)), "got %s", entries[0].Price)
			assert.Equal(t, !tt.valid, entries[0].HasError(models.ErrInvalidPrice))
		})
	}
}

func TestNormalize_ResolvesCanonicalVocabulary(t *testing.T) {
	vocab := &models.Vocabulary{
		Locations: []string{"Garage", "Attic"},
		BoxLabels: []string{"Box A1", "Box B2"},
		Sources:   []string{"Car Boot Sale", "eBay"},
	}
	payload := `{"item":"Tin Toy","price":3,"storage_location":"garage","box_label":"box b2","place_bought":"car boot sail","catalogue_number":" TT-9 "}`

	entries := newTestNormalizer(vocab).Normalize(ParseExtraction(payload))

	require.Len(t, entries, 1)
	assert.Equal(t, "Garage", entries[0].StorageLocation)
	assert.Equal(t, "Box B2", entries[0].BoxLabel)
	assert.Equal(t, "Car Boot Sale", entries[0].PlaceBought)
	assert.Equal(t, "TT-9", entries[0].CatalogueNumber)
}

func TestNormalize_NullsBecomeSentinels(t *testing.T) {
	vocab := &models.Vocabulary{Locations: []string{"Garage"}}
	payload := `{"item":"Tin Toy","price":3,"storage_location":null,"box_label":"","place_bought":null,"date":""}`

	entries := newTestNormalizer(vocab).Normalize(ParseExtraction(payload))

	require.Len(t, entries, 1)
	assert.Equal(t, models.DefaultStorageLocation, entries[0].StorageLocation)
	assert.Equal(t, models.DefaultBoxLabel, entries[0].BoxLabel)
	assert.Equal(t, models.DefaultPlaceBought, entries[0].PlaceBought)
	assert.Equal(t, "04/05/2025", entries[0].Date)
}

func TestNormalize_UnparseablePayload(t *testing.T) {
	raw := "Sorry, I could not find any items."

	entries := newTestNormalizer(nil).Normalize(ParseExtraction(raw))

	require.Len(t, entries, 1)
	assert.Equal(t, []models.ErrorTag{models.ErrUnparseable}, entries[0].Errors)
	assert.Equal(t, raw, entries[0].RawPayload)
	assert.Equal(t, models.UnknownItem, entries[0].Item)
}

func TestNormalize_OneOutputPerInput(t *testing.T) {
	payload := "```json\n[{\"item\":\"A\",\"price\":1},\"oops\",{\"price\":\"x\"},42]\n```"

	records := slices.Collect(ParseExtraction(payload))
	entries := newTestNormalizer(nil).Normalize(ParseExtraction(payload))

	require.Len(t, entries, len(records))
	require.Len(t, entries, 4)
	assert.True(t, entries[0].Valid())
	assert.True(t, entries[1].HasError(models.ErrUnparseable))
	assert.Equal(t, `"oops"`, entries[1].RawPayload)
	assert.True(t, entries[2].HasError(models.ErrMissingItem))
	assert.True(t, entries[3].HasError(models.ErrUnparseable))
}

func TestNormalize_InvariantHoldsForValidEntries(t *testing.T) {
	payload := `[{"item":"A","price":1,"total_qty":3,"remaining_qty":7},{"item":"B","price":2,"total_qty":"4","remaining_qty":"-2"},{"item":"C","price":0}]`

	for _, e := range newTestNormalizer(nil).Normalize(ParseExtraction(payload)) {
		if !e.Valid() {
			continue
		}
		assert.GreaterOrEqual(t, e.TotalQty, 1)
		assert.GreaterOrEqual(t, e.RemainingQty, 0)
		assert.LessOrEqual(t, e.RemainingQty, e.TotalQty)
	}
}
