// Package intake turns the loosely structured output of the extraction service into
// validated inventory entries.
package intake

import (
	"encoding/json"
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/matching"
)

// Recognized extraction keys.
const (
	KeyItem            = "item"
	KeyCatalogueNumber = "catalogue_number"
	KeyPrice           = "price"
	KeyDate            = "date"
	KeyStorageLocation = "storage_location"
	KeyBoxLabel        = "box_label"
	KeyTotalQty        = "total_qty"
	KeyRemainingQty    = "remaining_qty"
	KeyPlaceBought     = "place_bought"
)

// Normalizer validates raw records against one vocabulary snapshot.
type Normalizer struct {
	vocab     *models.Vocabulary
	threshold int
	now       func() time.Time
	logger    *zap.Logger
}

// NewNormalizer binds a normalizer to the vocabulary snapshot of the current request.
func NewNormalizer(vocab *models.Vocabulary, threshold int, now func() time.Time, logger *zap.Logger) *Normalizer {
	if vocab == nil {
		vocab = models.EmptyVocabulary
	}
	if threshold <= 0 {
		threshold = matching.DefaultThreshold
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{vocab: vocab, threshold: threshold, now: now, logger: logger}
}

// Normalize converts every raw record into exactly one entry, preserving order.
// A malformed record produces an entry carrying error tags; it never stops the batch.
func (n *Normalizer) Normalize(records iter.Seq[RawRecord]) []models.InventoryEntry {
	entries := []models.InventoryEntry{}
	for rec := range records {
		entries = append(entries, n.NormalizeRecord(rec))
	}
	return entries
}

// NormalizeRecord applies the field rules to a single record.
func (n *Normalizer) NormalizeRecord(rec RawRecord) models.InventoryEntry {
	if rec.Unparseable() {
		entry := models.InventoryEntry{
			Item:            models.UnknownItem,
			Price:           decimal.Zero,
			TotalQty:        1,
			RemainingQty:    1,
			Date:            n.today(),
			StorageLocation: models.DefaultStorageLocation,
			BoxLabel:        models.DefaultBoxLabel,
			PlaceBought:     models.DefaultPlaceBought,
			RawPayload:      rec.Payload,
		}
		entry.AddError(models.ErrUnparseable)
		return entry
	}

	f := rec.Fields
	entry := models.InventoryEntry{Errors: []models.ErrorTag{}}

	entry.Item = text(f[KeyItem])
	if entry.Item == "" {
		entry.AddError(models.ErrMissingItem)
		entry.Item = models.UnknownItem
	}

	price, ok := coercePrice(f[KeyPrice])
	if !ok {
		entry.AddError(models.ErrInvalidPrice)
		price = decimal.Zero
	}
	entry.Price = price

	total, supplied, ok := coerceQuantity(f[KeyTotalQty])
	if !ok || total <= 0 {
		// A missing quantity falls back to the ordinary default of one lot unit;
		// only a supplied but unusable value is worth reporting.
		if supplied {
			entry.AddError(models.ErrInvalidQuantity)
		}
		total = 1
	}
	entry.TotalQty = total

	entry.RemainingQty = total
	if remaining, supplied, ok := coerceQuantity(f[KeyRemainingQty]); supplied && ok {
		clamped := min(max(remaining, 0), total)
		if clamped != remaining {
			n.logger.Debug("remaining_qty clamped into lot bounds",
				zap.Int("supplied", remaining), zap.Int("total_qty", total))
		}
		entry.RemainingQty = clamped
	}

	entry.Date = text(f[KeyDate])
	if entry.Date == "" {
		entry.Date = n.today()
	}

	entry.CatalogueNumber = text(f[KeyCatalogueNumber])
	entry.StorageLocation = n.canonical(text(f[KeyStorageLocation]), n.vocab.Locations, models.DefaultStorageLocation)
	entry.BoxLabel = n.canonical(text(f[KeyBoxLabel]), n.vocab.BoxLabels, models.DefaultBoxLabel)
	entry.PlaceBought = n.canonical(text(f[KeyPlaceBought]), n.vocab.Sources, models.DefaultPlaceBought)

	return entry
}

func (n *Normalizer) canonical(value string, vocabulary []string, fallback string) string {
	if value == "" {
		return fallback
	}
	return matching.Resolve(value, vocabulary, n.threshold)
}

func (n *Normalizer) today() string {
	return n.now().Format(models.DateLayout)
}

// text renders a scalar JSON value as trimmed text; null and containers become "".
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool, float64, int:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// coercePrice accepts numbers and numeric strings, optionally prefixed with a currency
// symbol. Negative amounts are rejected.
func coercePrice(v any) (decimal.Decimal, bool) {
	raw := text(v)
	if raw == "" {
		return decimal.Zero, false
	}
	raw = strings.TrimSpace(strings.TrimLeft(raw, "£$€"))
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// coerceQuantity parses an integral quantity. supplied is false when the value is
// absent, null or blank.
func coerceQuantity(v any) (qty int, supplied bool, ok bool) {
	raw := text(v)
	if raw == "" {
		return 0, false, false
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i, true, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, true, false
	}
	return int(f), true, true
}
