package vocabulary

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository/memory"
)

func TestIndex_StartsEmpty(t *testing.T) {
	idx := NewIndex(memory.NewStore(), "Maintenance", nil)

	assert.Same(t, models.EmptyVocabulary, idx.Snapshot())
}

func TestIndex_Refresh(t *testing.T) {
	// Arrange
	store := memory.NewStore()
	store.Seed("Maintenance",
		[]string{"location", "box", "notes", "source"},
		[]string{"Garage", "Box A1", "x", "Car Boot Sale"},
		[]string{"Attic", "Box B2", "", " eBay "},
		[]string{"", "Box A1", "", ""},
		[]string{"Garage", "", "", "Charity Shop"},
	)
	idx := NewIndex(store, "Maintenance", nil)

	// Act
	vocab, err := idx.Refresh(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"Garage", "Attic"}, vocab.Locations)
	assert.Equal(t, []string{"Box A1", "Box B2"}, vocab.BoxLabels)
	assert.Equal(t, []string{"Car Boot Sale", "eBay", "Charity Shop"}, vocab.Sources)
	assert.Same(t, vocab, idx.Snapshot())
}

func TestIndex_RefreshFailureKeepsSnapshot(t *testing.T) {
	store := memory.NewStore()
	store.Seed("Maintenance", []string{"location"}, []string{"Garage"})
	idx := NewIndex(&failingColumns{Store: store}, "Maintenance", nil)
	first, err := idx.Refresh(context.Background())
	require.NoError(t, err)

	idx.store = &failingColumns{Store: store, fail: true}
	kept, err := idx.Refresh(context.Background())

	require.Error(t, err)
	assert.Same(t, first, kept)
	assert.Same(t, first, idx.Snapshot())
}

func TestIndex_OldSnapshotIsUnchangedByRefresh(t *testing.T) {
	store := memory.NewStore()
	store.Seed("Maintenance", []string{"location"}, []string{"Garage"})
	idx := NewIndex(store, "Maintenance", nil)
	_, err := idx.Refresh(context.Background())
	require.NoError(t, err)
	held := idx.Snapshot()

	store.Seed("Maintenance", []string{"location"}, []string{"Loft"})
	_, err = idx.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Garage"}, held.Locations)
	assert.Equal(t, []string{"Loft"}, idx.Snapshot().Locations)
}

type failingColumns struct {
	*memory.Store
	fail bool
}

func (f *failingColumns) ColumnValues(ctx context.Context, sheet string, col int) ([]string, error) {
	if f.fail {
		return nil, memory.ErrInjected
	}
	return f.Store.ColumnValues(ctx, sheet, col)
}
