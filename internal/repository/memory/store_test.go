package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CellsAndRows(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.Seed("Inventory", []string{"id", "item"}, []string{"ITEM-1", "Lamp"})

	require.NoError(t, s.AppendRow(ctx, "Inventory", []interface{}{"ITEM-2", "Jug", 3}))
	require.NoError(t, s.WriteCell(ctx, "Inventory", 2, 4, 9))

	v, err := s.ReadCell(ctx, "Inventory", 2, 4)
	require.NoError(t, err)
	assert.Equal(t, "9", v)

	v, err = s.ReadCell(ctx, "Inventory", 10, 10)
	require.NoError(t, err)
	assert.Empty(t, v)

	rows, err := s.ReadRows(ctx, "Inventory")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "item"}, {"ITEM-1", "Lamp", "", "9"}, {"ITEM-2", "Jug", "3"}}, rows)

	rows[1][0] = "mutated"
	assert.Equal(t, "ITEM-1", s.Rows("Inventory")[1][0])
}

func TestStore_FindRowAndColumnValues(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.Seed("Inventory", []string{"id", "item"}, []string{"ITEM-1", "Lamp"}, []string{"ITEM-2", "Lamp"}, []string{"ITEM-3"})

	row, err := s.FindRow(ctx, "Inventory", 2, "Lamp")
	require.NoError(t, err)
	assert.Equal(t, 2, row)

	row, err = s.FindRow(ctx, "Inventory", 1, " ITEM-3")
	require.NoError(t, err)
	assert.Equal(t, 4, row)

	row, err = s.FindRow(ctx, "Inventory", 2, "Kettle")
	require.NoError(t, err)
	assert.Zero(t, row)

	values, err := s.ColumnValues(ctx, "Inventory", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"item", "Lamp", "Lamp"}, values)

	_, err = s.ColumnValues(ctx, "Inventory", 0)
	assert.Error(t, err)
}

func TestStore_FailAfter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.FailAfter(1)

	require.NoError(t, s.WriteCell(ctx, "Sheet", 1, 1, "a"))
	assert.ErrorIs(t, s.WriteCell(ctx, "Sheet", 1, 2, "b"), ErrInjected)
	assert.ErrorIs(t, s.AppendRow(ctx, "Sheet", []interface{}{"c"}), ErrInjected)

	s.FailAfter(-1)
	require.NoError(t, s.AppendRow(ctx, "Sheet", []interface{}{"c"}))
	assert.Equal(t, [][]string{{"a"}, {"c"}}, s.Rows("Sheet"))
}
