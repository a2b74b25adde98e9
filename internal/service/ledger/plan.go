package ledger

import (
	"context"
	"fmt"
)

// CellWrite is one independent cell update on an inventory row.
type CellWrite struct {
	Row   int
	Col   int
	Value interface{}
}

func (w CellWrite) String() string {
	return fmt.Sprintf("row %d %s=%v", w.Row, ColumnName(w.Col), w.Value)
}

// WritePlan is the ordered list of cell writes realizing one mutation. The store
// cannot apply it atomically, so plans are ordered so that every prefix leaves
// remaining_qty <= total_qty on the row.
type WritePlan []CellWrite

// Commit applies the plan in order and stops at the first rejected write. The
// returned error reports how many writes had already landed.
func (l *Ledger) Commit(ctx context.Context, op string, plan WritePlan) error {
	for i, w := range plan {
		if err := l.store.WriteCell(ctx, l.sheets.Inventory, w.Row, w.Col, w.Value); err != nil {
			return &StoreWriteError{Op: op, Applied: i, Err: err}
		}
	}
	return nil
}

// quantityWrites orders the total/remaining writes moving a row from (oldTotal,
// oldRemaining) to (newTotal, newRemaining). When remaining shrinks it is written
// first; otherwise total grows first so remaining never overtakes it.
func quantityWrites(row, oldTotal, oldRemaining, newTotal, newRemaining int) WritePlan {
	var plan WritePlan
	total := CellWrite{Row: row, Col: ColTotalQty, Value: newTotal}
	remaining := CellWrite{Row: row, Col: ColRemainingQty, Value: newRemaining}

	switch {
	case newRemaining <= oldRemaining:
		if newRemaining != oldRemaining {
			plan = append(plan, remaining)
		}
		if newTotal != oldTotal {
			plan = append(plan, total)
		}
	default:
		if newTotal != oldTotal {
			plan = append(plan, total)
		}
		plan = append(plan, remaining)
	}
	return plan
}
