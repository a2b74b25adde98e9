// Package ledger keeps the inventory rows and the sales log consistent on a store that
// offers nothing beyond independent cell writes.
package ledger

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/matching"
)

const tracerName = "github.com/mamadbah2/stockbook/internal/service/ledger"

// Reference points at an inventory entry by identifier or by (approximate) item name.
// The identifier wins when both are set.
type Reference struct {
	ID   string
	Name string
}

func (r Reference) String() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.Name)
}

// Located is an inventory entry together with its sheet row.
type Located struct {
	Row   int
	Entry models.InventoryEntry
}

// SaleRequest describes a sale against an inventory entry.
type SaleRequest struct {
	Target    Reference
	Quantity  int
	SoldPrice decimal.Decimal
	Buyer     string
	DateSold  string
}

// Ledger implements the stock operations on top of a TabularStore.
type Ledger struct {
	store     TabularStore
	sheets    Sheets
	seq       Sequence
	threshold int
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// New wires a ledger. A nil sequence falls back to an in-process counter.
func New(store TabularStore, sheets Sheets, seq Sequence, threshold int, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if seq == nil {
		seq = NewCounterSequence()
	}
	if threshold <= 0 {
		threshold = matching.DefaultThreshold
	}
	return &Ledger{
		store:     store,
		sheets:    sheets,
		seq:       seq,
		threshold: threshold,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

// WithClock replaces the time source used for sale ids and restock dates.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	if now != nil {
		l.now = now
	}
	return l
}

// Create assigns the next identifier to a validated entry and appends its row.
// A failed append burns the reserved identifier.
func (l *Ledger) Create(ctx context.Context, entry models.InventoryEntry) (created models.InventoryEntry, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.create", trace.WithAttributes(attribute.String("item", entry.Item)))
	defer func() { endSpan(span, err) }()

	if !entry.Valid() {
		return entry, ErrInvalidEntry
	}

	slot, err := l.seq.Reserve(ctx, l.entryCount)
	if err != nil {
		return entry, fmt.Errorf("reserve inventory id: %w", err)
	}
	entry.ID = NextID(slot)

	row := []interface{}{
		entry.ID,
		entry.Item,
		entry.CatalogueNumber,
		entry.StorageLocation,
		entry.BoxLabel,
		entry.Price.String(),
		entry.TotalQty,
		entry.RemainingQty,
		entry.Date,
		entry.PlaceBought,
		entry.RestockHistory,
	}
	if err := l.store.AppendRow(ctx, l.sheets.Inventory, row); err != nil {
		return entry, &StoreWriteError{Op: "create " + entry.ID, Err: err}
	}

	span.SetAttributes(attribute.String("id", entry.ID))
	l.logger.Info("inventory entry created", zap.String("id", entry.ID), zap.String("item", entry.Item))
	return entry, nil
}

// Locate finds an entry by exact identifier, or resolves a name against the item
// names currently on the sheet and then matches the resolved name exactly.
func (l *Ledger) Locate(ctx context.Context, ref Reference) (loc Located, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.locate", trace.WithAttributes(attribute.String("reference", ref.String())))
	defer func() { endSpan(span, err) }()

	id := strings.ToUpper(strings.TrimSpace(ref.ID))
	name := strings.TrimSpace(ref.Name)

	var row int
	switch {
	case id != "":
		row, err = l.store.FindRow(ctx, l.sheets.Inventory, ColID, id)
		if err != nil {
			return Located{}, fmt.Errorf("find id %s: %w", id, err)
		}
		if row <= 1 {
			return Located{}, &NotFoundError{Reference: id}
		}
	case name != "":
		names, err := l.ItemNames(ctx)
		if err != nil {
			return Located{}, err
		}
		match := matching.Best(name, names, l.threshold)
		if match.Ambiguous() {
			return Located{}, &AmbiguousError{Query: name, Candidates: match.Tied()}
		}
		if match.Matched {
			l.logger.Debug("item name resolved", zap.String("query", name), zap.String("match", match.Value), zap.Float64("score", match.Score))
		}
		row, err = l.store.FindRow(ctx, l.sheets.Inventory, ColItem, match.Value)
		if err != nil {
			return Located{}, fmt.Errorf("find item %s: %w", match.Value, err)
		}
		if row <= 1 {
			return Located{}, &NotFoundError{Reference: name}
		}
	default:
		return Located{}, ErrEmptyReference
	}

	rows, err := l.store.ReadRows(ctx, l.sheets.Inventory)
	if err != nil {
		return Located{}, fmt.Errorf("read inventory: %w", err)
	}
	if row > len(rows) {
		return Located{}, &NotFoundError{Reference: ref.String()}
	}

	return Located{Row: row, Entry: l.parseEntry(row, rows[row-1])}, nil
}

// UpdateFields overwrites the metadata columns present in updates, one write per
// changed column.
func (l *Ledger) UpdateFields(ctx context.Context, ref Reference, updates models.FieldUpdates) (entry models.InventoryEntry, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.update_fields", trace.WithAttributes(attribute.String("reference", ref.String())))
	defer func() { endSpan(span, err) }()

	loc, err := l.Locate(ctx, ref)
	if err != nil {
		return models.InventoryEntry{}, err
	}
	entry = loc.Entry

	var plan WritePlan
	apply := func(col int, value string, current *string) {
		value = strings.TrimSpace(value)
		if value == "" || value == *current {
			return
		}
		plan = append(plan, CellWrite{Row: loc.Row, Col: col, Value: value})
		*current = value
	}
	apply(ColCatalogueNumber, updates.CatalogueNumber, &entry.CatalogueNumber)
	apply(ColStorageLocation, updates.StorageLocation, &entry.StorageLocation)
	apply(ColBoxLabel, updates.BoxLabel, &entry.BoxLabel)
	apply(ColPlaceBought, updates.PlaceBought, &entry.PlaceBought)

	if err := l.Commit(ctx, "update "+entry.ID, plan); err != nil {
		return loc.Entry, err
	}
	if len(plan) > 0 {
		l.logger.Info("inventory fields updated", zap.String("id", entry.ID), zap.Int("writes", len(plan)))
	}
	return entry, nil
}

// Restock adds qty units to both quantities and appends a restock history record.
// A non-positive qty leaves the row untouched.
func (l *Ledger) Restock(ctx context.Context, ref Reference, qty int) (entry models.InventoryEntry, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.restock", trace.WithAttributes(
		attribute.String("reference", ref.String()),
		attribute.Int("qty", qty)))
	defer func() { endSpan(span, err) }()

	loc, err := l.Locate(ctx, ref)
	if err != nil {
		return models.InventoryEntry{}, err
	}
	entry = loc.Entry

	if qty <= 0 {
		l.logger.Warn("ignoring non-positive restock quantity", zap.String("id", entry.ID), zap.Int("qty", qty))
		return entry, nil
	}

	history, err := l.store.ReadCell(ctx, l.sheets.Inventory, loc.Row, ColRestockHistory)
	if err != nil {
		return entry, fmt.Errorf("read restock history of %s: %w", entry.ID, err)
	}

	newTotal := entry.TotalQty + qty
	newRemaining := entry.RemainingQty + qty
	newHistory := models.AppendRestock(history, models.RestockEvent{Date: l.now(), Qty: qty})

	plan := quantityWrites(loc.Row, entry.TotalQty, entry.RemainingQty, newTotal, newRemaining)
	plan = append(plan, CellWrite{Row: loc.Row, Col: ColRestockHistory, Value: newHistory})

	if err := l.Commit(ctx, "restock "+entry.ID, plan); err != nil {
		return entry, err
	}

	entry.TotalQty = newTotal
	entry.RemainingQty = newRemaining
	entry.RestockHistory = newHistory
	l.logger.Info("inventory restocked", zap.String("id", entry.ID), zap.Int("qty", qty), zap.Int("total_qty", newTotal))
	return entry, nil
}

// Sell removes units from remaining_qty and appends a sale record. The stored
// remaining quantity is read again right before the write; two concurrent sales can
// still interleave between that read and the write.
func (l *Ledger) Sell(ctx context.Context, req SaleRequest) (sale models.SaleRecord, err error) {
	ctx, span := l.tracer.Start(ctx, "ledger.sell", trace.WithAttributes(
		attribute.String("reference", req.Target.String()),
		attribute.Int("qty", req.Quantity)))
	defer func() { endSpan(span, err) }()

	if req.Quantity <= 0 {
		return models.SaleRecord{}, ErrInvalidQuantity
	}

	loc, err := l.Locate(ctx, req.Target)
	if err != nil {
		return models.SaleRecord{}, err
	}
	entry := loc.Entry

	if req.Quantity > entry.RemainingQty {
		return models.SaleRecord{}, &InsufficientStockError{Item: entry.Item, Requested: req.Quantity, Available: entry.RemainingQty}
	}

	// Remaining before total: a restock grows total first, so a remaining value read
	// here never exceeds the total read after it.
	remainingCell, err := l.store.ReadCell(ctx, l.sheets.Inventory, loc.Row, ColRemainingQty)
	if err != nil {
		return models.SaleRecord{}, fmt.Errorf("re-read remaining of %s: %w", entry.ID, err)
	}
	totalCell, err := l.store.ReadCell(ctx, l.sheets.Inventory, loc.Row, ColTotalQty)
	if err != nil {
		return models.SaleRecord{}, fmt.Errorf("re-read total of %s: %w", entry.ID, err)
	}
	total := l.parseTotal(loc.Row, totalCell)
	current := l.parseRemaining(loc.Row, remainingCell, total)
	if req.Quantity > current {
		return models.SaleRecord{}, &InsufficientStockError{Item: entry.Item, Requested: req.Quantity, Available: current}
	}

	remainingAfter := max(current-req.Quantity, 0)
	plan := quantityWrites(loc.Row, total, current, total, remainingAfter)
	if err := l.Commit(ctx, "sell "+entry.ID, plan); err != nil {
		return models.SaleRecord{}, err
	}

	now := l.now()
	dateSold := strings.TrimSpace(req.DateSold)
	if dateSold == "" {
		dateSold = now.Format(models.DateLayout)
	}
	buyer := strings.TrimSpace(req.Buyer)
	sale = models.SaleRecord{
		SaleID:         models.NewSaleID(entry.Item, buyer, now),
		Item:           entry.Item,
		QuantitySold:   req.Quantity,
		SoldPrice:      req.SoldPrice,
		DateSold:       dateSold,
		Buyer:          buyer,
		RemainingAfter: remainingAfter,
	}

	row := []interface{}{sale.SaleID, sale.Item, sale.QuantitySold, sale.SoldPrice.String(), sale.DateSold, sale.Buyer, sale.RemainingAfter}
	if err := l.store.AppendRow(ctx, l.sheets.Sales, row); err != nil {
		return sale, &StoreWriteError{Op: "record sale " + sale.SaleID, Applied: len(plan), Err: err}
	}

	l.logger.Info("sale recorded",
		zap.String("sale_id", sale.SaleID),
		zap.String("id", entry.ID),
		zap.Int("qty", sale.QuantitySold),
		zap.Int("remaining_after", remainingAfter))
	return sale, nil
}

// Entries returns every inventory row, quantities parsed defensively.
func (l *Ledger) Entries(ctx context.Context) ([]models.InventoryEntry, error) {
	rows, err := l.store.ReadRows(ctx, l.sheets.Inventory)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var entries []models.InventoryEntry
	for i, row := range dataRows(rows) {
		if blank(row) {
			continue
		}
		entries = append(entries, l.parseEntry(i+2, row))
	}
	return entries, nil
}

// Sales returns every recorded sale.
func (l *Ledger) Sales(ctx context.Context) ([]models.SaleRecord, error) {
	rows, err := l.store.ReadRows(ctx, l.sheets.Sales)
	if err != nil {
		return nil, fmt.Errorf("read sales: %w", err)
	}

	var sales []models.SaleRecord
	for _, row := range dataRows(rows) {
		if blank(row) {
			continue
		}
		row = pad(row, SaleColRemainingAfter)
		qty, _ := strconv.Atoi(strings.TrimSpace(row[SaleColQuantity-1]))
		remaining, _ := strconv.Atoi(strings.TrimSpace(row[SaleColRemainingAfter-1]))
		sales = append(sales, models.SaleRecord{
			SaleID:         row[SaleColID-1],
			Item:           row[SaleColItem-1],
			QuantitySold:   qty,
			SoldPrice:      parseMoney(row[SaleColPrice-1]),
			DateSold:       row[SaleColDate-1],
			Buyer:          row[SaleColBuyer-1],
			RemainingAfter: remaining,
		})
	}
	return sales, nil
}

// ItemNames lists the item names currently on the inventory sheet.
func (l *Ledger) ItemNames(ctx context.Context) ([]string, error) {
	values, err := l.store.ColumnValues(ctx, l.sheets.Inventory, ColItem)
	if err != nil {
		return nil, fmt.Errorf("read item names: %w", err)
	}
	var names []string
	for _, v := range dataRows(values) {
		if v = strings.TrimSpace(v); v != "" {
			names = append(names, v)
		}
	}
	return names, nil
}

func (l *Ledger) entryCount(ctx context.Context) (int, error) {
	rows, err := l.store.ReadRows(ctx, l.sheets.Inventory)
	if err != nil {
		return 0, fmt.Errorf("count inventory rows: %w", err)
	}
	return len(dataRows(rows)), nil
}

func (l *Ledger) parseEntry(rowNum int, row []string) models.InventoryEntry {
	row = pad(row, inventoryColumns)
	total := l.parseTotal(rowNum, row[ColTotalQty-1])
	return models.InventoryEntry{
		ID:              row[ColID-1],
		Item:            row[ColItem-1],
		CatalogueNumber: row[ColCatalogueNumber-1],
		StorageLocation: row[ColStorageLocation-1],
		BoxLabel:        row[ColBoxLabel-1],
		Price:           parseMoney(row[ColPrice-1]),
		TotalQty:        total,
		RemainingQty:    l.parseRemaining(rowNum, row[ColRemainingQty-1], total),
		Date:            row[ColDate-1],
		PlaceBought:     row[ColPlaceBought-1],
		RestockHistory:  row[ColRestockHistory-1],
		Errors:          []models.ErrorTag{},
	}
}

// parseTotal heals a corrupt total_qty cell to 1.
func (l *Ledger) parseTotal(row int, cell string) int {
	total, ok := parseInt(cell)
	if !ok || total < 1 {
		l.logger.Warn("healing corrupt total_qty cell", zap.Int("row", row), zap.String("value", cell))
		return 1
	}
	return total
}

// parseRemaining heals a corrupt remaining_qty cell to total and clamps it into [0,total].
func (l *Ledger) parseRemaining(row int, cell string, total int) int {
	remaining, ok := parseInt(cell)
	if !ok {
		l.logger.Warn("healing corrupt remaining_qty cell", zap.Int("row", row), zap.String("value", cell))
		return total
	}
	if remaining < 0 || remaining > total {
		l.logger.Warn("clamping out-of-range remaining_qty", zap.Int("row", row), zap.Int("value", remaining), zap.Int("total_qty", total))
		return min(max(remaining, 0), total)
	}
	return remaining
}

func parseInt(cell string) (int, bool) {
	s := strings.TrimSpace(cell)
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func parseMoney(cell string) decimal.Decimal {
	s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(cell), "£$€"))
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func dataRows[T any](rows []T) []T {
	if len(rows) <= 1 {
		return nil
	}
	return rows[1:]
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
