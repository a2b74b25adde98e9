package ledger

import "context"

// TabularStore is the row/column store the ledger persists to. Rows and columns are
// 1-indexed and row 1 of every sheet is the header. The store offers no transactions:
// each call is an independent write.
type TabularStore interface {
	ReadRows(ctx context.Context, sheet string) ([][]string, error)
	ColumnValues(ctx context.Context, sheet string, col int) ([]string, error)
	AppendRow(ctx context.Context, sheet string, values []interface{}) error
	ReadCell(ctx context.Context, sheet string, row, col int) (string, error)
	WriteCell(ctx context.Context, sheet string, row, col int, value interface{}) error
	// FindRow returns the first row whose col equals value, both trimmed, or 0 when
	// none does.
	FindRow(ctx context.Context, sheet string, col int, value string) (int, error)
}

// Inventory sheet columns.
const (
	ColID = iota + 1
	ColItem
	ColCatalogueNumber
	ColStorageLocation
	ColBoxLabel
	ColPrice
	ColTotalQty
	ColRemainingQty
	ColDate
	ColPlaceBought
	ColRestockHistory

	inventoryColumns = ColRestockHistory
)

// Sales sheet columns.
const (
	SaleColID = iota + 1
	SaleColItem
	SaleColQuantity
	SaleColPrice
	SaleColDate
	SaleColBuyer
	SaleColRemainingAfter
)

var columnNames = map[int]string{
	ColID:              "id",
	ColItem:            "item",
	ColCatalogueNumber: "catalogue_number",
	ColStorageLocation: "storage_location",
	ColBoxLabel:        "box_label",
	ColPrice:           "price",
	ColTotalQty:        "total_qty",
	ColRemainingQty:    "remaining_qty",
	ColDate:            "date",
	ColPlaceBought:     "place_bought",
	ColRestockHistory:  "restock_history",
}

// ColumnName returns the header name of an inventory column.
func ColumnName(col int) string {
	return columnNames[col]
}

// Sheets names the worksheets the ledger uses.
type Sheets struct {
	Inventory string
	Sales     string
}

// InventoryHeader is the header row of a fresh inventory sheet.
func InventoryHeader() []string {
	header := make([]string, inventoryColumns)
	for col := ColID; col <= inventoryColumns; col++ {
		header[col-1] = columnNames[col]
	}
	return header
}

// SalesHeader is the header row of a fresh sales sheet.
func SalesHeader() []string {
	return []string{"sale_id", "item", "quantity_sold", "sold_price", "date_sold", "buyer", "remaining_after"}
}
