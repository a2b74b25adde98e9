package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the day/month/year form used for every date stored in the sheets.
const DateLayout = "02/01/2006"

// Sentinel values applied when an extracted record leaves a field blank.
const (
	UnknownItem            = "Unknown Item"
	DefaultStorageLocation = "Not specified"
	DefaultBoxLabel        = ""
	DefaultPlaceBought     = "Unknown location"
)

// ErrorTag labels a validation problem found while normalizing an extracted record.
type ErrorTag string

const (
	ErrMissingItem     ErrorTag = "missing_item"
	ErrInvalidPrice    ErrorTag = "invalid_price"
	ErrInvalidQuantity ErrorTag = "invalid_quantity"
	ErrUnparseable     ErrorTag = "unparseable"
)

// InventoryEntry is one stocked item lot, as stored in a row of the inventory sheet.
type InventoryEntry struct {
	ID              string          `json:"id,omitempty"`
	Item            string          `json:"item"`
	CatalogueNumber string          `json:"catalogue_number"`
	StorageLocation string          `json:"storage_location"`
	BoxLabel        string          `json:"box_label"`
	Price           decimal.Decimal `json:"price"`
	TotalQty        int             `json:"total_qty"`
	RemainingQty    int             `json:"remaining_qty"`
	Date            string          `json:"date"`
	PlaceBought     string          `json:"place_bought"`
	RestockHistory  string          `json:"restock_history,omitempty"`
	Errors          []ErrorTag      `json:"errors"`
	RawPayload      string          `json:"raw_payload,omitempty"`
}

// Valid reports whether the entry carries no validation errors and may be committed.
func (e InventoryEntry) Valid() bool {
	return len(e.Errors) == 0
}

// HasError reports whether tag is attached to the entry.
func (e InventoryEntry) HasError(tag ErrorTag) bool {
	for _, t := range e.Errors {
		if t == tag {
			return true
		}
	}
	return false
}

// AddError attaches tag once; repeated tags are ignored.
func (e *InventoryEntry) AddError(tag ErrorTag) {
	if e.HasError(tag) {
		return
	}
	e.Errors = append(e.Errors, tag)
}

// Depleted reports whether no units of the lot are left.
func (e InventoryEntry) Depleted() bool {
	return e.RemainingQty == 0
}

// SaleRecord is one completed sale, appended to the sales sheet and never modified.
type SaleRecord struct {
	SaleID         string          `json:"sale_id"`
	Item           string          `json:"item"`
	QuantitySold   int             `json:"quantity_sold"`
	SoldPrice      decimal.Decimal `json:"sold_price"`
	DateSold       string          `json:"date_sold"`
	Buyer          string          `json:"buyer"`
	RemainingAfter int             `json:"remaining_after"`
}

// NewSaleID derives the sale identifier from the item name, the day/month and the buyer.
func NewSaleID(item, buyer string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s",
		strings.ReplaceAll(item, " ", "_"),
		at.Format("0201"),
		strings.ReplaceAll(buyer, " ", "_"))
}

// RestockEvent is one entry of the restock trail kept on the inventory row.
type RestockEvent struct {
	Date time.Time
	Qty  int
}

func (r RestockEvent) String() string {
	return fmt.Sprintf("%s (x%d)", r.Date.Format(DateLayout), r.Qty)
}

// AppendRestock adds event to an existing comma-joined restock history.
func AppendRestock(history string, event RestockEvent) string {
	if strings.TrimSpace(history) == "" {
		return event.String()
	}
	return history + ", " + event.String()
}

// FieldUpdates carries the metadata columns a caller wants to overwrite.
// Empty fields are left untouched.
type FieldUpdates struct {
	CatalogueNumber string `json:"catalogue_number"`
	StorageLocation string `json:"storage_location"`
	BoxLabel        string `json:"box_label"`
	PlaceBought     string `json:"place_bought"`
}

// Empty reports whether no field carries a value.
func (u FieldUpdates) Empty() bool {
	return strings.TrimSpace(u.CatalogueNumber) == "" &&
		strings.TrimSpace(u.StorageLocation) == "" &&
		strings.TrimSpace(u.BoxLabel) == "" &&
		strings.TrimSpace(u.PlaceBought) == ""
}
