package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates no inventory row matches the reference.
	ErrNotFound = errors.New("inventory entry not found")
	// ErrAmbiguous indicates a name reference matched several entries equally well.
	ErrAmbiguous = errors.New("ambiguous item reference")
	// ErrInsufficientStock indicates a sale asks for more units than remain.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStoreWrite indicates the backing store rejected a write.
	ErrStoreWrite = errors.New("store write failed")
	// ErrInvalidQuantity indicates a non-positive quantity on a sale.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidEntry indicates an entry with validation errors was offered for commit.
	ErrInvalidEntry = errors.New("entry has validation errors")
	// ErrEmptyReference indicates neither an id nor a name was supplied.
	ErrEmptyReference = errors.New("an item id or name is required")
)

// NotFoundError names the reference that matched nothing.
type NotFoundError struct {
	Reference string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no matching items found for '%s'", e.Reference)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousError lists the candidates a caller must choose between.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple matches found for '%s': %s", e.Query, strings.Join(e.Candidates, ", "))
}

func (e *AmbiguousError) Is(target error) bool { return target == ErrAmbiguous }

// InsufficientStockError reports the requested and available quantities.
type InsufficientStockError struct {
	Item      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for %d of '%s' (%d remaining)", e.Requested, e.Item, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// StoreWriteError wraps a rejected write. Applied counts the writes of the same
// operation that had already landed; they are not rolled back.
type StoreWriteError struct {
	Op      string
	Applied int
	Err     error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("%s: store write failed after %d applied writes: %v", e.Op, e.Applied, e.Err)
}

func (e *StoreWriteError) Is(target error) bool { return target == ErrStoreWrite }

func (e *StoreWriteError) Unwrap() error { return e.Err }
