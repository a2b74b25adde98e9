package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/service/inventory"
	"github.com/mamadbah2/stockbook/internal/service/ledger"
)

// ErrInvalidArguments indicates the command payload could not be parsed.
var ErrInvalidArguments = errors.New("invalid command arguments")

// ErrUnsupportedCommand indicates we do not yet support the requested command.
var ErrUnsupportedCommand = errors.New("unsupported command")

const helpText = `Stockbook commands:
/restock <item or ITEM-id> <qty>
/sell <item or ITEM-id> <qty> [price] [buyer]
  (the quantity is the last number before the price and buyer)
/stock <item or ITEM-id>
Any other message is read as new stock, e.g. "2 brass lamps £12 each from the car boot sale, garage box A1".`

var (
	idPattern    = regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(ledger.IDPrefix) + `\d+$`)
	pricePattern = regexp.MustCompile(`^[£$€]?\d+(\.\d{1,2})?$`)
)

// InventoryService is the part of the inventory service chat commands drive.
type InventoryService interface {
	Intake(ctx context.Context, text string) inventory.IntakeResult
	Mutate(ctx context.Context, req inventory.MutationRequest) string
	RecordSale(ctx context.Context, form inventory.SaleForm) string
	Describe(ctx context.Context, ref ledger.Reference) string
}

// Dispatcher turns parsed chat commands into inventory operations.
type Dispatcher interface {
	HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error)
}

// Service implements the Dispatcher interface.
type Service struct {
	inventory InventoryService
	logger    *zap.Logger
}

// NewService constructs a command dispatcher.
func NewService(inv InventoryService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{inventory: inv, logger: logger}
}

// HandleCommand runs the command and returns the reply for the sender.
func (s *Service) HandleCommand(ctx context.Context, cmd models.Command, sender string) (string, error) {
	s.logger.Debug("dispatching command", zap.String("command", string(cmd.Type)), zap.String("sender", sender), zap.Strings("args", cmd.Args))

	switch cmd.Type {
	case models.CommandIntake:
		return summarizeIntake(s.inventory.Intake(ctx, cmd.Raw)), nil
	case models.CommandRestock:
		ref, qty, err := parseRestock(cmd.Args)
		if err != nil {
			return "", err
		}
		return s.inventory.Mutate(ctx, inventory.MutationRequest{ID: ref.ID, ItemName: ref.Name, RestockQty: strconv.Itoa(qty)}), nil
	case models.CommandSell:
		form, err := parseSale(cmd.Args)
		if err != nil {
			return "", err
		}
		return s.inventory.RecordSale(ctx, form), nil
	case models.CommandStock:
		if len(cmd.Args) == 0 {
			return "", ErrInvalidArguments
		}
		return s.inventory.Describe(ctx, reference(cmd.Args)), nil
	case models.CommandHelp:
		return helpText, nil
	default:
		return "", ErrUnsupportedCommand
	}
}

// Usage explains how to fix a command that failed with err.
func Usage(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArguments):
		return "I could not read that command.\n" + helpText
	case errors.Is(err, ErrUnsupportedCommand):
		return "Unknown command.\n" + helpText
	default:
		return fmt.Sprintf("Something went wrong: %v", err)
	}
}

// parseRestock reads "<reference...> <qty>".
func parseRestock(args []string) (ledger.Reference, int, error) {
	if len(args) < 2 {
		return ledger.Reference{}, 0, ErrInvalidArguments
	}
	qty, err := strconv.Atoi(args[len(args)-1])
	if err != nil || qty <= 0 {
		return ledger.Reference{}, 0, ErrInvalidArguments
	}
	return reference(args[:len(args)-1]), qty, nil
}

// parseSale reads "<reference...> <qty> [price] [buyer...]". The quantity is the
// first whole number after which only an optional price and a buyer without numbers
// follow, so "/sell Canon 35 mm 2" sells 2 of "Canon 35 mm". When no number fits
// that shape the first whole number is used.
func parseSale(args []string) (inventory.SaleForm, error) {
	qtyAt := -1
	for i := 1; i < len(args); i++ {
		if !isQuantity(args[i]) {
			continue
		}
		if qtyAt < 0 {
			qtyAt = i
		}
		if plainTail(args[i+1:]) {
			qtyAt = i
			break
		}
	}
	if qtyAt < 0 {
		return inventory.SaleForm{}, ErrInvalidArguments
	}

	form := inventory.SaleForm{
		Item:         strings.Join(args[:qtyAt], " "),
		QuantitySold: args[qtyAt],
	}
	rest := args[qtyAt+1:]
	if len(rest) > 0 && pricePattern.MatchString(rest[0]) {
		form.SoldPrice = rest[0]
		rest = rest[1:]
	}
	form.Buyer = strings.Join(rest, " ")

	if ref := reference(args[:qtyAt]); ref.ID != "" {
		form.ItemID, form.Item = ref.ID, ""
	}
	return form, nil
}

func isQuantity(token string) bool {
	n, err := strconv.Atoi(token)
	return err == nil && n > 0
}

// plainTail reports whether tail is an optional price followed by words without
// digits.
func plainTail(tail []string) bool {
	if len(tail) > 0 && pricePattern.MatchString(tail[0]) {
		tail = tail[1:]
	}
	for _, word := range tail {
		if strings.ContainsAny(word, "0123456789") {
			return false
		}
	}
	return true
}

func reference(args []string) ledger.Reference {
	if len(args) == 1 && idPattern.MatchString(args[0]) {
		return ledger.Reference{ID: strings.ToUpper(args[0])}
	}
	return ledger.Reference{Name: strings.Join(args, " ")}
}

func summarizeIntake(result inventory.IntakeResult) string {
	var added, skipped []string
	for _, item := range result.Items {
		e := item.Entry
		switch {
		case item.Committed:
			added = append(added, fmt.Sprintf("%s %s (x%d)", e.ID, e.Item, e.TotalQty))
		case item.CommitError != "":
			skipped = append(skipped, fmt.Sprintf("%s (not saved: %s)", e.Item, item.CommitError))
		default:
			tags := make([]string, len(e.Errors))
			for i, tag := range e.Errors {
				tags[i] = string(tag)
			}
			skipped = append(skipped, fmt.Sprintf("%s (%s)", e.Item, strings.Join(tags, ", ")))
		}
	}

	var sb strings.Builder
	if len(added) == 0 {
		sb.WriteString("No items added.")
	} else {
		fmt.Fprintf(&sb, "Added %d item(s): %s.", len(added), strings.Join(added, "; "))
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&sb, "\nSkipped %d: %s.", len(skipped), strings.Join(skipped, "; "))
	}
	return sb.String()
}
