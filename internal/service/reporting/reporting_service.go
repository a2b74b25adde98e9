package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

const summaryDateLayout = "Mon 02 Jan 2006"

// StockSource reads the ledger contents a report is built from.
type StockSource interface {
	Entries(ctx context.Context) ([]models.InventoryEntry, error)
	Sales(ctx context.Context) ([]models.SaleRecord, error)
}

// Service computes stock snapshots for chat summaries and the report archive.
type Service struct {
	source StockSource
	logger *zap.Logger
	now    func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(source StockSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, logger: logger, now: time.Now}
}

// BuildStockReport summarizes the current stock and the sales dated on day (in
// day's location).
func (s *Service) BuildStockReport(ctx context.Context, day time.Time) (models.StockReport, error) {
	entries, err := s.source.Entries(ctx)
	if err != nil {
		return models.StockReport{}, fmt.Errorf("load inventory: %w", err)
	}
	sales, err := s.source.Sales(ctx)
	if err != nil {
		return models.StockReport{}, fmt.Errorf("load sales: %w", err)
	}

	y, m, d := day.Date()
	report := models.StockReport{
		Date:          time.Date(y, m, d, 0, 0, 0, 0, day.Location()),
		DepletedItems: []string{},
		CreatedAt:     s.now(),
	}

	value := decimal.Zero
	for _, e := range entries {
		report.Lots++
		report.UnitsInStock += e.RemainingQty
		value = value.Add(e.Price.Mul(decimal.NewFromInt(int64(e.RemainingQty))))
		if e.Depleted() {
			report.DepletedLots++
			report.DepletedItems = append(report.DepletedItems, e.Item)
		} else {
			report.ActiveLots++
		}
	}

	revenue := decimal.Zero
	for _, sale := range sales {
		sold, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(sale.DateSold), day.Location())
		if err != nil {
			s.logger.Debug("skip sale with invalid date", zap.String("sale_id", sale.SaleID), zap.String("value", sale.DateSold))
			continue
		}
		if !sold.Equal(report.Date) {
			continue
		}
		report.SalesCount++
		report.UnitsSold += sale.QuantitySold
		revenue = revenue.Add(sale.SoldPrice)
	}

	report.StockValue = value.StringFixed(2)
	report.SalesRevenue = revenue.StringFixed(2)
	return report, nil
}

// FormatStockReport renders a report as a chat message.
func FormatStockReport(r models.StockReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Stock report for %s\n", r.Date.Format(summaryDateLayout))
	fmt.Fprintf(&sb, "Lots: %d (%d active, %d sold out)\n", r.Lots, r.ActiveLots, r.DepletedLots)
	fmt.Fprintf(&sb, "Units in stock: %d, valued at £%s\n", r.UnitsInStock, r.StockValue)
	if r.SalesCount == 0 {
		sb.WriteString("Sales today: none")
	} else {
		fmt.Fprintf(&sb, "Sales today: %d (%d units, £%s)", r.SalesCount, r.UnitsSold, r.SalesRevenue)
	}
	if len(r.DepletedItems) > 0 {
		fmt.Fprintf(&sb, "\nSold out: %s", strings.Join(r.DepletedItems, ", "))
	}
	return sb.String()
}
