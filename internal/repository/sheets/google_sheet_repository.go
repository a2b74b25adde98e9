package sheets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/stockbook/internal/config"
)

// Values are stored as sent: item names and locations come from chat text and must
// not be parsed as formulas, numbers or dates. Quantities are sent as JSON numbers.
const valueInputOption = "RAW"

// GoogleSheetRepository is the ledger's tabular store on top of the Google Sheets API.
// Rows and columns are 1-indexed, as on the sheet itself.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance. Extra
// client options replace the service-account credentials file when given.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger, opts ...option.ClientOption) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts) == 0 {
		opts = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsPath),
			option.WithScopes(sheetsapi.SpreadsheetsScope),
		}
	}

	service, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// ReadRows fetches every row of a sheet, header included.
func (r *GoogleSheetRepository) ReadRows(ctx context.Context, sheet string) ([][]string, error) {
	values, err := r.get(ctx, quoteSheet(sheet))
	if err != nil {
		return nil, err
	}
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = stringify(row)
	}
	return rows, nil
}

// ColumnValues fetches one column, top to bottom.
func (r *GoogleSheetRepository) ColumnValues(ctx context.Context, sheet string, col int) ([]string, error) {
	letter, err := ColumnLetter(col)
	if err != nil {
		return nil, err
	}
	values, err := r.get(ctx, fmt.Sprintf("%s!%s:%s", quoteSheet(sheet), letter, letter))
	if err != nil {
		return nil, err
	}
	column := make([]string, len(values))
	for i, row := range values {
		if len(row) > 0 {
			column[i] = fmt.Sprint(row[0])
		}
	}
	return column, nil
}

// AppendRow appends the provided values after the last row of the sheet.
func (r *GoogleSheetRepository) AppendRow(ctx context.Context, sheet string, values []interface{}) error {
	if sheet == "" {
		return fmt.Errorf("sheet must not be empty")
	}

	sheetRange := quoteSheet(sheet) + "!A1"
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into %s: %w", sheet, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("sheet", sheet))
	return nil
}

// ReadCell fetches a single cell; an empty cell reads as "".
func (r *GoogleSheetRepository) ReadCell(ctx context.Context, sheet string, row, col int) (string, error) {
	a1, err := CellA1(sheet, row, col)
	if err != nil {
		return "", err
	}
	values, err := r.get(ctx, a1)
	if err != nil {
		return "", err
	}
	if len(values) == 0 || len(values[0]) == 0 {
		return "", nil
	}
	return fmt.Sprint(values[0][0]), nil
}

// WriteCell overwrites a single cell.
func (r *GoogleSheetRepository) WriteCell(ctx context.Context, sheet string, row, col int, value interface{}) error {
	a1, err := CellA1(sheet, row, col)
	if err != nil {
		return err
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{{value}}}
	call := r.service.Spreadsheets.Values.Update(r.spreadsheetID, a1, payload).
		ValueInputOption(valueInputOption).
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("update cell %s: %w", a1, err)
	}

	r.logger.Debug("cell updated", zap.String("range", a1))
	return nil
}

// FindRow returns the first row whose column equals value, ignoring surrounding
// whitespace, or 0.
func (r *GoogleSheetRepository) FindRow(ctx context.Context, sheet string, col int, value string) (int, error) {
	column, err := r.ColumnValues(ctx, sheet, col)
	if err != nil {
		return 0, err
	}
	value = strings.TrimSpace(value)
	for i, v := range column {
		if strings.TrimSpace(v) == value {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (r *GoogleSheetRepository) get(ctx context.Context, sheetRange string) ([][]interface{}, error) {
	resp, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", sheetRange, err)
	}
	return resp.Values, nil
}

// ColumnLetter converts a 1-indexed column number to its A1 letters (1 is A, 27 is AA).
func ColumnLetter(col int) (string, error) {
	if col < 1 {
		return "", fmt.Errorf("invalid column %d", col)
	}
	var letters []byte
	for col > 0 {
		col--
		letters = append([]byte{byte('A' + col%26)}, letters...)
		col /= 26
	}
	return string(letters), nil
}

// CellA1 renders a single-cell range such as 'Inventory'!H12.
func CellA1(sheet string, row, col int) (string, error) {
	if row < 1 {
		return "", fmt.Errorf("invalid row %d", row)
	}
	letter, err := ColumnLetter(col)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s!%s%d", quoteSheet(sheet), letter, row), nil
}

func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func stringify(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}
