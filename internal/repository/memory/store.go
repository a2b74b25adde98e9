// Package memory provides an in-process tabular store with the same row/column
// semantics as the Google Sheets adapter. It backs local development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInjected is returned by writes after the configured failure point.
var ErrInjected = errors.New("injected store failure")

// Store keeps worksheets as string grids. Row 1 of each sheet is its header.
type Store struct {
	mu        sync.Mutex
	sheets    map[string][][]string
	writes    int
	failAfter int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sheets: make(map[string][][]string), failAfter: -1}
}

// Seed replaces the content of a sheet, header first.
func (s *Store) Seed(sheet string, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := make([][]string, len(rows))
	for i, r := range rows {
		grid[i] = append([]string(nil), r...)
	}
	s.sheets[sheet] = grid
}

// FailAfter makes every write after the first n succeed-able writes fail.
// A negative n disables fault injection.
func (s *Store) FailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = 0
	s.failAfter = n
}

// Rows returns a copy of a sheet, header included.
func (s *Store) Rows(sheet string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySheet(sheet)
}

// ReadRows returns a copy of every row, header included.
func (s *Store) ReadRows(_ context.Context, sheet string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySheet(sheet), nil
}

// ColumnValues returns the values of a 1-indexed column down to the last row that has one.
func (s *Store) ColumnValues(_ context.Context, sheet string, col int) ([]string, error) {
	if col < 1 {
		return nil, fmt.Errorf("invalid column %d", col)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var values []string
	last := -1
	for i, row := range s.sheets[sheet] {
		v := ""
		if col <= len(row) {
			v = row[col-1]
		}
		values = append(values, v)
		if v != "" {
			last = i
		}
	}
	return values[:last+1], nil
}

// AppendRow adds a row after the last one.
func (s *Store) AppendRow(_ context.Context, sheet string, values []interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.countWrite(); err != nil {
		return err
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	s.sheets[sheet] = append(s.sheets[sheet], row)
	return nil
}

// ReadCell returns one cell; cells outside the grid read as empty.
func (s *Store) ReadCell(_ context.Context, sheet string, row, col int) (string, error) {
	if row < 1 || col < 1 {
		return "", fmt.Errorf("invalid cell %d,%d", row, col)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := s.sheets[sheet]
	if row > len(grid) || col > len(grid[row-1]) {
		return "", nil
	}
	return grid[row-1][col-1], nil
}

// WriteCell sets one cell, growing the grid as needed.
func (s *Store) WriteCell(_ context.Context, sheet string, row, col int, value interface{}) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d,%d", row, col)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.countWrite(); err != nil {
		return err
	}
	grid := s.sheets[sheet]
	for len(grid) < row {
		grid = append(grid, nil)
	}
	for len(grid[row-1]) < col {
		grid[row-1] = append(grid[row-1], "")
	}
	grid[row-1][col-1] = fmt.Sprint(value)
	s.sheets[sheet] = grid
	return nil
}

// FindRow returns the first 1-indexed row whose column equals value, ignoring
// surrounding whitespace, or 0.
func (s *Store) FindRow(_ context.Context, sheet string, col int, value string) (int, error) {
	if col < 1 {
		return 0, fmt.Errorf("invalid column %d", col)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value = strings.TrimSpace(value)
	for i, row := range s.sheets[sheet] {
		if col <= len(row) && strings.TrimSpace(row[col-1]) == value {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (s *Store) countWrite() error {
	if s.failAfter >= 0 && s.writes >= s.failAfter {
		return ErrInjected
	}
	s.writes++
	return nil
}

func (s *Store) copySheet(sheet string) [][]string {
	grid := s.sheets[sheet]
	out := make([][]string, len(grid))
	for i, r := range grid {
		out[i] = append([]string(nil), r...)
	}
	return out
}
