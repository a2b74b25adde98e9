// Package vocabulary loads the canonical locations, box labels and sources from the
// maintenance sheet and publishes them as immutable snapshots.
package vocabulary

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

// Maintenance sheet columns.
const (
	ColLocations = 1
	ColBoxLabels = 2
	ColSources   = 4
)

// ColumnReader is the slice of the tabular store the index needs.
type ColumnReader interface {
	ColumnValues(ctx context.Context, sheet string, col int) ([]string, error)
}

// Index holds the current vocabulary snapshot. Readers never block a refresh.
type Index struct {
	store   ColumnReader
	sheet   string
	current atomic.Pointer[models.Vocabulary]
	logger  *zap.Logger
}

// NewIndex returns an index serving the empty vocabulary until the first Refresh.
func NewIndex(store ColumnReader, sheet string, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &Index{store: store, sheet: sheet, logger: logger}
	idx.current.Store(models.EmptyVocabulary)
	return idx
}

// Snapshot returns the vocabulary in force right now.
func (i *Index) Snapshot() *models.Vocabulary {
	return i.current.Load()
}

// Refresh reloads the maintenance sheet. On failure the previous snapshot stays.
func (i *Index) Refresh(ctx context.Context) (*models.Vocabulary, error) {
	locations, err := i.column(ctx, ColLocations)
	if err != nil {
		return i.Snapshot(), err
	}
	boxes, err := i.column(ctx, ColBoxLabels)
	if err != nil {
		return i.Snapshot(), err
	}
	sources, err := i.column(ctx, ColSources)
	if err != nil {
		return i.Snapshot(), err
	}

	vocab := &models.Vocabulary{Locations: locations, BoxLabels: boxes, Sources: sources}
	i.current.Store(vocab)
	i.logger.Info("vocabulary refreshed",
		zap.Int("locations", len(locations)),
		zap.Int("box_labels", len(boxes)),
		zap.Int("sources", len(sources)))
	return vocab, nil
}

func (i *Index) column(ctx context.Context, col int) ([]string, error) {
	values, err := i.store.ColumnValues(ctx, i.sheet, col)
	if err != nil {
		i.logger.Warn("vocabulary refresh failed", zap.Int("column", col), zap.Error(err))
		return nil, fmt.Errorf("load vocabulary column %d: %w", col, err)
	}
	if len(values) == 0 {
		return []string{}, nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values)-1)
	for _, v := range values[1:] {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}
