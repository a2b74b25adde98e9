// Package inventory orchestrates intake, mutation and sale requests on top of the
// normalizer and the stock ledger.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/matching"
	"github.com/mamadbah2/stockbook/internal/service/intake"
	"github.com/mamadbah2/stockbook/internal/service/ledger"
	"github.com/mamadbah2/stockbook/pkg/clients/speech"
)

// ErrNoText is returned when a request carries no text to work on.
var ErrNoText = errors.New("no text received")

// TextExtractor turns free text into the JSON the instructions describe.
type TextExtractor interface {
	Extract(ctx context.Context, instructions, text string) (string, error)
}

// SpeechTranscriber turns an audio file into a transcript.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// VocabularySource hands out the vocabulary snapshot for a request.
type VocabularySource interface {
	Snapshot() *models.Vocabulary
}

// IntakeItem is one normalized entry and what happened when it was committed.
type IntakeItem struct {
	Entry       models.InventoryEntry `json:"entry"`
	Committed   bool                  `json:"committed"`
	CommitError string                `json:"commit_error,omitempty"`
}

// IntakeResult lists every entry produced from one submission, in extraction order.
type IntakeResult struct {
	Items   []IntakeItem `json:"items"`
	Created int          `json:"created"`
}

// MutationRequest mirrors the update form. Quantities arrive as text and blank
// fields are left untouched.
type MutationRequest struct {
	ID              string `json:"update_id" form:"update_id"`
	ItemName        string `json:"update_item_name" form:"update_item_name"`
	CatalogueNumber string `json:"catalogue_number" form:"catalogue_number"`
	StorageLocation string `json:"storage_location" form:"storage_location"`
	BoxLabel        string `json:"box_label" form:"box_label"`
	PlaceBought     string `json:"place_bought" form:"place_bought"`
	RestockQty      string `json:"restock_qty" form:"restock_qty"`
	QuantitySold    string `json:"quantity_sold" form:"quantity_sold"`
	SoldPrice       string `json:"sold_price" form:"sold_price"`
	Buyer           string `json:"buyer" form:"buyer"`
	DateSold        string `json:"date_sold" form:"date_sold"`
}

// SaleForm mirrors the sales form. ItemID, when set, takes precedence over Item.
type SaleForm struct {
	ItemID       string `json:"item_id" form:"item_id"`
	Item         string `json:"sales_item" form:"sales_item"`
	QuantitySold string `json:"quantity_sold" form:"quantity_sold"`
	SoldPrice    string `json:"sold_price" form:"sold_price"`
	DateSold     string `json:"date_sold" form:"date_sold"`
	Buyer        string `json:"buyer" form:"buyer"`
}

// Service wires the extraction and speech capabilities to the ledger.
type Service struct {
	ledger      *ledger.Ledger
	vocab       VocabularySource
	extractor   TextExtractor
	transcriber SpeechTranscriber
	threshold   int
	now         func() time.Time
	logger      *zap.Logger
}

// NewService builds the orchestration service.
func NewService(l *ledger.Ledger, vocab VocabularySource, extractor TextExtractor, transcriber SpeechTranscriber, threshold int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 {
		threshold = matching.DefaultThreshold
	}
	return &Service{
		ledger:      l,
		vocab:       vocab,
		extractor:   extractor,
		transcriber: transcriber,
		threshold:   threshold,
		now:         time.Now,
		logger:      logger,
	}
}

// Intake extracts, normalizes and commits the entries described by text. Entries with
// error tags are reported without being committed; a failed commit is noted on its
// entry and does not stop the rest of the batch.
func (s *Service) Intake(ctx context.Context, text string) IntakeResult {
	normalizer := intake.NewNormalizer(s.vocab.Snapshot(), s.threshold, s.now, s.logger)

	var entries []models.InventoryEntry
	content, err := s.extractor.Extract(ctx, intakeInstructions, text)
	if err != nil {
		s.logger.Error("extraction failed", zap.Error(err))
		failed := intake.RawRecord{Payload: fmt.Sprintf("extraction service error: %v", err)}
		entries = normalizer.Normalize(slices.Values([]intake.RawRecord{failed}))
	} else {
		entries = normalizer.Normalize(intake.ParseExtraction(content))
	}

	result := IntakeResult{Items: make([]IntakeItem, 0, len(entries))}
	for _, entry := range entries {
		if !entry.Valid() {
			result.Items = append(result.Items, IntakeItem{Entry: entry})
			continue
		}
		created, err := s.ledger.Create(ctx, entry)
		if err != nil {
			s.logger.Error("failed to commit entry", zap.String("item", entry.Item), zap.Error(err))
			result.Items = append(result.Items, IntakeItem{Entry: entry, CommitError: err.Error()})
			continue
		}
		result.Items = append(result.Items, IntakeItem{Entry: created, Committed: true})
		result.Created++
	}

	s.logger.Info("intake processed", zap.Int("entries", len(result.Items)), zap.Int("created", result.Created))
	return result
}

// Mutate applies field updates, a restock and a sale to one entry and reports the
// outcome as a message. Writes that landed before a failure stay in place.
func (s *Service) Mutate(ctx context.Context, req MutationRequest) string {
	ref := ledger.Reference{ID: strings.TrimSpace(req.ID), Name: strings.TrimSpace(req.ItemName)}
	loc, err := s.ledger.Locate(ctx, ref)
	if err != nil {
		return s.failure("mutation", err)
	}
	// Later steps address the row by id so the name is resolved once.
	target := ledger.Reference{ID: loc.Entry.ID}

	vocab := s.vocab.Snapshot()
	updates := models.FieldUpdates{
		CatalogueNumber: strings.TrimSpace(req.CatalogueNumber),
		StorageLocation: matching.Resolve(strings.TrimSpace(req.StorageLocation), vocab.Locations, s.threshold),
		BoxLabel:        matching.Resolve(strings.TrimSpace(req.BoxLabel), vocab.BoxLabels, s.threshold),
		PlaceBought:     matching.Resolve(strings.TrimSpace(req.PlaceBought), vocab.Sources, s.threshold),
	}
	if !updates.Empty() {
		if _, err := s.ledger.UpdateFields(ctx, target, updates); err != nil {
			return s.failure("mutation", err)
		}
	}

	if raw := strings.TrimSpace(req.RestockQty); raw != "" {
		if qty, err := strconv.Atoi(raw); err != nil {
			s.logger.Warn("ignoring invalid restock quantity", zap.String("value", raw))
		} else if _, err := s.ledger.Restock(ctx, target, qty); err != nil {
			return s.failure("mutation", err)
		}
	}

	if raw := strings.TrimSpace(req.QuantitySold); raw != "" {
		qty, err := strconv.Atoi(raw)
		switch {
		case err != nil || qty <= 0:
			s.logger.Warn("ignoring invalid sale quantity", zap.String("value", raw))
		default:
			_, err := s.ledger.Sell(ctx, ledger.SaleRequest{
				Target:    target,
				Quantity:  qty,
				SoldPrice: parsePrice(req.SoldPrice),
				Buyer:     req.Buyer,
				DateSold:  req.DateSold,
			})
			if err != nil {
				return s.failure("mutation", err)
			}
		}
	}

	label := ref.ID
	if label == "" {
		label = ref.Name
	}
	return fmt.Sprintf("Updated %s successfully!", label)
}

// RecordSale logs a sale against the item best matching the submitted name.
// Unusable quantities count as one unit and unusable prices as zero.
func (s *Service) RecordSale(ctx context.Context, form SaleForm) string {
	qty, err := strconv.Atoi(strings.TrimSpace(form.QuantitySold))
	if err != nil {
		qty = 1
	}

	sale, err := s.ledger.Sell(ctx, ledger.SaleRequest{
		Target:    ledger.Reference{ID: form.ItemID, Name: form.Item},
		Quantity:  qty,
		SoldPrice: parsePrice(form.SoldPrice),
		Buyer:     form.Buyer,
		DateSold:  form.DateSold,
	})
	if err != nil {
		return s.failure("sale", err)
	}
	return fmt.Sprintf("Sold %dx '%s' to %s. Remaining: %d", sale.QuantitySold, sale.Item, sale.Buyer, sale.RemainingAfter)
}

// Describe summarizes one entry for chat replies.
func (s *Service) Describe(ctx context.Context, ref ledger.Reference) string {
	loc, err := s.ledger.Locate(ctx, ref)
	if err != nil {
		return s.failure("stock", err)
	}
	e := loc.Entry
	return fmt.Sprintf("%s %s: %d of %d remaining, %s / %s, £%s each",
		e.ID, e.Item, e.RemainingQty, e.TotalQty, e.StorageLocation, orDash(e.BoxLabel), e.Price.StringFixed(2))
}

// Entries lists the whole inventory.
func (s *Service) Entries(ctx context.Context) ([]models.InventoryEntry, error) {
	return s.ledger.Entries(ctx)
}

// ExtractFields asks the extractor for the form fields spoken in text and snaps the
// vocabulary-backed fields to their canonical values.
func (s *Service) ExtractFields(ctx context.Context, mode, text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}
	if mode == "" {
		mode = "general"
	}

	vocab := s.vocab.Snapshot()
	items, err := s.ledger.ItemNames(ctx)
	if err != nil {
		s.logger.Warn("item names unavailable for field extraction", zap.Error(err))
	}

	content, err := s.extractor.Extract(ctx, fieldInstructions(mode, vocab, items), text)
	if err != nil {
		return nil, fmt.Errorf("extract fields: %w", err)
	}

	fields := map[string]any{}
	if err := json.Unmarshal([]byte(intake.StripFence(content)), &fields); err != nil {
		s.logger.Warn("field extraction returned invalid json", zap.String("content", content))
		return map[string]any{"error": "Failed to parse AI response"}, nil
	}

	snap := func(key string, vocabulary []string) {
		if v, ok := fields[key].(string); ok {
			fields[key] = matching.Resolve(strings.TrimSpace(v), vocabulary, s.threshold)
		}
	}
	snap("storage_location", vocab.Locations)
	snap("box_label", vocab.BoxLabels)
	snap("place_bought", vocab.Sources)
	snap("update_item_name", items)

	return fields, nil
}

// Transcribe never fails: problems come back as the message shown to the user.
func (s *Service) Transcribe(ctx context.Context, audioPath string) string {
	if s.transcriber == nil {
		return "Speech recognition error: no speech service configured"
	}
	text, err := s.transcriber.Transcribe(ctx, audioPath)
	switch {
	case errors.Is(err, speech.ErrNoSpeech):
		return "Could not understand audio"
	case err != nil:
		s.logger.Warn("speech recognition failed", zap.Error(err))
		return fmt.Sprintf("Speech recognition error: %v", err)
	case strings.TrimSpace(text) == "":
		return "Could not understand audio"
	}
	return text
}

func (s *Service) failure(op string, err error) string {
	var (
		amb      *ledger.AmbiguousError
		notFound *ledger.NotFoundError
		short    *ledger.InsufficientStockError
		write    *ledger.StoreWriteError
	)
	switch {
	case errors.As(err, &amb):
		return fmt.Sprintf("Multiple matches found: %s. Please refine your search.", strings.Join(amb.Candidates, ", "))
	case errors.As(err, &notFound):
		return fmt.Sprintf("No matching items found for '%s'.", notFound.Reference)
	case errors.As(err, &short):
		return fmt.Sprintf("Not enough stock for %d of '%s' (%d remaining).", short.Requested, short.Item, short.Available)
	case errors.Is(err, ledger.ErrEmptyReference):
		return "Please provide an item ID or name."
	case errors.Is(err, ledger.ErrInvalidQuantity):
		return "Quantity must be a positive number."
	case errors.As(err, &write):
		s.logger.Error("store write failed", zap.String("op", op), zap.Int("applied", write.Applied), zap.Error(err))
		return fmt.Sprintf("Store error: %v", write.Err)
	default:
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		return fmt.Sprintf("Unexpected error: %v", err)
	}
}

func parsePrice(raw string) decimal.Decimal {
	raw = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), "£$€"))
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
