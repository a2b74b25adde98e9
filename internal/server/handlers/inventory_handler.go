package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/service/inventory"
	"github.com/mamadbah2/stockbook/internal/service/reporting"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

const maxAudioBytes = 10 << 20

// InventoryService is the part of the inventory service the HTTP API exposes.
type InventoryService interface {
	Intake(ctx context.Context, text string) inventory.IntakeResult
	Mutate(ctx context.Context, req inventory.MutationRequest) string
	RecordSale(ctx context.Context, form inventory.SaleForm) string
	Entries(ctx context.Context) ([]models.InventoryEntry, error)
	ExtractFields(ctx context.Context, mode, text string) (map[string]any, error)
	Transcribe(ctx context.Context, audioPath string) string
}

// StockReporter builds the stock report served by the API.
type StockReporter interface {
	BuildStockReport(ctx context.Context, day time.Time) (models.StockReport, error)
}

// VocabularyRefresher reloads the canonical vocabulary.
type VocabularyRefresher interface {
	Refresh(ctx context.Context) (*models.Vocabulary, error)
}

// InventoryHandler serves the JSON inventory API.
type InventoryHandler struct {
	svc      InventoryService
	reports  StockReporter
	vocab    VocabularyRefresher
	location *time.Location
	logger   *zap.Logger
}

// NewInventoryHandler constructs the HTTP handler adapter. Report days are taken in loc.
func NewInventoryHandler(svc InventoryService, reports StockReporter, vocab VocabularyRefresher, loc *time.Location, logger *zap.Logger) *InventoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &InventoryHandler{svc: svc, reports: reports, vocab: vocab, location: loc, logger: logger}
}

type textRequest struct {
	Text string `json:"text" form:"text"`
	Mode string `json:"mode" form:"mode"`
}

// Intake commits the items described by a free-text submission.
func (h *InventoryHandler) Intake(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": inventory.ErrNoText.Error()})
		return
	}

	result := h.svc.Intake(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, result)
}

// Mutate applies an update form.
func (h *InventoryHandler) Mutate(c *gin.Context) {
	var req inventory.MutationRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.Warn("invalid mutation payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": h.svc.Mutate(c.Request.Context(), req)})
}

// RecordSale applies a sales form.
func (h *InventoryHandler) RecordSale(c *gin.Context) {
	var form inventory.SaleForm
	if err := c.ShouldBind(&form); err != nil {
		h.logger.Warn("invalid sale payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": h.svc.RecordSale(c.Request.Context(), form)})
}

// UploadVoice transcribes the multipart "audio" file.
func (h *InventoryHandler) UploadVoice(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}
	if file.Size > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "audio file too large"})
		return
	}

	tmp, err := os.CreateTemp("", "upload-*"+strings.ToLower(filepath.Ext(file.Filename)))
	if err != nil {
		h.logger.Error("create temp audio file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store audio"})
		return
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Error("save uploaded audio", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store audio"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"recognized_text": h.svc.Transcribe(c.Request.Context(), path)})
}

// ProcessVoice maps recognized text onto the fields of a form.
func (h *InventoryHandler) ProcessVoice(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	fields, err := h.svc.ExtractFields(c.Request.Context(), req.Mode, req.Text)
	switch {
	case errors.Is(err, inventory.ErrNoText):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("field extraction failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, fields)
	}
}

// ListInventory returns every inventory row.
func (h *InventoryHandler) ListInventory(c *gin.Context) {
	entries, err := h.svc.Entries(c.Request.Context())
	if err != nil {
		h.logger.Error("list inventory failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to read inventory"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

// StockReport returns the report for ?date=dd/mm/yyyy, today by default.
func (h *InventoryHandler) StockReport(c *gin.Context) {
	day := time.Now().In(h.location)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, raw, h.location)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be dd/mm/yyyy"})
			return
		}
		day = parsed
	}

	report, err := h.reports.BuildStockReport(c.Request.Context(), day)
	if err != nil {
		h.logger.Error("build stock report failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to build report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "summary": reporting.FormatStockReport(report)})
}

// RefreshVocabulary reloads the maintenance lists.
func (h *InventoryHandler) RefreshVocabulary(c *gin.Context) {
	vocab, err := h.vocab.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Error("vocabulary refresh failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to refresh vocabulary"})
		return
	}
	c.JSON(http.StatusOK, vocab)
}
