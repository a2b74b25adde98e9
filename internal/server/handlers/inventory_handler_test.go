package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/service/inventory"
)

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) Intake(ctx context.Context, text string) inventory.IntakeResult {
	return m.Called(ctx, text).Get(0).(inventory.IntakeResult)
}

func (m *mockInventory) Mutate(ctx context.Context, req inventory.MutationRequest) string {
	return m.Called(ctx, req).String(0)
}

func (m *mockInventory) RecordSale(ctx context.Context, form inventory.SaleForm) string {
	return m.Called(ctx, form).String(0)
}

func (m *mockInventory) Entries(ctx context.Context) ([]models.InventoryEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]models.InventoryEntry)
	return entries, args.Error(1)
}

func (m *mockInventory) ExtractFields(ctx context.Context, mode, text string) (map[string]any, error) {
	args := m.Called(ctx, mode, text)
	fields, _ := args.Get(0).(map[string]any)
	return fields, args.Error(1)
}

func (m *mockInventory) Transcribe(ctx context.Context, audioPath string) string {
	return m.Called(ctx, audioPath).String(0)
}

type stubReporter struct {
	day time.Time
	err error
}

func (s *stubReporter) BuildStockReport(_ context.Context, day time.Time) (models.StockReport, error) {
	s.day = day
	return models.StockReport{Date: day, Lots: 2, StockValue: "10.00", SalesRevenue: "0.00"}, s.err
}

type stubRefresher struct {
	err error
}

func (s stubRefresher) Refresh(context.Context) (*models.Vocabulary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Vocabulary{Locations: []string{"Garage"}}, nil
}

func newTestEngine(h *InventoryHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/intake", h.Intake)
	r.POST("/mutations", h.Mutate)
	r.POST("/sales", h.RecordSale)
	r.POST("/voice/upload", h.UploadVoice)
	r.POST("/voice/process", h.ProcessVoice)
	r.GET("/inventory", h.ListInventory)
	r.GET("/reports/stock", h.StockReport)
	r.POST("/vocabulary/refresh", h.RefreshVocabulary)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInventoryHandler_Intake(t *testing.T) {
	// Arrange
	svc := new(mockInventory)
	svc.On("Intake", mock.Anything, "2 brass lamps").Return(inventory.IntakeResult{
		Created: 1,
		Items:   []inventory.IntakeItem{{Entry: models.InventoryEntry{ID: "ITEM-1", Item: "Brass Lamp"}, Committed: true}},
	})
	r := newTestEngine(NewInventoryHandler(svc, nil, nil, nil, nil))

	// Act
	w := doJSON(r, http.MethodPost, "/intake", `{"text":"2 brass lamps"}`)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)
	var got inventory.IntakeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Created)
	assert.Equal(t, "ITEM-1", got.Items[0].Entry.ID)

	w = doJSON(r, http.MethodPost, "/intake", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no text received")
}

func TestInventoryHandler_MutateAndSale(t *testing.T) {
	svc := new(mockInventory)
	svc.On("Mutate", mock.Anything, inventory.MutationRequest{ID: "ITEM-2", RestockQty: "4"}).Return("Updated ITEM-2 successfully!")
	svc.On("RecordSale", mock.Anything, inventory.SaleForm{Item: "Lamp", QuantitySold: "1", Buyer: "Ann"}).Return("Sold 1x 'Lamp' to Ann. Remaining: 1")
	r := newTestEngine(NewInventoryHandler(svc, nil, nil, nil, nil))

	w := doJSON(r, http.MethodPost, "/mutations", `{"update_id":"ITEM-2","restock_qty":"4"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Updated ITEM-2 successfully!"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/sales", `{"sales_item":"Lamp","quantity_sold":"1","buyer":"Ann"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Sold 1x 'Lamp' to Ann. Remaining: 1"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/mutations", `{"update_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInventoryHandler_UploadVoice(t *testing.T) {
	svc := new(mockInventory)
	svc.On("Transcribe", mock.Anything, mock.MatchedBy(func(path string) bool {
		data, err := os.ReadFile(path)
		return err == nil && string(data) == "RIFF" && strings.HasSuffix(path, ".wav")
	})).Return("two brass lamps")
	r := newTestEngine(NewInventoryHandler(svc, nil, nil, nil, nil))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio", "note.WAV")
	require.NoError(t, err)
	_, err = part.Write([]byte("RIFF"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/voice/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"recognized_text":"two brass lamps"}`, w.Body.String())
	svc.AssertExpectations(t)

	w = doJSON(r, http.MethodPost, "/voice/upload", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No audio file provided")
}

func TestInventoryHandler_ProcessVoice(t *testing.T) {
	svc := new(mockInventory)
	svc.On("ExtractFields", mock.Anything, "sales", "sold a lamp").Return(map[string]any{"sales_item": "Lamp"}, nil)
	svc.On("ExtractFields", mock.Anything, "", "").Return(nil, inventory.ErrNoText)
	svc.On("ExtractFields", mock.Anything, "update", "x").Return(nil, errors.New("upstream down"))
	r := newTestEngine(NewInventoryHandler(svc, nil, nil, nil, nil))

	w := doJSON(r, http.MethodPost, "/voice/process", `{"text":"sold a lamp","mode":"sales"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sales_item":"Lamp"}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/voice/process", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/voice/process", `{"text":"x","mode":"update"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestInventoryHandler_ListInventory(t *testing.T) {
	svc := new(mockInventory)
	svc.On("Entries", mock.Anything).Return([]models.InventoryEntry{{ID: "ITEM-1", Item: "Lamp"}}, nil).Once()
	svc.On("Entries", mock.Anything).Return(nil, errors.New("quota")).Once()
	r := newTestEngine(NewInventoryHandler(svc, nil, nil, nil, nil))

	w := doJSON(r, http.MethodGet, "/inventory", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = doJSON(r, http.MethodGet, "/inventory", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestInventoryHandler_StockReport(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	reporter := &stubReporter{}
	r := newTestEngine(NewInventoryHandler(new(mockInventory), reporter, nil, loc, nil))

	w := doJSON(r, http.MethodGet, "/reports/stock?date=07/03/2025", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2025, 3, 7, 0, 0, 0, 0, loc), reporter.day)
	assert.Contains(t, w.Body.String(), "Stock report for Fri 07 Mar 2025")

	w = doJSON(r, http.MethodGet, "/reports/stock?date=2025-03-07", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reporter.err = errors.New("boom")
	w = doJSON(r, http.MethodGet, "/reports/stock", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestInventoryHandler_RefreshVocabulary(t *testing.T) {
	r := newTestEngine(NewInventoryHandler(new(mockInventory), nil, stubRefresher{}, nil, nil))
	w := doJSON(r, http.MethodPost, "/vocabulary/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"locations":["Garage"],"box_labels":null,"sources":null}`, w.Body.String())

	r = newTestEngine(NewInventoryHandler(new(mockInventory), nil, stubRefresher{err: errors.New("down")}, nil, nil))
	w = doJSON(r, http.MethodPost, "/vocabulary/refresh", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
