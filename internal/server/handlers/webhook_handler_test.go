package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mamadbah2/stockbook/internal/domain/models"
)

type mockMessaging struct {
	mock.Mock
}

func (m *mockMessaging) VerifyWebhookToken(mode, verifyToken, challenge string) (string, error) {
	args := m.Called(mode, verifyToken, challenge)
	return args.String(0), args.Error(1)
}

func (m *mockMessaging) HandleWebhook(ctx context.Context, payload models.WebhookPayload) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *mockMessaging) SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error {
	return m.Called(ctx, req).Error(0)
}

func newWebhookEngine(svc *mockMessaging) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWebhookHandler(svc, &stubReporter{}, nil, nil)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	r.POST("/send-message", h.SendMessage)
	r.POST("/send-report", h.SendReport)
	return r
}

func TestWebhookHandler_Verify(t *testing.T) {
	svc := new(mockMessaging)
	svc.On("VerifyWebhookToken", "subscribe", "secret", "42").Return("42", nil)
	svc.On("VerifyWebhookToken", "subscribe", "nope", "42").Return("", errors.New("invalid verify token"))
	r := newWebhookEngine(svc)

	w := doJSON(r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = doJSON(r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebhookHandler_ReceiveAcknowledgesFailures(t *testing.T) {
	svc := new(mockMessaging)
	svc.On("HandleWebhook", mock.Anything, mock.Anything).Return(errors.New("send failed"))
	r := newWebhookEngine(svc)

	w := doJSON(r, http.MethodPost, "/webhook", `{"object":"whatsapp_business_account","entry":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)

	w = doJSON(r, http.MethodPost, "/webhook", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_SendMessage(t *testing.T) {
	svc := new(mockMessaging)
	svc.On("SendOutbound", mock.Anything, models.OutboundMessageRequest{To: "447700", Message: "hi"}).Return(nil)
	r := newWebhookEngine(svc)

	w := doJSON(r, http.MethodPost, "/send-message", `{"to":"447700","message":"hi"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(r, http.MethodPost, "/send-message", `{"to":"447700"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_SendReport(t *testing.T) {
	svc := new(mockMessaging)
	svc.On("SendOutbound", mock.Anything, mock.MatchedBy(func(req models.OutboundMessageRequest) bool {
		return req.To == "447700" && strings.HasPrefix(req.Message, "Stock report for Fri 07 Mar 2025")
	})).Return(nil)
	r := newWebhookEngine(svc)

	w := doJSON(r, http.MethodPost, "/send-report", `{"to":"447700","date":"07/03/2025"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)

	w = doJSON(r, http.MethodPost, "/send-report", `{"to":"447700","date":"March"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h := NewWebhookHandler(svc, nil, nil, nil)
	gin.SetMode(gin.TestMode)
	bare := gin.New()
	bare.POST("/send-report", h.SendReport)
	w = doJSON(bare, http.MethodPost, "/send-report", `{"to":"447700"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
