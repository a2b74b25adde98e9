package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/service/reporting"
	service "github.com/mamadbah2/stockbook/internal/service/whatsapp"
)

// WebhookHandler handles inbound and outbound WhatsApp HTTP events.
type WebhookHandler struct {
	svc      service.MessagingService
	reports  StockReporter
	location *time.Location
	logger   *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter. reports may be nil, which
// disables SendReport.
func NewWebhookHandler(svc service.MessagingService, reports StockReporter, loc *time.Location, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WebhookHandler{svc: svc, reports: reports, location: loc, logger: logger}
}

type verifyQuery struct {
	Mode      string `form:"hub.mode"`
	Token     string `form:"hub.verify_token"`
	Challenge string `form:"hub.challenge"`
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	var q verifyQuery
	_ = c.ShouldBindQuery(&q)

	resp, err := h.svc.VerifyWebhookToken(q.Mode, q.Token, q.Challenge)
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err), zap.String("request_id", c.GetString(RequestIDKey)))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, resp)
}

// Receive ingests webhook POST callbacks from Meta. Processing failures are logged
// and still acknowledged: Meta redelivers on any non-200 answer, which would
// commit the same intake message twice.
func (h *WebhookHandler) Receive(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload); err != nil {
		h.logger.Error("failed processing webhook",
			zap.Error(err),
			zap.String("request_id", c.GetString(RequestIDKey)))
	}

	c.Status(http.StatusOK)
}

// SendMessage pushes an operator message to a WhatsApp number.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	h.send(c, req)
}

// SendReport builds a stock report and sends its chat summary.
func (h *WebhookHandler) SendReport(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reports are not available"})
		return
	}

	var req models.StockReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	day := time.Now().In(h.location)
	if req.Date != "" {
		parsed, err := time.ParseInLocation(models.DateLayout, req.Date, h.location)
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

	h.send(c, models.OutboundMessageRequest{To: req.To, Message: reporting.FormatStockReport(report)})
}

func (h *WebhookHandler) send(c *gin.Context, req models.OutboundMessageRequest) {
	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.Error(err), zap.String("to", req.To))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}
