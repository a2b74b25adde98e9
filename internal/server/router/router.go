package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/server/handlers"
)

const requestIDHeader = "X-Request-ID"

// Options carries the router wiring. Webhook may be nil when WhatsApp is disabled.
type Options struct {
	ServiceName string
	RateLimit   string
	Inventory   *handlers.InventoryHandler
	Webhook     *handlers.WebhookHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(opts Options, logger *zap.Logger) (*gin.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", opts.RateLimit, err)
	}
	limited := mgin.NewMiddleware(limiter.New(memory.NewStore(), rate))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(zapLoggerMiddleware(logger))

	api := r.Group("/api")
	{
		inv := opts.Inventory
		api.POST("/intake", limited, inv.Intake)
		api.POST("/mutations", inv.Mutate)
		api.POST("/sales", inv.RecordSale)
		api.POST("/voice/upload", limited, inv.UploadVoice)
		api.POST("/voice/process", limited, inv.ProcessVoice)
		api.GET("/inventory", inv.ListInventory)
		api.GET("/reports/stock", inv.StockReport)
		api.POST("/vocabulary/refresh", inv.RefreshVocabulary)
	}

	if opts.Webhook != nil {
		r.GET("/webhook", opts.Webhook.Verify)
		r.POST("/webhook", opts.Webhook.Receive)
		r.POST("/send-message", opts.Webhook.SendMessage)
		r.POST("/send-report", opts.Webhook.SendReport)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	logger.Info("router initialized", zap.Bool("whatsapp", opts.Webhook != nil), zap.String("rate_limit", opts.RateLimit))
	return r, nil
}

// requestIDMiddleware keeps an incoming X-Request-ID or assigns a new one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(handlers.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(handlers.RequestIDKey)))
	}
}
