package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/config"
	"github.com/mamadbah2/stockbook/internal/repository/memory"
	"github.com/mamadbah2/stockbook/internal/repository/mongodb"
	"github.com/mamadbah2/stockbook/internal/repository/redis"
	"github.com/mamadbah2/stockbook/internal/repository/sheets"
	"github.com/mamadbah2/stockbook/internal/scheduler"
	"github.com/mamadbah2/stockbook/internal/server/handlers"
	"github.com/mamadbah2/stockbook/internal/server/router"
	"github.com/mamadbah2/stockbook/internal/service/commands"
	"github.com/mamadbah2/stockbook/internal/service/inventory"
	"github.com/mamadbah2/stockbook/internal/service/ledger"
	"github.com/mamadbah2/stockbook/internal/service/reporting"
	"github.com/mamadbah2/stockbook/internal/service/vocabulary"
	whatsappsvc "github.com/mamadbah2/stockbook/internal/service/whatsapp"
	"github.com/mamadbah2/stockbook/internal/telemetry"
	"github.com/mamadbah2/stockbook/pkg/clients/anthropic"
	"github.com/mamadbah2/stockbook/pkg/clients/deepseek"
	"github.com/mamadbah2/stockbook/pkg/clients/speech"
	whatsappclient "github.com/mamadbah2/stockbook/pkg/clients/whatsapp"
	"github.com/mamadbah2/stockbook/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "path to an env file (defaults to ./.env when present)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Server.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, logger.Named(baseLogger, "telemetry"))
	if err != nil {
		baseLogger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			baseLogger.Error("failed to flush traces", zap.Error(err))
		}
	}()

	store, err := newStore(ctx, cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to init tabular store", zap.Error(err))
	}

	var sequence ledger.Sequence
	if cfg.Redis.Enabled() {
		redisClient, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			baseLogger.Fatal("failed to init redis", zap.Error(err))
		}
		defer redisClient.Close()
		sequence = redis.NewSequence(redisClient, redis.DefaultSequenceKey, logger.Named(baseLogger, "repo.redis"))
		baseLogger.Info("redis id sequence enabled", zap.String("addr", cfg.Redis.Addr))
	}

	stockLedger := ledger.New(store, ledger.Sheets{Inventory: cfg.Sheets.Inventory, Sales: cfg.Sheets.Sales},
		sequence, cfg.Store.MatchThreshold, logger.Named(baseLogger, "svc.ledger"))

	vocabIndex := vocabulary.NewIndex(store, cfg.Sheets.Maintenance, logger.Named(baseLogger, "svc.vocabulary"))
	if _, err := vocabIndex.Refresh(ctx); err != nil {
		baseLogger.Warn("initial vocabulary load failed, starting with an empty vocabulary", zap.Error(err))
	}

	// Interface-typed so a missing key leaves them nil rather than typed nil.
	var (
		invTranscriber  inventory.SpeechTranscriber
		chatTranscriber whatsappsvc.Transcriber
	)
	if cfg.Speech.APIKey != "" {
		transcriber := speech.NewClient(speech.Config{APIKey: cfg.Speech.APIKey, Language: cfg.Speech.Language}, logger.Named(baseLogger, "client.speech"))
		invTranscriber, chatTranscriber = transcriber, transcriber
	} else {
		baseLogger.Warn("speech api key missing, voice input disabled")
	}

	inventorySvc := inventory.NewService(stockLedger, vocabIndex, newExtractor(cfg.Extraction, baseLogger), invTranscriber,
		cfg.Store.MatchThreshold, logger.Named(baseLogger, "svc.inventory"))
	reportingSvc := reporting.NewService(stockLedger, logger.Named(baseLogger, "svc.reporting"))

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	var (
		messagingSvc   whatsappsvc.MessagingService
		webhookHandler *handlers.WebhookHandler
	)
	if cfg.WhatsApp.Enabled() {
		dispatcher := commands.NewService(inventorySvc, logger.Named(baseLogger, "svc.commands"))
		meta := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp, whatsappclient.NewClient(cfg.WhatsApp), dispatcher, chatTranscriber, logger.Named(baseLogger, "svc.whatsapp"))
		messagingSvc = meta
		webhookHandler = handlers.NewWebhookHandler(meta, reportingSvc, loc, logger.Named(baseLogger, "handlers.whatsapp"))
	} else {
		baseLogger.Warn("whatsapp token missing, chat channel disabled")
	}

	var archive mongodb.ReportArchive
	if cfg.MongoDB.Enabled() {
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		archive = mongoRepo
	}

	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, vocabIndex, archive, messagingSvc, logger.Named(baseLogger, "scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	inventoryHandler := handlers.NewInventoryHandler(inventorySvc, reportingSvc, vocabIndex, loc, logger.Named(baseLogger, "handlers.inventory"))

	engine, err := router.New(router.Options{
		ServiceName: cfg.Telemetry.ServiceName,
		RateLimit:   cfg.Server.RateLimit,
		Inventory:   inventoryHandler,
		Webhook:     webhookHandler,
	}, logger.Named(baseLogger, "router"))
	if err != nil {
		baseLogger.Fatal("failed to init router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// newStore opens the configured tabular store. The memory store starts with empty
// sheets carrying their headers.
func newStore(ctx context.Context, cfg *config.Config, base *zap.Logger) (ledger.TabularStore, error) {
	if cfg.Store.Backend == config.BackendMemory {
		base.Warn("using the in-memory store, data is lost on restart")
		store := memory.NewStore()
		store.Seed(cfg.Sheets.Inventory, ledger.InventoryHeader())
		store.Seed(cfg.Sheets.Sales, ledger.SalesHeader())
		store.Seed(cfg.Sheets.Maintenance, []string{"storage_location", "box_label", "", "place_bought"})
		return store, nil
	}
	return sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, logger.Named(base, "repo.sheets"))
}

func newExtractor(cfg config.ExtractionConfig, base *zap.Logger) inventory.TextExtractor {
	if cfg.Provider == config.ProviderAnthropic {
		return anthropic.NewClient(anthropic.Config{APIKey: cfg.AnthropicKey, Model: cfg.AnthropicModel}, logger.Named(base, "client.anthropic"))
	}
	return deepseek.NewClient(deepseek.Config{APIKey: cfg.DeepSeekKey, BaseURL: cfg.DeepSeekBaseURL, Model: cfg.DeepSeekModel}, logger.Named(base, "client.deepseek"))
}
