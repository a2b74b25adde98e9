package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/config"
	"github.com/mamadbah2/stockbook/internal/domain/models"
	"github.com/mamadbah2/stockbook/internal/repository/mongodb"
	"github.com/mamadbah2/stockbook/internal/service/reporting"
	"github.com/mamadbah2/stockbook/internal/service/whatsapp"
)

const jobTimeout = 2 * time.Minute

// StockReporter builds the daily stock report.
type StockReporter interface {
	BuildStockReport(ctx context.Context, day time.Time) (models.StockReport, error)
}

// VocabularyRefresher reloads the canonical vocabulary.
type VocabularyRefresher interface {
	Refresh(ctx context.Context) (*models.Vocabulary, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron      *cron.Cron
	cfg       config.ReportingConfig
	location  *time.Location
	reporter  StockReporter
	vocab     VocabularyRefresher
	archive   mongodb.ReportArchive
	messaging whatsapp.MessagingService
	logger    *zap.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance. archive and messaging are optional;
// a nil value skips that step of the daily report.
func NewScheduler(cfg config.ReportingConfig, reporter StockReporter, vocab VocabularyRefresher, archive mongodb.ReportArchive, messaging whatsapp.MessagingService, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		cfg:       cfg,
		location:  loc,
		reporter:  reporter,
		vocab:     vocab,
		archive:   archive,
		messaging: messaging,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("report_schedule", s.cfg.CronSchedule),
		zap.String("vocabulary_schedule", s.cfg.VocabularySchedule),
		zap.String("timezone", s.location.String()))

	if _, err := s.cron.AddFunc(s.cfg.VocabularySchedule, s.refreshVocabulary); err != nil {
		return fmt.Errorf("schedule vocabulary refresh: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.sendDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refreshVocabulary() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	vocab, err := s.vocab.Refresh(ctx)
	if err != nil {
		s.logger.Error("scheduled vocabulary refresh failed", zap.Error(err))
		return
	}
	s.logger.Debug("vocabulary refreshed",
		zap.Int("locations", len(vocab.Locations)),
		zap.Int("box_labels", len(vocab.BoxLabels)),
		zap.Int("sources", len(vocab.Sources)))
}

func (s *Scheduler) sendDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.runDailyReport(ctx); err != nil {
		s.logger.Error("daily report failed", zap.Error(err))
	}
}

// runDailyReport builds today's report, archives it and sends it. Archive and
// delivery are independent: a failed archive does not hold back the message.
func (s *Scheduler) runDailyReport(ctx context.Context) error {
	s.logger.Info("generating daily stock report")

	report, err := s.reporter.BuildStockReport(ctx, s.now().In(s.location))
	if err != nil {
		return fmt.Errorf("build stock report: %w", err)
	}

	var firstErr error
	if s.archive != nil {
		if err := s.archive.SaveStockReport(ctx, report); err != nil {
			firstErr = fmt.Errorf("archive stock report: %w", err)
			s.logger.Error("failed to archive stock report", zap.Error(err))
		}
	}

	if s.messaging != nil && s.cfg.Recipient != "" {
		req := models.OutboundMessageRequest{
			To:      s.cfg.Recipient,
			Message: reporting.FormatStockReport(report),
		}
		if err := s.messaging.SendOutbound(ctx, req); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("send stock report: %w", err)
			}
		} else {
			s.logger.Info("daily report sent successfully", zap.String("to", s.cfg.Recipient))
		}
	}

	return firstErr
}
