package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"linkpage/internal/config"
)

const (
	cleanupInterval      = 24 * time.Hour
	geoLiteCheckInterval = 24 * time.Hour
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	// Job instances
	cleanupJob *CleanupJob
	geoLiteJob *GeoLiteUpdaterJob

	// Tickers for each job type
	cleanupTicker *time.Ticker
	geoLiteTicker *time.Ticker
	wg            sync.WaitGroup
}

var _ cartridge.BackgroundWorker = (*Scheduler)(nil)

func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		enabled:    true,
		cleanupJob: NewCleanupJob(dbManager, logger, cfg),
		geoLiteJob: NewGeoLiteUpdaterJob(logger, cfg),
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func() error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	s.cleanupTicker = s.startJob("cleanup", cleanupInterval, s.cleanupJob.Run)
	s.geoLiteTicker = s.startJob("geolite_updater", geoLiteCheckInterval, s.geoLiteJob.Run)

	s.logger.Info("Background jobs started", slog.Bool("isRunning", s.isRunning))
	return nil
}

// startJob runs jobFunc once and then on every tick until Stop.
func (s *Scheduler) startJob(name string, interval time.Duration, jobFunc func() error) *time.Ticker {
	s.logger.Info("Starting job", slog.String("job", name), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(name, jobFunc)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(name, jobFunc)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", name))
				return
			}
		}
	}()

	return ticker
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}
	if s.geoLiteTicker != nil {
		s.geoLiteTicker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunCleanup runs the retention cleanup immediately
func (s *Scheduler) RunCleanup() error {
	return s.cleanupJob.Run()
}
