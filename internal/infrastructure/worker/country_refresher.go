package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"go.uber.org/zap"
)

// CountryRefresherConfig holds configuration for the country refresher
type CountryRefresherConfig struct {
	Interval       time.Duration
	RefreshTimeout time.Duration
	// RefreshOnStart warms the cache right after Start
	RefreshOnStart bool
}

// DefaultCountryRefresherConfig returns default configuration
func DefaultCountryRefresherConfig() CountryRefresherConfig {
	return CountryRefresherConfig{
		Interval:       12 * time.Hour,
		RefreshTimeout: 30 * time.Second,
		RefreshOnStart: true,
	}
}

// CountryRefresher periodically reloads the country directory cache
type CountryRefresher struct {
	config    CountryRefresherConfig
	directory port.CountryDirectory
	logger    *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	refreshes int
	failures  int
}

// NewCountryRefresher creates a refresher for directory
func NewCountryRefresher(config CountryRefresherConfig, directory port.CountryDirectory, logger *zap.Logger) *CountryRefresher {
	if config.Interval <= 0 {
		config.Interval = DefaultCountryRefresherConfig().Interval
	}
	if config.RefreshTimeout <= 0 {
		config.RefreshTimeout = DefaultCountryRefresherConfig().RefreshTimeout
	}
	return &CountryRefresher{
		config:    config,
		directory: directory,
		logger:    logger,
	}
}

// Start launches the refresh loop
func (w *CountryRefresher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("country refresher already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("CountryRefresher started", zap.Duration("interval", w.config.Interval))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight refresh to return
func (w *CountryRefresher) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.cancel()
	done := w.done
	w.mu.Unlock()

	<-done

	w.mu.Lock()
	w.logger.Info("CountryRefresher stopped",
		zap.Int("refreshes", w.refreshes),
		zap.Int("failures", w.failures))
	w.mu.Unlock()
	return nil
}

// Name returns the worker name for identification
func (w *CountryRefresher) Name() string {
	return "CountryRefresher"
}

// Stats returns successful and failed refresh counts
func (w *CountryRefresher) Stats() (refreshes, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshes, w.failures
}

func (w *CountryRefresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if w.config.RefreshOnStart {
		w.refresh(ctx)
	}

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *CountryRefresher) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, w.config.RefreshTimeout)
	defer cancel()

	err := w.directory.Refresh(refreshCtx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		// Cancellation during shutdown is not a failure worth reporting.
		if ctx.Err() != nil {
			return
		}
		w.failures++
		w.logger.Warn("Failed to refresh countries", zap.Error(err))
		return
	}
	w.refreshes++
	w.logger.Debug("Countries refreshed")
}
