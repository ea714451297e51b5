package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
)

// GameReconciler rebuilds derived game state from persisted scores
type GameReconciler interface {
	ListGames(ctx context.Context, completed *bool) ([]domain.Game, error)
	Reconcile(ctx context.Context, gameID string) (bool, error)
}

// StatisticsRefresher recomputes the cached statistics snapshot
type StatisticsRefresher interface {
	Refresh(ctx context.Context) (*domain.Statistics, error)
}

// ReconcileWorker periodically repairs game totals and fateet flags and
// refreshes the statistics snapshot
type ReconcileWorker struct {
	games   GameReconciler
	stats   StatisticsRefresher
	config  *config.ReconcileConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(
	games GameReconciler,
	stats StatisticsRefresher,
	cfg *config.ReconcileConfig,
	logger *slog.Logger,
) *ReconcileWorker {
	return &ReconcileWorker{
		games:  games,
		stats:  stats,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background reconcile process
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("reconcile worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background reconcile process
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("reconcile worker stopped")
	return nil
}

func (w *ReconcileWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx, false)
		}
	}
}

// RunOnce reconciles running games, or every game when all is set, then
// refreshes statistics. It returns how many games were repaired.
func (w *ReconcileWorker) RunOnce(ctx context.Context, all bool) int {
	startTime := time.Now()

	var filter *bool
	if !all {
		active := false
		filter = &active
	}
	games, err := w.games.ListGames(ctx, filter)
	if err != nil {
		w.logger.Error("failed to list games for reconcile", "error", err)
		return 0
	}

	repaired := 0
	errorCount := 0
	for _, g := range games {
		changed, err := w.games.Reconcile(ctx, g.ID)
		if err != nil {
			w.logger.Error("failed to reconcile game", "game_id", g.ID, "error", err)
			errorCount++
			continue
		}
		if changed {
			repaired++
		}
	}

	if w.stats != nil {
		if _, err := w.stats.Refresh(ctx); err != nil {
			w.logger.Warn("failed to refresh statistics", "error", err)
		}
	}

	w.logger.Info("reconcile cycle completed",
		"duration", time.Since(startTime),
		"games", len(games),
		"repaired", repaired,
		"errors", errorCount,
	)
	return repaired
}

// IsRunning returns whether the worker is currently running
func (w *ReconcileWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
