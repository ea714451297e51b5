package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
	"github.com/shadda-scores/internal/stats"
)

// StatisticsService serves the aggregate statistics over completed games
type StatisticsService struct {
	store  Store
	cache  StatisticsCache
	config *config.StatisticsConfig
	logger *slog.Logger
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(store Store, cfg *config.StatisticsConfig, logger *slog.Logger) *StatisticsService {
	return &StatisticsService{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

// SetCache sets the statistics snapshot cache
func (s *StatisticsService) SetCache(c StatisticsCache) {
	s.cache = c
}

// GetStatistics returns statistics, limited to the given number of most
// recent dates. days <= 0 uses the configured default.
func (s *StatisticsService) GetStatistics(ctx context.Context, days int) (*domain.Statistics, error) {
	if days <= 0 {
		days = s.config.RecentDays
	}

	if s.cache != nil {
		cached, err := s.cache.GetStatistics(ctx)
		if err == nil {
			out := cached.RecentDays(days)
			return &out, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("failed to read statistics cache", "error", err)
		}
	}

	full, err := s.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	out := full.RecentDays(days)
	return &out, nil
}

// Refresh recomputes the statistics from the store and caches them
func (s *StatisticsService) Refresh(ctx context.Context) (*domain.Statistics, error) {
	completed := true
	games, err := s.store.ListGames(ctx, &completed)
	if err != nil {
		return nil, fmt.Errorf("listing completed games: %w", err)
	}
	gamePlayers, err := s.store.ListCompletedGamePlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing completed game players: %w", err)
	}
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}

	result := stats.Aggregate(games, gamePlayers, players)

	if s.cache != nil {
		if err := s.cache.SetStatistics(ctx, result); err != nil {
			s.logger.Warn("failed to cache statistics", "error", err)
		}
	}
	return &result, nil
}

// Invalidate drops the cached snapshot
func (s *StatisticsService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateStatistics(ctx)
}

// Publish drops the cached snapshot when a game completes or a completed
// game is repaired
func (s *StatisticsService) Publish(ctx context.Context, event domain.GameEvent) error {
	switch {
	case event.Type == domain.EventGameCompleted:
	case event.Type == domain.EventGameRepaired && event.Completed:
	default:
		return nil
	}
	return s.Invalidate(ctx)
}
