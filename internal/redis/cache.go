package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shadda-scores/internal/config"
	"github.com/shadda-scores/internal/domain"
)

const statisticsKey = "shadda:statistics"

// Cache keeps live standings of running games and the statistics snapshot
type Cache struct {
	client       *redis.Client
	standingsTTL time.Duration
	statsTTL     time.Duration
	logger       *slog.Logger
}

// NewCache connects to Redis and returns a cache
func NewCache(cfg *config.RedisConfig, statsTTL time.Duration, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Cache{
		client:       client,
		standingsTTL: cfg.StandingsTTL,
		statsTTL:     statsTTL,
		logger:       logger,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// standingsKey returns the Redis key for a game's standings hash
func (c *Cache) standingsKey(gameID string) string {
	return fmt.Sprintf("shadda:game:%s:standings", gameID)
}

// SetStandings replaces the cached standings of a game. Hash fields are the
// seat positions so reads keep seat order.
func (c *Cache) SetStandings(ctx context.Context, gameID string, standings []domain.Standing) error {
	key := c.standingsKey(gameID)

	values := make([]interface{}, 0, len(standings)*2)
	for i, st := range standings {
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("marshaling standing: %w", err)
		}
		values = append(values, strconv.Itoa(i), data)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(values) > 0 {
		pipe.HSet(ctx, key, values...)
		if c.standingsTTL > 0 {
			pipe.Expire(ctx, key, c.standingsTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("setting standings: %w", err)
	}
	return nil
}

// GetStandings returns the cached standings of a game
func (c *Cache) GetStandings(ctx context.Context, gameID string) ([]domain.Standing, error) {
	result, err := c.client.HGetAll(ctx, c.standingsKey(gameID)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting standings: %w", err)
	}
	if len(result) == 0 {
		return nil, domain.ErrCacheMiss
	}

	type seated struct {
		seat     int
		standing domain.Standing
	}
	rows := make([]seated, 0, len(result))
	for field, raw := range result {
		seat, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("parsing standings field %q: %w", field, err)
		}
		var st domain.Standing
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			return nil, fmt.Errorf("unmarshaling standing: %w", err)
		}
		rows = append(rows, seated{seat: seat, standing: st})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seat < rows[j].seat })

	standings := make([]domain.Standing, len(rows))
	for i, r := range rows {
		standings[i] = r.standing
	}
	return standings, nil
}

// DeleteStandings drops the cached standings of a game
func (c *Cache) DeleteStandings(ctx context.Context, gameID string) error {
	if err := c.client.Del(ctx, c.standingsKey(gameID)).Err(); err != nil {
		return fmt.Errorf("deleting standings: %w", err)
	}
	return nil
}

// SetStatistics stores the statistics snapshot
func (c *Cache) SetStatistics(ctx context.Context, stats domain.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling statistics: %w", err)
	}
	if err := c.client.Set(ctx, statisticsKey, data, c.statsTTL).Err(); err != nil {
		return fmt.Errorf("setting statistics: %w", err)
	}
	return nil
}

// GetStatistics returns the statistics snapshot
func (c *Cache) GetStatistics(ctx context.Context) (*domain.Statistics, error) {
	data, err := c.client.Get(ctx, statisticsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("getting statistics: %w", err)
	}

	var stats domain.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling statistics: %w", err)
	}
	return &stats, nil
}

// InvalidateStatistics drops the statistics snapshot
func (c *Cache) InvalidateStatistics(ctx context.Context) error {
	if err := c.client.Del(ctx, statisticsKey).Err(); err != nil {
		return fmt.Errorf("invalidating statistics: %w", err)
	}
	return nil
}
