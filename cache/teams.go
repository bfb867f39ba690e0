package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTeamTTL = 6 * time.Hour

type TeamPair struct {
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

// TeamCache holds team names from the global match registry. Failures are
// logged and reported as misses; they never fail the caller.
type TeamCache interface {
	GetTeams(ctx context.Context, matchIDs []int64) map[int64]TeamPair
	SetTeams(ctx context.Context, teams map[int64]TeamPair)
}

type Noop struct{}

func (Noop) GetTeams(context.Context, []int64) map[int64]TeamPair { return nil }
func (Noop) SetTeams(context.Context, map[int64]TeamPair)         {}

type RedisTeams struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisTeams(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisTeams {
	if ttl <= 0 {
		ttl = DefaultTeamTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisTeams{client: client, ttl: ttl, logger: logger.With("component", "team_cache")}
}

// Dial connects to REDIS_URL and checks the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func teamsKey(matchID int64) string {
	return fmt.Sprintf("match:%d:teams", matchID)
}

func (c *RedisTeams) GetTeams(ctx context.Context, matchIDs []int64) map[int64]TeamPair {
	if len(matchIDs) == 0 {
		return nil
	}
	keys := make([]string, len(matchIDs))
	for i, id := range matchIDs {
		keys[i] = teamsKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("team cache read failed", "error", err)
		return nil
	}

	out := make(map[int64]TeamPair, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var pair TeamPair
		if err := json.Unmarshal([]byte(raw), &pair); err != nil {
			c.logger.Warn("dropping unreadable team cache entry", "key", keys[i], "error", err)
			continue
		}
		out[matchIDs[i]] = pair
	}
	return out
}

func (c *RedisTeams) SetTeams(ctx context.Context, teams map[int64]TeamPair) {
	if len(teams) == 0 {
		return
	}
	pipe := c.client.Pipeline()
	for id, pair := range teams {
		data, err := json.Marshal(pair)
		if err != nil {
			continue
		}
		pipe.Set(ctx, teamsKey(id), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("team cache write failed", "error", err)
	}
}
