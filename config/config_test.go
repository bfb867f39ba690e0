package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "DB_DRIVER", "DB_AUTO_MIGRATE", "REDIS_URL", "ENGINE_VERSION", "REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "127.0.0.1:3000", cfg.Addr())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.True(t, cfg.DB.AutoMigrate)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 6*time.Hour, cfg.Redis.TeamCacheTTL)
	assert.Equal(t, "1.0.0", cfg.EngineVersion)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "/tmp/slips.db")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("TEAM_CACHE_TTL", "15m")
	t.Setenv("ENGINE_VERSION", "2.3.1")

	cfg := FromEnv()

	assert.Equal(t, "8088", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/slips.db", cfg.DB.Path)
	assert.False(t, cfg.DB.AutoMigrate)
	assert.Equal(t, 7, cfg.DB.MaxOpenConns)
	assert.Equal(t, 15*time.Minute, cfg.Redis.TeamCacheTTL)
	assert.Equal(t, "2.3.1", cfg.EngineVersion)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_AUTO_MIGRATE", "sometimes")
	t.Setenv("DB_MAX_IDLE_CONNS", "many")
	t.Setenv("RECONNECT_BACKOFF", "soon")

	cfg := FromEnv()

	assert.True(t, cfg.DB.AutoMigrate)
	assert.Equal(t, 5, cfg.DB.MaxIdleConns)
	assert.Equal(t, 5*time.Second, cfg.ReconnectBackoff)
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "slips", SSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=slips port=5433 sslmode=require", c.DSN())
}
