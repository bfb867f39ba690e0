package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"slipsync/apperrors"
	"slipsync/config"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Ready
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Dialector produces a fresh gorm dialector for every connection attempt.
type Dialector func() gorm.Dialector

func Postgres(dsn string) Dialector {
	return func() gorm.Dialector { return postgres.Open(dsn) }
}

func SQLite(path string) Dialector {
	return func() gorm.Dialector { return sqlite.Open(path) }
}

func DialectorFor(cfg config.DBConfig) (Dialector, error) {
	switch cfg.Driver {
	case "", "postgres":
		return Postgres(cfg.DSN()), nil
	case "sqlite":
		return SQLite(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Option func(*Gateway)

func WithPool(p PoolConfig) Option {
	return func(g *Gateway) { g.pool = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

func WithReconnectBackoff(d time.Duration) Option {
	return func(g *Gateway) { g.backoff = d }
}

// Gateway owns the storage handle. Nothing reads it from a global; callers
// receive the Gateway and ask it for the handle on every operation.
type Gateway struct {
	dialect Dialector
	pool    PoolConfig
	backoff time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// connectMu serialises connection attempts; mu guards the fields below.
	connectMu sync.Mutex

	mu          sync.RWMutex
	db          *gorm.DB
	state       State
	lastErr     error
	lastAttempt time.Time
}

func NewGateway(dialect Dialector, opts ...Option) *Gateway {
	g := &Gateway{
		dialect: dialect,
		backoff: 5 * time.Second,
		logger:  slog.Default(),
		now:     time.Now,
		state:   Disconnected,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "storage")
	return g
}

func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// LastError is the failure that moved the gateway out of Ready, if any.
func (g *Gateway) LastError() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastErr
}

func (g *Gateway) Connect(ctx context.Context) error {
	g.connectMu.Lock()
	defer g.connectMu.Unlock()
	return g.connect(ctx)
}

// Reconnect drops the current handle (if any) and connects again.
func (g *Gateway) Reconnect(ctx context.Context) error {
	return g.Connect(ctx)
}

// EnsureReady reconnects lazily when the gateway is not Ready, at most once per backoff window.
func (g *Gateway) EnsureReady(ctx context.Context) error {
	if g.State() == Ready {
		return nil
	}
	if !g.connectMu.TryLock() {
		return g.unavailable()
	}
	defer g.connectMu.Unlock()

	g.mu.RLock()
	state, last := g.state, g.lastAttempt
	g.mu.RUnlock()

	if state == Ready {
		return nil
	}
	if !last.IsZero() && g.now().Sub(last) < g.backoff {
		return g.unavailable()
	}
	if err := g.connect(ctx); err != nil {
		return g.unavailable()
	}
	return nil
}

func (g *Gateway) connect(ctx context.Context) error {
	g.mu.Lock()
	old := g.db
	g.db = nil
	g.state = Connecting
	g.lastAttempt = g.now()
	g.mu.Unlock()

	if old != nil {
		closeDB(old)
	}

	db, err := g.open(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.state = Degraded
		g.lastErr = err
		g.logger.Error("failed to connect to database", "error", err)
		return err
	}
	g.db = db
	g.state = Ready
	g.lastErr = nil
	g.logger.Info("connected to database")
	return nil
}

// gormLogger sends slow queries and driver errors through the gateway's slog logger.
func (g *Gateway) gormLogger() gormlogger.Interface {
	return gormlogger.New(slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func (g *Gateway) open(ctx context.Context) (*gorm.DB, error) {
	db, err := gorm.Open(g.dialect(), &gorm.Config{
		TranslateError:       true,
		DisableAutomaticPing: true,
		Logger:               g.gormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	if g.pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(g.pool.MaxOpenConns)
	}
	if g.pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(g.pool.MaxIdleConns)
	}
	if g.pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(g.pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// DB hands out the handle, or ErrStorageUnavailable when the gateway is not Ready.
func (g *Gateway) DB() (*gorm.DB, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.state != Ready || g.db == nil {
		return nil, g.unavailableLocked()
	}
	return g.db, nil
}

func (g *Gateway) Ping(ctx context.Context) error {
	db, err := g.DB()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		g.degrade(err)
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return nil
}

// Observe inspects an error returned by the store. Connection-level failures
// degrade the gateway and come back as ErrStorageUnavailable; anything else
// is returned untouched.
func (g *Gateway) Observe(err error) error {
	if err == nil || errors.Is(err, apperrors.ErrStorageUnavailable) {
		return err
	}
	if !isConnectionError(err) {
		return err
	}
	g.degrade(err)
	return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
}

func (g *Gateway) Close() error {
	g.connectMu.Lock()
	defer g.connectMu.Unlock()

	g.mu.Lock()
	defer g.mu.Unlock()
	var err error
	if g.db != nil {
		if sqlDB, dbErr := g.db.DB(); dbErr == nil {
			err = sqlDB.Close()
		}
	}
	g.db = nil
	g.state = Disconnected
	return err
}

func (g *Gateway) degrade(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != Ready {
		return
	}
	g.state = Degraded
	g.lastErr = err
	g.logger.Error("storage degraded", "error", err)
}

func (g *Gateway) unavailable() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.unavailableLocked()
}

func (g *Gateway) unavailableLocked() error {
	if g.lastErr != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, g.lastErr)
	}
	return apperrors.ErrStorageUnavailable
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
