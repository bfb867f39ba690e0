package services

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"slipsync/cache"
	"slipsync/database"
	"slipsync/repository"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	gw := database.NewGateway(
		database.SQLite(filepath.Join(t.TempDir(), "slips.db")),
		database.WithPool(database.PoolConfig{MaxOpenConns: 1}),
	)
	t.Cleanup(func() { _ = gw.Close() })
	require.NoError(t, gw.Connect(context.Background()))
	require.NoError(t, gw.Provision(context.Background()))
	return repository.New(gw)
}

func testIDs() IDGenerator {
	return IDGenerator{Prefix: "slip", Now: func() time.Time { return fixedNow }}
}

func decode(t *testing.T, body string) SyncPayload {
	t.Helper()
	p, err := DecodeSyncPayload(strings.NewReader(body))
	require.NoError(t, err)
	return p
}

// memoryTeams is an in-process TeamCache that records traffic.
type memoryTeams struct {
	mu    sync.Mutex
	data  map[int64]cache.TeamPair
	gets  int
	wrote []int64
}

func newMemoryTeams() *memoryTeams {
	return &memoryTeams{data: make(map[int64]cache.TeamPair)}
}

func (m *memoryTeams) GetTeams(_ context.Context, ids []int64) map[int64]cache.TeamPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	out := make(map[int64]cache.TeamPair)
	for _, id := range ids {
		if pair, ok := m.data[id]; ok {
			out[id] = pair
		}
	}
	return out
}

func (m *memoryTeams) SetTeams(_ context.Context, teams map[int64]cache.TeamPair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, pair := range teams {
		m.data[id] = pair
		m.wrote = append(m.wrote, id)
	}
}
