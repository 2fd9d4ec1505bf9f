package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeMaintenance struct {
	expiredAt  time.Time
	prunedTo   time.Time
	expireErr  error
	expireRuns int
	pruneRuns  int
}

func (f *fakeMaintenance) ExpireTiers(_ context.Context, now time.Time) (int, error) {
	f.expireRuns++
	f.expiredAt = now
	return 2, f.expireErr
}

func (f *fakeMaintenance) PruneServerPosts(_ context.Context, before time.Time) (int64, error) {
	f.pruneRuns++
	f.prunedTo = before
	return 5, nil
}

func TestSchedulerJobs(t *testing.T) {
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)
	store := &fakeMaintenance{}
	s := NewScheduler(store, 31*24*time.Hour, zap.NewNop())
	s.now = func() time.Time { return now }

	s.expireTiers()
	s.pruneServerPosts()

	assert.Equal(t, 1, store.expireRuns)
	assert.Equal(t, now, store.expiredAt)
	assert.Equal(t, 1, store.pruneRuns)
	assert.Equal(t, time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), store.prunedTo)
}

func TestSchedulerLogsJobFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := &fakeMaintenance{expireErr: errors.New("database is locked")}
	s := NewScheduler(store, time.Hour, zap.New(core))

	s.expireTiers()
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Tier expiry failed", logs.All()[0].Message)
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	s := NewScheduler(&fakeMaintenance{}, time.Hour, zap.NewNop())
	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)
	s.Stop()

	withoutPruning := NewScheduler(&fakeMaintenance{}, 0, zap.NewNop())
	require.NoError(t, withoutPruning.Start())
	assert.Len(t, withoutPruning.cron.Entries(), 1)
	withoutPruning.Stop()
}
