package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
}

func (s *stubSweeper) Sweep(ctx context.Context, staleAfter time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, staleAfter)
	return len(s.calls), s.err
}

func TestSchedulerDisabledWithoutCron(t *testing.T) {
	sweeper := &stubSweeper{}
	sched := New(sweeper, Config{}, zerolog.Nop())

	require.False(t, sched.Enabled())
	require.NoError(t, sched.Start())
	sched.Stop()
	require.Empty(t, sweeper.calls)
}

func TestSchedulerRejectsInvalidCron(t *testing.T) {
	sched := New(&stubSweeper{}, Config{AttentionCron: "not a cron"}, zerolog.Nop())
	require.Error(t, sched.Start())
}

func TestSchedulerRunNowPassesStaleAge(t *testing.T) {
	sweeper := &stubSweeper{}
	sched := New(sweeper, Config{AttentionCron: "0 3 * * *", StaleAfter: 48 * time.Hour}, zerolog.Nop())

	sched.RunNow()
	sweeper.err = errors.New("database unavailable")
	sched.RunNow()

	require.Equal(t, []time.Duration{48 * time.Hour, 48 * time.Hour}, sweeper.calls)
}

func TestSchedulerStartsAndStops(t *testing.T) {
	sched := New(&stubSweeper{}, Config{AttentionCron: "0 3 * * *", StaleAfter: time.Hour}, zerolog.Nop())
	require.NoError(t, sched.Start())
	require.True(t, sched.scheduler.IsRunning())
	sched.Stop()
	require.False(t, sched.scheduler.IsRunning())
}
