package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newSupervisor(t *testing.T, command string, args ...string) *Supervisor {
	t.Helper()
	s := New(Config{Command: command, Args: args, MonitorInterval: 10 * time.Millisecond, StopTimeout: 2 * time.Second}, discard())
	t.Cleanup(func() { s.Stop(time.Second) })
	return s
}

func TestSupervisor_DoubleStartReturnsFalse(t *testing.T) {
	s := newSupervisor(t, "sleep", "30")

	ok, err := s.Start()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ProcessRunning, s.State())
	assert.NotZero(t, s.Stats().PID)

	ok, err = s.Start()
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
}

func TestSupervisor_StopOnStoppedIsNoop(t *testing.T) {
	var transitions []domain.ProcessState
	s := New(Config{Command: "sleep", OnChange: func(_, to domain.ProcessState) {
		transitions = append(transitions, to)
	}}, discard())

	assert.True(t, s.Stop(0))
	assert.Equal(t, domain.ProcessStopped, s.State())
	assert.Empty(t, transitions)
}

func TestSupervisor_StopTerminatesGracefully(t *testing.T) {
	s := newSupervisor(t, "sleep", "30")
	_, err := s.Start()
	require.NoError(t, err)

	assert.True(t, s.Stop(2*time.Second))
	st := s.Stats()
	assert.Equal(t, domain.ProcessStopped, st.Status)
	assert.False(t, st.Running)
	assert.Zero(t, st.PID)
	assert.NotNil(t, st.StopTime)
	assert.Zero(t, st.CrashCount)
}

func TestSupervisor_StopKillsAfterTimeout(t *testing.T) {
	s := newSupervisor(t, "sh", "-c", `trap "" TERM; exec sleep 30`)
	_, err := s.Start()
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond) // let the trap install

	start := time.Now()
	assert.True(t, s.Stop(100*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, domain.ProcessStopped, s.State())
	assert.Zero(t, s.Stats().CrashCount)
}

func TestSupervisor_MissingTargetFails(t *testing.T) {
	s := newSupervisor(t, "spreadarb-no-such-binary")

	ok, err := s.Start()
	assert.False(t, ok)
	require.Error(t, err)
	assert.Equal(t, domain.ProcessFailed, s.State())
	assert.NotEmpty(t, s.Stats().LastError)
}

func TestSupervisor_CrashCountedOnce(t *testing.T) {
	s := newSupervisor(t, "sh", "-c", "exit 3")
	_, err := s.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool { return s.State() == domain.ProcessCrashed }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	st := s.Stats()
	assert.Equal(t, 1, st.CrashCount)
	assert.False(t, st.Running)

	crash := <-s.Crashes()
	assert.Equal(t, 3, crash.ExitCode)
	select {
	case <-s.Crashes():
		t.Fatal("crash reported twice")
	default:
	}

	assert.True(t, s.Stop(0))
	assert.Equal(t, domain.ProcessStopped, s.State())
}

func TestSupervisor_RestartCounts(t *testing.T) {
	s := newSupervisor(t, "sleep", "30")
	_, err := s.Start()
	require.NoError(t, err)
	firstPID := s.Stats().PID

	ok, err := s.Restart(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	st := s.Stats()
	assert.Equal(t, 1, st.RestartCount)
	assert.Equal(t, domain.ProcessRunning, st.Status)
	assert.NotEqual(t, firstPID, st.PID)
}

func TestWatchdog_BackoffAndBudget(t *testing.T) {
	w := NewWatchdog(nil, WatchdogConfig{MaxRestarts: 3, Window: 10 * time.Minute, Backoff: 5 * time.Second}, nil, nil, discard())
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, want := range []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second} {
		d, ok := w.nextDelay(now)
		require.True(t, ok)
		assert.Equal(t, want, d)
		w.restarts = append(w.restarts, now)
	}
	_, ok := w.nextDelay(now.Add(time.Minute))
	assert.False(t, ok)

	d, ok := w.nextDelay(now.Add(11 * time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, d)
}

type alerts struct {
	mu     sync.Mutex
	titles []string
}

func (a *alerts) NotifySupervisor(_ context.Context, title, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.titles = append(a.titles, title)
}

func (a *alerts) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.titles)
}

func TestWatchdog_RestartsUntilBudgetSpent(t *testing.T) {
	s := newSupervisor(t, "sh", "-c", "exit 1")
	al := &alerts{}
	w := NewWatchdog(s, WatchdogConfig{MaxRestarts: 2, Window: time.Minute, Backoff: 10 * time.Millisecond}, al, nil, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	_, err := s.Start()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st := s.Stats()
		return st.CrashCount == 3 && st.Status == domain.ProcessCrashed
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return al.count() == 3 }, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	st := s.Stats()
	assert.Equal(t, 2, st.RestartCount)
	assert.Equal(t, domain.ProcessCrashed, st.Status)
}
