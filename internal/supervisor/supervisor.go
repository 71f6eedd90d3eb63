// Package supervisor runs the engine as a child process, detects crashes and
// applies a bounded restart policy.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/alanyoungcy/spreadarb/internal/domain"
	"github.com/alanyoungcy/spreadarb/internal/metrics"
)

const (
	DefaultMonitorInterval = time.Second
	DefaultStopTimeout     = 30 * time.Second
	DefaultRestartDelay    = time.Second
)

// Config describes the supervised command.
type Config struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
	Stdout  io.Writer
	Stderr  io.Writer

	MonitorInterval time.Duration
	StopTimeout     time.Duration
	// OnChange, if set, is called after every state transition, outside the
	// supervisor's lock.
	OnChange func(from, to domain.ProcessState)
}

// Supervisor owns one child process. All state is guarded by mu; lifecycle
// operations (Start, Stop, Restart) are serialised by opMu.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger

	opMu sync.Mutex

	mu           sync.Mutex
	state        domain.ProcessState
	cmd          *exec.Cmd
	exited       chan struct{}
	stopping     bool
	startTime    time.Time
	stopTime     time.Time
	restartCount int
	crashCount   int
	lastErr      error

	crashes chan domain.ProcessCrash
}

// New creates a Supervisor in STOPPED.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = DefaultMonitorInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Supervisor{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "supervisor")),
		state:   domain.ProcessStopped,
		crashes: make(chan domain.ProcessCrash, 8),
	}
}

// Crashes delivers one value per detected crash.
func (s *Supervisor) Crashes() <-chan domain.ProcessCrash { return s.crashes }

// State returns the current state.
func (s *Supervisor) State() domain.ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setStateLocked changes state and returns a func that fires the change hook;
// callers run it after unlocking.
func (s *Supervisor) setStateLocked(to domain.ProcessState) func() {
	from := s.state
	s.state = to
	metrics.SetSupervisorState(to)
	if from == to || s.cfg.OnChange == nil {
		return func() {}
	}
	hook := s.cfg.OnChange
	return func() { hook(from, to) }
}

// Start spawns the process. It returns false with domain.ErrAlreadyRunning
// when a process is RUNNING or STARTING. A missing executable or spawn
// failure leaves the supervisor FAILED.
func (s *Supervisor) Start() (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.start()
}

func (s *Supervisor) start() (bool, error) {
	s.mu.Lock()
	if s.state == domain.ProcessRunning || s.state == domain.ProcessStarting {
		s.mu.Unlock()
		s.logger.Warn("start ignored, process already running")
		return false, domain.ErrAlreadyRunning
	}
	fire := s.setStateLocked(domain.ProcessStarting)
	s.mu.Unlock()
	fire()

	cmd, err := s.spawn()
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		fire = s.setStateLocked(domain.ProcessFailed)
		s.mu.Unlock()
		fire()
		s.logger.Error("start failed", slog.String("command", s.cfg.Command), slog.String("error", err.Error()))
		return false, err
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	s.mu.Lock()
	s.cmd = cmd
	s.exited = exited
	s.stopping = false
	s.startTime = time.Now()
	s.stopTime = time.Time{}
	s.lastErr = nil
	fire = s.setStateLocked(domain.ProcessRunning)
	s.mu.Unlock()
	fire()

	s.logger.Info("process started", slog.Int("pid", cmd.Process.Pid), slog.String("command", s.cfg.Command))
	go s.monitor(cmd, exited)
	return true, nil
}

func (s *Supervisor) spawn() (*exec.Cmd, error) {
	if s.cfg.Command == "" {
		return nil, errors.New("supervisor: no command configured")
	}
	path, err := exec.LookPath(s.cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("supervisor: find %s: %w", s.cfg.Command, err)
	}
	cmd := exec.Command(path, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	cmd.Stdout = s.cfg.Stdout
	cmd.Stderr = s.cfg.Stderr
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}
	isolate(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: spawn %s: %w", s.cfg.Command, err)
	}
	return cmd, nil
}

// monitor polls for the process exiting. An exit not caused by Stop while
// RUNNING is a crash, counted once.
func (s *Supervisor) monitor(cmd *exec.Cmd, exited <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.MonitorInterval)
	defer ticker.Stop()

	for range ticker.C {
		select {
		case <-exited:
		default:
			continue
		}

		s.mu.Lock()
		if s.cmd != cmd || s.stopping || s.state != domain.ProcessRunning {
			s.mu.Unlock()
			return
		}
		crash := domain.ProcessCrash{PID: cmd.Process.Pid, ExitCode: cmd.ProcessState.ExitCode()}
		s.crashCount++
		s.stopTime = time.Now()
		s.lastErr = &crash
		fire := s.setStateLocked(domain.ProcessCrashed)
		s.mu.Unlock()
		fire()

		metrics.SupervisorCrash()
		s.logger.Warn("process exited unexpectedly", slog.Int("pid", crash.PID), slog.Int("exit_code", crash.ExitCode))
		select {
		case s.crashes <- crash:
		default:
		}
		return
	}
}

// Stop sends SIGTERM, waits up to timeout (StopTimeout when zero), then
// SIGKILLs. It always ends in STOPPED; on an already stopped supervisor it
// does nothing and returns true.
func (s *Supervisor) Stop(timeout time.Duration) bool {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.stop(timeout)
}

func (s *Supervisor) stop(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = s.cfg.StopTimeout
	}

	s.mu.Lock()
	if s.state == domain.ProcessStopped {
		s.mu.Unlock()
		return true
	}
	cmd, exited := s.cmd, s.exited
	alive := cmd != nil && s.state == domain.ProcessRunning
	s.stopping = true
	fire := s.setStateLocked(domain.ProcessStopping)
	s.mu.Unlock()
	fire()

	ok := true
	if alive {
		pid := cmd.Process.Pid
		s.logger.Info("stopping process", slog.Int("pid", pid))
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("sigterm failed", slog.Int("pid", pid), slog.String("error", err.Error()))
		}
		select {
		case <-exited:
			s.logger.Info("process terminated", slog.Int("pid", pid))
		case <-time.After(timeout):
			s.logger.Warn("process ignored sigterm, killing", slog.Int("pid", pid), slog.Duration("timeout", timeout))
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Error("kill failed", slog.Int("pid", pid), slog.String("error", err.Error()))
				ok = false
			}
			<-exited
		}
	}

	s.mu.Lock()
	s.cmd = nil
	s.exited = nil
	s.stopTime = time.Now()
	fire = s.setStateLocked(domain.ProcessStopped)
	s.mu.Unlock()
	fire()
	return ok
}

// Restart stops the process, waits delay, starts it again and counts the
// restart.
func (s *Supervisor) Restart(ctx context.Context, delay time.Duration) (bool, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.logger.Info("restarting process", slog.Duration("delay", delay))
	if !s.stop(0) {
		return false, errors.New("supervisor: restart: stop failed")
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(delay):
		}
	}

	s.mu.Lock()
	s.restartCount++
	s.mu.Unlock()
	metrics.SupervisorRestart()

	return s.start()
}

// Stats returns a snapshot of the process lifecycle counters.
func (s *Supervisor) Stats() domain.ProcessStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.ProcessStats{
		Status:       s.state,
		Running:      s.state == domain.ProcessRunning,
		RestartCount: s.restartCount,
		CrashCount:   s.crashCount,
	}
	if s.cmd != nil && s.cmd.Process != nil {
		st.PID = s.cmd.Process.Pid
	}
	if !s.startTime.IsZero() {
		start := s.startTime
		st.StartTime = &start
		if st.Running {
			st.UptimeSeconds = time.Since(start).Seconds()
		}
	}
	if !s.stopTime.IsZero() {
		stop := s.stopTime
		st.StopTime = &stop
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
