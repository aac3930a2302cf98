package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the supervised daemon's lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusBackoff  Status = "backoff"
	StatusFailed   Status = "failed"
)

const (
	defaultRestartDelay    = 2 * time.Second
	defaultMaxRestartDelay = 2 * time.Minute
	defaultStableThreshold = time.Minute
	defaultGracefulTimeout = 5 * time.Second
	defaultHealthInterval  = 30 * time.Second

	healthCheckTimeout  = 5 * time.Second
	maxHealthFailures   = 3
	killWaitTimeout     = 5 * time.Second
	maxOutputLineLength = 64 * 1024
)

// Config describes the daemon to supervise.
type Config struct {
	// Name identifies the daemon in logs.
	Name string

	// Binary is the executable path; Args are passed verbatim.
	Binary string
	Args   []string

	// Env is appended to the node's own environment. Nil inherits it unchanged.
	Env []string

	// RestartDelay is the first backoff step; each further failure doubles
	// it up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last for the backoff to reset.
	StableThreshold time.Duration

	// MaxRestarts caps consecutive restarts. 0 means unlimited.
	MaxRestarts int

	// GracefulTimeout is the SIGTERM-to-SIGKILL grace period.
	GracefulTimeout time.Duration

	// HealthCheck, if set, runs every HealthInterval while the daemon is up.
	// Three consecutive failures kill the daemon, which is then restarted.
	HealthCheck    func(ctx context.Context) error
	HealthInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.RestartDelay <= 0 {
		c.RestartDelay = defaultRestartDelay
	}
	if c.MaxRestartDelay < c.RestartDelay {
		c.MaxRestartDelay = defaultMaxRestartDelay
		if c.MaxRestartDelay < c.RestartDelay {
			c.MaxRestartDelay = c.RestartDelay
		}
	}
	if c.StableThreshold <= 0 {
		c.StableThreshold = defaultStableThreshold
	}
	if c.GracefulTimeout <= 0 {
		c.GracefulTimeout = defaultGracefulTimeout
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = defaultHealthInterval
	}
	return c
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Supervisor keeps one daemon running.
type Supervisor struct {
	cfg    Config
	logger Logger

	mu        sync.RWMutex
	cmd       *exec.Cmd
	status    Status
	restarts  int
	lastErr   error
	startedAt time.Time
	stopping  bool
	stopCh    chan struct{}
	done      chan struct{}
}

// NewSupervisor returns a stopped supervisor for cfg.
func NewSupervisor(cfg Config) *Supervisor {
	return &Supervisor{
		cfg:    cfg.withDefaults(),
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger. Call before Start.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Name returns the configured daemon name.
func (s *Supervisor) Name() string {
	return s.cfg.Name
}

// Start launches the daemon and returns once it has been spawned. A spawn
// failure is returned directly and nothing is left running.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.cfg.Binary == "" {
		return ErrNoBinary
	}

	s.mu.Lock()
	if s.status != StatusStopped && s.status != StatusFailed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, s.cfg.Name)
	}
	s.status = StatusStarting
	s.stopping = false
	s.restarts = 0
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	cmd, err := s.spawn(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = StatusFailed
		s.lastErr = err
		close(s.done)
		s.mu.Unlock()
		return err
	}

	go s.supervise(ctx, cmd)
	return nil
}

// spawn starts one instance of the daemon in a new process group.
func (s *Supervisor) spawn(ctx context.Context) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.cfg.Args...) //nolint:gosec // Binary comes from node configuration
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if s.cfg.Env != nil {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", s.cfg.Name, err)
	}

	s.mu.Lock()
	s.cmd = cmd
	s.status = StatusRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	go s.forward("stdout", stdout)
	go s.forward("stderr", stderr)

	s.logger.Info("daemon started", "name", s.cfg.Name, "pid", cmd.Process.Pid)
	return cmd, nil
}

// forward logs the daemon's output one line at a time.
func (s *Supervisor) forward(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxOutputLineLength)
	for scanner.Scan() {
		s.logger.Debug("daemon output", "name", s.cfg.Name, "stream", stream, "line", scanner.Text())
	}
}

// supervise waits on the running daemon and restarts it until Stop is
// called, ctx ends, or MaxRestarts is exhausted.
func (s *Supervisor) supervise(ctx context.Context, cmd *exec.Cmd) {
	defer close(s.done)

	attempt := 0
	for {
		err := s.wait(ctx, cmd)

		s.mu.Lock()
		stopping := s.stopping
		ran := time.Since(s.startedAt)
		s.mu.Unlock()

		if stopping || ctx.Err() != nil {
			s.setStatus(StatusStopped, nil)
			s.logger.Info("daemon stopped", "name", s.cfg.Name)
			return
		}

		s.logger.Warn("daemon exited", "name", s.cfg.Name, "error", err, "ran", ran)

		if ran >= s.cfg.StableThreshold {
			attempt = 0
		}
		attempt++

		if s.cfg.MaxRestarts > 0 && attempt > s.cfg.MaxRestarts {
			s.setStatus(StatusFailed, err)
			s.logger.Error("daemon restart limit reached", "name", s.cfg.Name, "attempts", attempt-1)
			return
		}

		delay := s.backoff(attempt)
		s.setStatus(StatusBackoff, err)
		s.logger.Info("restarting daemon", "name", s.cfg.Name, "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.setStatus(StatusStopped, err)
			return
		case <-s.stopCh:
			timer.Stop()
			s.setStatus(StatusStopped, err)
			return
		case <-timer.C:
		}

		s.mu.Lock()
		stopping = s.stopping
		if !stopping {
			s.restarts++
		}
		s.mu.Unlock()
		if stopping {
			s.setStatus(StatusStopped, err)
			return
		}

		next, spawnErr := s.spawn(ctx)
		if spawnErr != nil {
			s.logger.Error("daemon restart failed", "name", s.cfg.Name, "error", spawnErr)
			s.setStatus(StatusFailed, spawnErr)
			return
		}
		cmd = next
	}
}

// wait blocks until the daemon exits. With a health check configured, three
// consecutive failures kill the daemon and the exit is reported as
// ErrUnhealthy.
func (s *Supervisor) wait(ctx context.Context, cmd *exec.Cmd) error {
	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
	}()

	if s.cfg.HealthCheck == nil {
		return <-exited
	}

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case err := <-exited:
			return err
		case <-ctx.Done():
			return <-exited
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			err := s.cfg.HealthCheck(checkCtx)
			cancel()

			if err == nil {
				failures = 0
				continue
			}
			failures++
			s.logger.Warn("daemon health check failed", "name", s.cfg.Name, "error", err, "consecutive", failures)
			if failures < maxHealthFailures {
				continue
			}

			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) //nolint:errcheck // Group may already be gone
			select {
			case <-exited:
			case <-time.After(killWaitTimeout):
			}
			return fmt.Errorf("%w: %w", ErrUnhealthy, err)
		}
	}
}

// backoff returns the delay before restart number attempt (1-based).
func (s *Supervisor) backoff(attempt int) time.Duration {
	delay := s.cfg.RestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxRestartDelay {
			return s.cfg.MaxRestartDelay
		}
	}
	return delay
}

func (s *Supervisor) setStatus(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	if err != nil {
		s.lastErr = err
	}
}

// Stop terminates the daemon's process group and waits for supervision to
// end. Stopping a supervisor that is not running is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if s.status == StatusStopped || s.status == StatusFailed || s.done == nil {
		s.mu.Unlock()
		return nil
	}
	if s.stopping {
		done := s.done
		s.mu.Unlock()
		<-done
		return nil
	}
	s.stopping = true
	close(s.stopCh)
	cmd := s.cmd
	done := s.done
	status := s.status
	s.mu.Unlock()

	if status == StatusBackoff {
		<-done
		return nil
	}
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	pid := cmd.Process.Pid
	s.logger.Info("stopping daemon", "name", s.cfg.Name, "pid", pid)

	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Warn("sending SIGTERM failed", "name", s.cfg.Name, "error", err)
	}

	select {
	case <-done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
		s.logger.Warn("daemon ignored SIGTERM, killing", "name", s.cfg.Name, "timeout", s.cfg.GracefulTimeout)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("killing %s: %w", s.cfg.Name, err)
	}
	<-done
	return nil
}

// Status returns the current lifecycle state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Running reports whether the daemon process is currently up.
func (s *Supervisor) Running() bool {
	return s.Status() == StatusRunning
}

// Restarts returns how many times the daemon has been restarted since Start.
func (s *Supervisor) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

// LastError returns the error of the most recent unexpected exit.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// PID returns the daemon's process id, or 0 when it is not running.
func (s *Supervisor) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == StatusRunning && s.cmd != nil && s.cmd.Process != nil {
		return s.cmd.Process.Pid
	}
	return 0
}
