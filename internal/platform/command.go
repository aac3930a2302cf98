package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
)

const defaultCommandTimeout = 30 * time.Second

// runCommand runs argv and folds its output into the error on failure.
func runCommand(ctx context.Context, argv []string, timeout time.Duration) error {
	if len(argv) == 0 {
		return ErrNoCommand
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // Command comes from node configuration
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w: %s", ErrCommandFailed, argv[0], err, strings.TrimSpace(out.String()))
	}
	return nil
}

// CommandTimeSync syncs the wall clock by running a command such as
// "chronyc waitsync 10" or "ntpdate pool.ntp.org".
type CommandTimeSync struct {
	argv    []string
	timeout time.Duration
}

// NewCommandTimeSync creates a time sync for argv. An empty argv makes Sync a no-op.
func NewCommandTimeSync(argv []string, timeout time.Duration) *CommandTimeSync {
	return &CommandTimeSync{argv: argv, timeout: timeout}
}

// Sync runs the command.
func (t *CommandTimeSync) Sync(ctx context.Context) error {
	if len(t.argv) == 0 {
		return nil
	}
	return runCommand(ctx, t.argv, t.timeout)
}

// ExitRestarter restarts the node by exiting with a code the service manager
// (systemd Restart=on-failure, runit) treats as a crash.
//
// Restart only records the request. The caller unwinds its cleanup (link
// daemon, buses, journal) and then exits with the code from an ExitError, so
// no child process outlives the node.
type ExitRestarter struct {
	code      int
	requested atomic.Bool
}

// NewExitRestarter creates a restarter exiting with code.
func NewExitRestarter(code int) *ExitRestarter {
	return &ExitRestarter{code: code}
}

// Restart records the exit request.
func (r *ExitRestarter) Restart(context.Context) error {
	r.requested.Store(true)
	return nil
}

// Pending returns the exit code and true once Restart was called.
func (r *ExitRestarter) Pending() (int, bool) {
	return r.code, r.requested.Load()
}

// ExitError asks the process to exit with Code after cleanup.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exiting with code %d: %v", e.Code, e.Err)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// CommandRestarter restarts the node with a command such as "reboot" or
// "systemctl restart graynode".
type CommandRestarter struct {
	argv []string
}

// NewCommandRestarter creates a restarter running argv.
func NewCommandRestarter(argv []string) *CommandRestarter {
	return &CommandRestarter{argv: argv}
}

// Restart runs the command.
func (r *CommandRestarter) Restart(ctx context.Context) error {
	return runCommand(ctx, r.argv, 0)
}
