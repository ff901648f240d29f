package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/kalpanika/x3f-acceptor/types"
)

var _ ProcessRunner = (*processRunner)(nil)

// ProcessRunner launches the executable under test and waits for it, never
// longer than the given timeout.
type ProcessRunner interface {
	// Run executes the binary with args. The returned invocation is non-nil
	// whenever the process was started, including on NonZeroExit and
	// ProcessTimeout errors.
	Run(ctx context.Context, executable string, args []string, timeout time.Duration) (*types.Invocation, error)
}

// CmdBuilder creates the command for a run. The returned func is called once
// the command has finished.
type CmdBuilder func(ctx context.Context, name string, arg ...string) (*exec.Cmd, func())

// DefaultCmdBuilder builds a context-bound command whose output pipes are
// closed DefaultWaitDelay after the child was killed.
func DefaultCmdBuilder(ctx context.Context, name string, arg ...string) (*exec.Cmd, func()) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.WaitDelay = DefaultWaitDelay
	return cmd, func() {}
}

// processRunner implements ProcessRunner
type processRunner struct {
	workDir    string
	timeout    time.Duration
	cmdBuilder CmdBuilder
	tailBytes  int
	log        log.Logger
}

// NewProcessRunner creates a process runner. A zero timeout selects
// DefaultScenarioTimeout; a nil cmdBuilder selects DefaultCmdBuilder.
func NewProcessRunner(workDir string, timeout time.Duration, cmdBuilder CmdBuilder, logger log.Logger) (ProcessRunner, error) {
	if timeout < 0 {
		return nil, fmt.Errorf("timeout cannot be negative")
	}
	if timeout == 0 {
		timeout = DefaultScenarioTimeout
	}
	if cmdBuilder == nil {
		cmdBuilder = DefaultCmdBuilder
	}
	if logger == nil {
		logger = log.Root()
	}
	return &processRunner{
		workDir:    workDir,
		timeout:    timeout,
		cmdBuilder: cmdBuilder,
		tailBytes:  defaultOutputTailBytes,
		log:        logger,
	}, nil
}

// Run implements ProcessRunner
func (p *processRunner) Run(ctx context.Context, executable string, args []string, timeout time.Duration) (*types.Invocation, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if executable == "" {
		return nil, &Error{Kind: KindConfiguration, Detail: "executable path cannot be empty"}
	}
	if timeout <= 0 {
		timeout = p.timeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd, cleanup := p.cmdBuilder(runCtx, executable, args...)
	defer cleanup()
	if p.workDir != "" && cmd.Dir == "" {
		cmd.Dir = p.workDir
	}

	stdout := newTailBuffer(p.tailBytes)
	stderr := newTailBuffer(p.tailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	p.log.Debug("Launching executable", "executable", executable, "args", strings.Join(args, " "), "timeout", timeout)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &Error{Kind: KindProcessLaunch, Path: executable, Err: err}
	}
	runErr := cmd.Wait()

	inv := &types.Invocation{
		Executable: executable,
		Args:       append([]string(nil), args...),
		ExitCode:   -1,
		Duration:   time.Since(start),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}
	if cmd.ProcessState != nil {
		inv.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		inv.TimedOut = true
		p.log.Warn("Executable timed out", "executable", executable, "timeout", timeout)
		return inv, &Error{
			Kind:   KindProcessTimeout,
			Path:   executable,
			Detail: fmt.Sprintf("no exit after %v, process killed", timeout),
		}
	}
	if ctx.Err() != nil {
		return inv, fmt.Errorf("run cancelled: %w", ctx.Err())
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return inv, &Error{
				Kind:     KindNonZeroExit,
				Path:     executable,
				ExitCode: exitErr.ExitCode(),
				Detail:   stderrDetail(stderr),
			}
		}
		return inv, &Error{Kind: KindProcessLaunch, Path: executable, Err: runErr}
	}

	p.log.Debug("Executable finished", "executable", executable, "duration", inv.Duration,
		"stdout_bytes", stdout.TotalBytes(), "stderr_bytes", stderr.TotalBytes())
	return inv, nil
}

// stderrDetail returns the stderr tail for error messages.
func stderrDetail(b *tailBuffer) string {
	s := strings.TrimSpace(b.String())
	if s == "" {
		return ""
	}
	if b.Truncated() {
		s = "..." + s
	}
	return "stderr: " + s
}
