package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalpanika/x3f-acceptor/conversion"
	"github.com/kalpanika/x3f-acceptor/logging"
	"github.com/kalpanika/x3f-acceptor/metrics"
	"github.com/kalpanika/x3f-acceptor/types"
)

// Config holds configuration for creating a new runner
type Config struct {
	Executable     string              // Resolved path of the executable under test
	WorkDir        string              // Working directory of the child, current directory when empty
	DefaultTimeout time.Duration       // Per-scenario timeout unless the scenario sets one
	HashAlgorithm  HashAlgorithm       // Digest of expected hashes, md5 when empty
	Target         string              // Label of the build under test, used in metrics
	FileLogger     *logging.FileLogger // Optional per-run log directory
	Process        ProcessRunner       // Optional override, built from the fields above when nil
	Verifier       *Verifier           // Optional override
	Log            log.Logger
}

// Runner executes conversion scenarios one at a time.
type Runner struct {
	executable     string
	defaultTimeout time.Duration
	target         string
	log            log.Logger
	fileLogger     *logging.FileLogger
	process        ProcessRunner
	verifier       *Verifier
	preconditions  *Preconditions
	tracer         trace.Tracer
}

// New creates a runner. The executable must already be resolved.
func New(cfg Config) (*Runner, error) {
	if cfg.Executable == "" {
		return nil, &Error{Kind: KindConfiguration, Detail: "executable is required"}
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultScenarioTimeout
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = DefaultHashAlgorithm
	}
	if cfg.Target == "" {
		cfg.Target = defaultTarget
	}
	if cfg.Process == nil {
		p, err := NewProcessRunner(cfg.WorkDir, cfg.DefaultTimeout, nil, cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("creating process runner: %w", err)
		}
		cfg.Process = p
	}
	if cfg.Verifier == nil {
		cfg.Verifier = NewVerifier(cfg.HashAlgorithm, cfg.Log)
	}

	cfg.Log.Debug("runner.New()", "executable", cfg.Executable, "workDir", cfg.WorkDir,
		"defaultTimeout", cfg.DefaultTimeout, "hash", cfg.HashAlgorithm, "target", cfg.Target)

	return &Runner{
		executable:     cfg.Executable,
		defaultTimeout: cfg.DefaultTimeout,
		target:         cfg.Target,
		log:            cfg.Log,
		fileLogger:     cfg.FileLogger,
		process:        cfg.Process,
		verifier:       cfg.Verifier,
		preconditions:  NewPreconditions(cfg.Log),
		tracer:         otel.Tracer("x3f runner"),
	}, nil
}

// SetFileLogger replaces the file logger used for the following runs.
func (r *Runner) SetFileLogger(logger *logging.FileLogger) {
	r.fileLogger = logger
}

// Executable returns the path of the executable under test.
func (r *Runner) Executable() string {
	return r.executable
}

// Prepare checks the scenario's pre-conditions and removes stale output.
func (r *Runner) Prepare(s types.Scenario) error {
	return r.preconditions.Check(s)
}

// Convert builds the arguments for s and runs the executable.
func (r *Runner) Convert(ctx context.Context, s types.Scenario) (*types.Invocation, error) {
	args, err := conversion.BuildArgs(s)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Detail: "building arguments", Err: err}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	return r.process.Run(ctx, r.executable, args, timeout)
}

// Verify compares the produced output with the expected hash and removes it.
func (r *Runner) Verify(s types.Scenario) (Verification, error) {
	return r.verifier.Verify(s.Output, s.ExpectedHash)
}

// LockOutput takes exclusive ownership of the scenario's output path. The
// returned func releases it.
func (r *Runner) LockOutput(output string) (func(), error) {
	lockPath := output + lockSuffix
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, &Error{Kind: KindPrecondition, Path: lockPath, Detail: "locking output path", Err: err}
	}
	if !ok {
		return nil, &Error{Kind: KindPrecondition, Path: output, Detail: "output path is owned by another running scenario"}
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.log.Warn("Failed to release output lock", "path", lockPath, "err", err)
		}
		_ = os.Remove(lockPath)
	}, nil
}

// RunScenario runs one scenario end to end: pre-conditions, conversion,
// verification and cleanup. It never returns nil.
func (r *Runner) RunScenario(ctx context.Context, s types.Scenario) *types.ScenarioResult {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("scenario %s", s.Name()))
	defer span.End()
	span.SetAttributes(
		attribute.String("scenario.input", s.Input),
		attribute.String("scenario.format", s.Format.String()),
	)

	start := time.Now()
	result := &types.ScenarioResult{Scenario: s}
	defer func() {
		result.Duration = time.Since(start)
		if result.Error != nil {
			span.SetStatus(codes.Error, result.Error.Error())
		}
	}()

	r.log.Info("Running scenario", "scenario", s.Name(), "suite", s.Suite, "format", s.Format)

	if s.Output == "" {
		result.Status, result.Error = types.StatusError, &Error{Kind: KindPrecondition, Detail: "scenario has no output path"}
		return result
	}
	if err := os.MkdirAll(filepath.Dir(s.Output), 0o755); err != nil {
		result.Status, result.Error = types.StatusError, &Error{Kind: KindPrecondition, Path: s.Output, Err: err}
		return result
	}
	unlock, err := r.LockOutput(s.Output)
	if err != nil {
		result.Status, result.Error = types.StatusError, err
		return result
	}
	defer unlock()

	if err := r.Prepare(s); err != nil {
		result.Status, result.Error = StatusFor(err), err
		return result
	}

	inv, err := r.Convert(ctx, s)
	result.Invocation = inv
	if err != nil {
		result.Status, result.Error = StatusFor(err), err
		// A failed run may still leave a partial file behind.
		result.CleanupErr = RemoveOutput(s.Output)
		return result
	}

	v, err := r.Verify(s)
	result.ActualHash = v.Actual
	result.CleanupErr = v.CleanupErr
	if err != nil {
		result.Status, result.Error = StatusFor(err), err
		return result
	}

	result.Status = types.StatusPass
	return result
}

// RunAll runs the scenarios sequentially, grouped by suite in order of first
// appearance.
func (r *Runner) RunAll(ctx context.Context, scenarios []types.Scenario) (*RunResult, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios to run")
	}

	runID := uuid.New().String()
	if r.fileLogger != nil {
		runID = r.fileLogger.GetRunID()
	}
	start := time.Now()
	r.log.Debug("Running all scenarios", "run_id", runID, "count", len(scenarios))

	result := NewRunResult(runID, start)
	for _, group := range groupBySuite(scenarios) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted: %w", err)
		}
		result.AddSuite(r.runSuite(ctx, runID, group.id, group.scenarios))
	}
	result.Finish()
	return result, nil
}

func (r *Runner) runSuite(ctx context.Context, runID, suiteID string, scenarios []types.Scenario) *SuiteResult {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("suite %s", suiteID))
	defer span.End()

	start := time.Now()
	results := make([]*types.ScenarioResult, 0, len(scenarios))
	for _, s := range scenarios {
		res := r.RunScenario(ctx, s)
		results = append(results, res)
		r.Report(runID, res)
	}
	return NewSuiteResult(suiteID, results, start)
}

// Report hands a finished scenario to the log, metrics and file logger.
func (r *Runner) Report(runID string, res *types.ScenarioResult) {
	s := res.Scenario
	if res.Passed() {
		r.log.Info("Scenario passed", "scenario", s.Name(), "duration", res.Duration)
	} else {
		r.log.Error("Scenario failed", "scenario", s.Name(), "status", res.Status, "err", res.Error)
		metrics.RecordErrorDetails(string(KindOf(res.Error)), res.Error)
	}
	if res.CleanupErr != nil {
		r.log.Error("Scenario cleanup failed", "scenario", s.Name(), "err", res.CleanupErr)
	}
	metrics.RecordScenario(r.target, runID, s.Name(), s.Format.String(), res.Status)

	if r.fileLogger != nil {
		if err := r.fileLogger.LogScenario(res); err != nil {
			r.log.Error("Failed to write scenario log", "scenario", s.Name(), "err", err)
		}
	}
}

// Target returns the label of the build under test.
func (r *Runner) Target() string {
	return r.target
}

// StatusFor maps an error to a scenario status: misbehaviour of the
// executable is a failure, problems of the harness or its inputs are errors.
func StatusFor(err error) types.ScenarioStatus {
	switch KindOf(err) {
	case "":
		if err == nil {
			return types.StatusPass
		}
		return types.StatusError
	case KindNonZeroExit, KindProcessTimeout, KindOutputMissing, KindHashMismatch:
		return types.StatusFail
	default:
		return types.StatusError
	}
}

type suiteGroup struct {
	id        string
	scenarios []types.Scenario
}

func groupBySuite(scenarios []types.Scenario) []suiteGroup {
	var groups []suiteGroup
	index := make(map[string]int)
	for _, s := range scenarios {
		i, ok := index[s.Suite]
		if !ok {
			i = len(groups)
			index[s.Suite] = i
			groups = append(groups, suiteGroup{id: s.Suite})
		}
		groups[i].scenarios = append(groups[i].scenarios, s)
	}
	return groups
}

