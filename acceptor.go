// Package acceptor runs conversion scenarios against the x3f_extract
// executable and reports whether each produced the expected output.
package acceptor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/kalpanika/x3f-acceptor/exitcodes"
	"github.com/kalpanika/x3f-acceptor/locator"
	"github.com/kalpanika/x3f-acceptor/logging"
	"github.com/kalpanika/x3f-acceptor/metrics"
	"github.com/kalpanika/x3f-acceptor/registry"
	"github.com/kalpanika/x3f-acceptor/runner"
	"github.com/kalpanika/x3f-acceptor/service"
	"github.com/kalpanika/x3f-acceptor/steps"
	"github.com/kalpanika/x3f-acceptor/types"
)

// acceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &acceptor{}

// godog reports 2 when the feature files could not be loaded
const godogOptionsErr = 2

// acceptor runs the catalog and feature scenarios, once or at an interval.
type acceptor struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	runner    *runner.Runner
	formatter ResultFormatter
	service   *service.Service
	out       io.Writer

	resultMu sync.Mutex
	result   *runner.RunResult

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*acceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating acceptor with config",
		"catalog", config.Catalog,
		"suite", config.Suite,
		"features", config.Features,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	executable, err := locator.New(config.Executable, config.SearchDir).Resolve()
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	config.Log.Info("Resolved executable under test", "path", executable)

	var reg *registry.Registry
	if config.Catalog != "" {
		reg, err = registry.NewRegistry(registry.Config{
			Log:            config.Log,
			CatalogFile:    config.Catalog,
			DefaultTimeout: config.DefaultTimeout,
		})
		if err != nil {
			return nil, NewRuntimeError(fmt.Errorf("failed to create registry: %w", err))
		}
		if config.Suite != "" && !reg.HasSuite(config.Suite) {
			return nil, NewRuntimeError(fmt.Errorf("suite %q not found in %s", config.Suite, config.Catalog))
		}
	}

	hash, err := hashAlgorithm(config.HashAlgorithm, reg)
	if err != nil {
		return nil, NewRuntimeError(err)
	}

	r, err := runner.New(runner.Config{
		Executable:     executable,
		DefaultTimeout: config.DefaultTimeout,
		HashAlgorithm:  hash,
		Target:         config.Target,
		Log:            config.Log,
	})
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create runner: %w", err))
	}
	config.Log.Info("acceptor.New: created registry and runner", "hash", hash)

	var svc *service.Service
	if config.Serve {
		svc = service.New()
		if config.MetricsAddr != "" {
			svc.MetricsAddr = config.MetricsAddr
		}
	}

	return &acceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		runner:           r,
		formatter:        NewConsoleResultFormatter(config.Log, os.Stdout),
		service:          svc,
		out:              os.Stdout,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// hashAlgorithm picks the digest: an explicit choice wins over the catalog's,
// which defaults to md5.
func hashAlgorithm(name string, reg *registry.Registry) (runner.HashAlgorithm, error) {
	if name != "" {
		return runner.ParseHashAlgorithm(name)
	}
	if reg != nil {
		return reg.HashAlgorithm(), nil
	}
	return runner.DefaultHashAlgorithm, nil
}

// Start runs the scenarios immediately and then at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (a *acceptor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			a.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	a.ctx = ctx
	a.done = make(chan struct{})
	a.running.Store(true)

	if a.service != nil {
		a.service.Start(ctx)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Starting x3f-acceptor in run-once mode", "version", a.version)
	} else {
		a.config.Log.Info("Starting x3f-acceptor in continuous mode", "version", a.version, "interval", a.config.RunInterval)
	}

	err := a.runTests()
	if err != nil {
		a.config.Log.Error("Runtime error running scenarios", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if a.config.RunOnce {
		a.config.Log.Info("Scenarios completed, exiting (run-once mode)")

		if err := RunError(a.Result()); err != nil {
			var runtimeErr *RuntimeError
			if errors.As(err, &runtimeErr) {
				a.config.Log.Warn("Run-once completed with errored scenarios, returning exit code 2", "kind", runtimeErr.Kind)
			} else {
				a.config.Log.Warn("Run-once completed with failures, returning exit code 1")
			}
			return err
		}

		go func() {
			a.shutdownCallback(nil)
		}()
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.config.Log.Debug("Starting periodic scenario runner goroutine", "interval", a.config.RunInterval)

		for {
			select {
			case <-time.After(a.config.RunInterval):
				if !a.running.Load() {
					a.config.Log.Debug("Service stopped, exiting periodic scenario runner")
					return
				}

				a.config.Log.Info("Running periodic scenarios")
				if err := a.runTests(); err != nil {
					a.config.Log.Error("Error running periodic scenarios", "error", err)
				}

			case <-a.done:
				a.config.Log.Debug("Done signal received, stopping periodic scenario runner")
				return

			case <-ctx.Done():
				a.config.Log.Debug("Context canceled, stopping periodic scenario runner")
				a.running.Store(false)
				return
			}
		}
	}()
	a.config.Log.Debug("x3f-acceptor started successfully")
	return nil
}

// runTests runs the catalog and feature scenarios and reports the results
func (a *acceptor) runTests() error {
	err := a.runOnce()
	if a.service != nil {
		a.service.Healthz.SetHealthy(err == nil)
	}
	return err
}

func (a *acceptor) runOnce() error {
	runID := uuid.New().String()
	a.config.Log.Info("Running all scenarios...", "run_id", runID)

	fileLogger, err := logging.NewFileLogger(a.config.LogDir, runID)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
	}
	a.runner.SetFileLogger(fileLogger)
	defer func() {
		if err := fileLogger.Complete(); err != nil {
			a.config.Log.Error("Failed to complete run logs", "error", err)
		}
	}()

	result := runner.NewRunResult(runID, time.Now())
	if a.registry != nil {
		catalogResult, err := a.runner.RunAll(a.ctx, a.scenarios())
		if err != nil {
			return NewRuntimeError(err)
		}
		for _, suite := range catalogResult.Suites {
			result.AddSuite(suite)
		}
	}
	if len(a.config.Features) > 0 {
		suite, err := a.runFeatures(runID)
		if err != nil {
			return NewRuntimeError(err)
		}
		result.AddSuite(suite)
	}
	result.Finish()
	a.resultMu.Lock()
	a.result = result
	a.resultMu.Unlock()

	if err := a.formatter.FormatResults(result); err != nil {
		a.config.Log.Error("Failed to print results", "error", err)
	}
	if err := fileLogger.LogSummary(result.String()); err != nil {
		a.config.Log.Error("Failed to write summary", "error", err)
	}

	metrics.RecordRun(
		a.runner.Target(),
		runID,
		string(result.Status),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed+result.Stats.Errored,
		result.Duration,
	)
	a.config.Log.Info("Run completed", "run_id", runID, "status", result.Status, "logs", fileLogger.GetDirectory())
	return nil
}

// scenarios returns the catalog scenarios selected by the suite filter
func (a *acceptor) scenarios() []types.Scenario {
	if a.config.Suite != "" {
		return a.registry.ScenariosBySuite(a.config.Suite)
	}
	return a.registry.GetScenarios()
}

// runFeatures runs the feature files through godog, reporting every scenario
// as it finishes.
func (a *acceptor) runFeatures(runID string) (*runner.SuiteResult, error) {
	start := time.Now()
	suite, err := steps.NewSuite(a.runner, a.config.ImageDir, a.config.Log,
		steps.WithResultHandler(func(res *types.ScenarioResult) {
			a.runner.Report(runID, res)
		}))
	if err != nil {
		return nil, err
	}

	ts := suite.TestSuite(steps.DefaultSuiteID, a.config.Features, "pretty")
	ts.Options.Output = a.out
	ts.Options.DefaultContext = a.ctx
	if status := ts.Run(); status == godogOptionsErr {
		return nil, fmt.Errorf("failed to run features %v", a.config.Features)
	}
	if err := a.ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}
	return runner.NewSuiteResult(steps.DefaultSuiteID, suite.Results(), start), nil
}

// Stop stops the x3f-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (a *acceptor) Stop(ctx context.Context) error {
	a.config.Log.Info("Stopping x3f-acceptor")

	if !a.running.Load() {
		a.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	a.running.Store(false)

	a.config.Log.Debug("Sending done signal to goroutines")
	close(a.done)

	if a.service != nil {
		a.service.Shutdown()
	}

	a.config.Log.Info("x3f-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the x3f-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (a *acceptor) Stopped() bool {
	return !a.running.Load()
}

// Result returns the result of the latest run, nil before the first one.
func (a *acceptor) Result() *runner.RunResult {
	a.resultMu.Lock()
	defer a.resultMu.Unlock()
	return a.result
}

// WaitForShutdown blocks until all goroutines have terminated.
func (a *acceptor) WaitForShutdown(ctx context.Context) error {
	a.config.Log.Debug("Waiting for all goroutines to terminate")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.config.Log.Debug("All goroutines terminated successfully")
		return nil
	case <-ctx.Done():
		a.config.Log.Warn("Timed out waiting for goroutines to terminate", "error", ctx.Err())
		return ctx.Err()
	}
}
