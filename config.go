package acceptor

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/kalpanika/x3f-acceptor/flags"
	"github.com/kalpanika/x3f-acceptor/runner"
)

// Config holds the application configuration
type Config struct {
	Catalog        string        // Path to the scenario catalog, empty to run features only
	Suite          string        // Catalog suite to run, all suites when empty
	Features       []string      // Feature files or directories
	ImageDir       string        // Directory image names in feature files are relative to
	Executable     string        // Explicit path of the executable under test
	SearchDir      string        // Directory searched for the executable when Executable is empty
	DefaultTimeout time.Duration // Per-conversion timeout unless the scenario sets one
	HashAlgorithm  string        // Digest override, the catalog's default when empty
	Target         string        // Label of the build under test
	RunInterval    time.Duration // Interval between runs
	RunOnce        bool          // Indicates if the service should exit after one run
	LogDir         string        // Directory to store per-run logs
	Serve          bool          // Serve /healthz and /metrics
	MetricsAddr    string        // Listen address of the metrics server
	Log            log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	catalog, err := absPath(ctx.String(flags.Catalog.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for catalog: %w", err)
	}
	suite := ctx.String(flags.Suite.Name)
	if suite != "" && catalog == "" {
		return nil, errors.New("--suite requires --catalog")
	}

	var features []string
	for _, f := range ctx.StringSlice(flags.Features.Name) {
		abs, err := absPath(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for features '%s': %w", f, err)
		}
		features = append(features, abs)
	}

	imageDir, err := absPath(ctx.String(flags.ImageDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for image directory: %w", err)
	}

	hash := ctx.String(flags.Hash.Name)
	if hash != "" {
		if _, err := runner.ParseHashAlgorithm(hash); err != nil {
			return nil, err
		}
	}

	defaultTimeout := ctx.Duration(flags.DefaultTimeout.Name)
	if defaultTimeout <= 0 {
		return nil, fmt.Errorf("default timeout must be positive, got %v", defaultTimeout)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("run interval cannot be negative, got %v", runInterval)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid metrics config: %w", err)
	}

	return &Config{
		Catalog:        catalog,
		Suite:          suite,
		Features:       features,
		ImageDir:       imageDir,
		Executable:     ctx.String(flags.Executable.Name),
		SearchDir:      ctx.String(flags.SearchDir.Name),
		DefaultTimeout: defaultTimeout,
		HashAlgorithm:  hash,
		Target:         ctx.String(flags.Target.Name),
		RunInterval:    runInterval,
		RunOnce:        runInterval == 0,
		LogDir:         logDir,
		Serve:          ctx.Bool(flags.Serve.Name) || metricsCfg.Enabled,
		MetricsAddr:    net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort)),
		Log:            log,
	}, nil
}

func absPath(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return filepath.Abs(p)
}
