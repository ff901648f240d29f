package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "X3F_ACCEPTOR"

// ExecutableEnvVar is read directly, without prefix, so build scripts can keep
// exporting the location of the freshly built executable.
const ExecutableEnvVar = "DIST_LOC"

var (
	Catalog = &cli.StringFlag{
		Name:    "catalog",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CATALOG"),
		Usage:   "Path to the scenario catalog (eg. 'catalog.yaml')",
	}
	Suite = &cli.StringFlag{
		Name:    "suite",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITE"),
		Usage:   "Catalog suite to run (eg. 'consistency'). Runs every suite when empty.",
	}
	Features = &cli.StringSliceFlag{
		Name:    "features",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FEATURES"),
		Usage:   "Feature files or directories to run with the scenario steps",
	}
	ImageDir = &cli.StringFlag{
		Name:    "image-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "IMAGE_DIR"),
		Usage:   "Directory that image names in feature files are relative to",
	}
	Executable = &cli.StringFlag{
		Name:    "executable",
		Value:   "",
		EnvVars: []string{ExecutableEnvVar},
		Usage:   "Path to the x3f_extract executable under test",
	}
	SearchDir = &cli.StringFlag{
		Name:    "search-dir",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SEARCH_DIR"),
		Usage:   "Directory to search for the executable when --executable is not set",
	}
	DefaultTimeout = &cli.DurationFlag{
		Name:    "default-timeout",
		Value:   10 * time.Minute,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEFAULT_TIMEOUT"),
		Usage:   "Time a single conversion may take before the executable is killed",
	}
	Hash = &cli.StringFlag{
		Name:    "hash",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HASH"),
		Usage:   "Digest of the expected hashes: md5, sha1 or sha256. Defaults to the catalog's, then md5.",
	}
	Target = &cli.StringFlag{
		Name:    "target",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TARGET"),
		Usage:   "Label of the build under test, used in metrics and reports",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-run scenario logs",
	}
	Serve = &cli.BoolFlag{
		Name:    "serve",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVE"),
		Usage:   "Serve /healthz and /metrics while running",
	}
)

// At least one of these must be set
var sourceFlags = []cli.Flag{
	Catalog,
	Features,
}

var optionalFlags = []cli.Flag{
	Suite,
	ImageDir,
	Executable,
	SearchDir,
	DefaultTimeout,
	Hash,
	Target,
	RunInterval,
	LogDir,
	Serve,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(sourceFlags, optionalFlags...)
}

// CheckRequired makes sure there is something to run
func CheckRequired(ctx *cli.Context) error {
	for _, f := range sourceFlags {
		if ctx.IsSet(f.Names()[0]) {
			return nil
		}
	}
	return fmt.Errorf("one of --%s or --%s is required", Catalog.Name, Features.Name)
}
