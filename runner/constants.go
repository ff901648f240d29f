package runner

import "time"

// Execution constants
const (
	// DefaultScenarioTimeout bounds a single run of the executable
	DefaultScenarioTimeout = 10 * time.Minute

	// DefaultWaitDelay is how long Wait keeps draining output after the child
	// was killed before the pipes are closed forcibly
	DefaultWaitDelay = 2 * time.Second

	// DefaultHashAlgorithm is the digest used for expected output hashes
	DefaultHashAlgorithm = HashMD5

	// Permissions applied to an output file before it is removed
	relaxedFileMode = 0o666

	// Suffix of the lock file guarding an output path
	lockSuffix = ".lock"

	// defaultTarget labels metrics when no target name is configured
	defaultTarget = "unknown"
)
