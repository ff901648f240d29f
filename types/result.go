package types

import "time"

// ScenarioStatus represents the possible outcomes of a scenario
type ScenarioStatus string

const (
	StatusPass  ScenarioStatus = "pass"
	StatusFail  ScenarioStatus = "fail"
	StatusError ScenarioStatus = "error"
)

// Invocation records one run of the executable under test.
type Invocation struct {
	Executable string
	Args       []string
	ExitCode   int
	Duration   time.Duration
	Stdout     string // Tail of the captured stdout
	Stderr     string // Tail of the captured stderr
	TimedOut   bool
}

// ScenarioResult captures the outcome of a single scenario run
type ScenarioResult struct {
	Scenario   Scenario
	Status     ScenarioStatus
	Error      error
	CleanupErr error // Reported beside Error, never replaces it
	ActualHash string
	Duration   time.Duration
	Invocation *Invocation
}

// Passed reports whether the scenario verified successfully.
func (r *ScenarioResult) Passed() bool {
	return r != nil && r.Status == StatusPass
}
