// Package exitcodes defines the standard exit codes used by x3f-acceptor.
package exitcodes

// Exit code constants used by x3f-acceptor
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every scenario produced the expected output
// * TestFailure (1): Used when one or more scenarios failed verification
// * RuntimeErr (2): Used for runtime errors such as a missing executable or a bad catalog
const (
	Success     = 0 // All scenarios pass
	TestFailure = 1 // Scenario failures
	RuntimeErr  = 2 // Runtime errors or configuration problems
)
