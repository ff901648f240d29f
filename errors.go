package acceptor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kalpanika/x3f-acceptor/runner"
	"github.com/kalpanika/x3f-acceptor/types"
)

// RuntimeError means the harness could not judge the executable and ends the
// process with exit code 2: no executable, an unreadable catalog, a scenario
// whose input image does not exist. Kind is the runner classification of the
// cause, empty when the cause did not come from the runner.
type RuntimeError struct {
	Kind runner.ErrorKind
	Err  error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError wraps err, keeping its runner classification
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Kind: runner.KindOf(err), Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError means the executable ran but at least one conversion did
// not verify (exit code 1). Kinds counts the failed scenarios per cause.
type TestFailureError struct {
	Message string
	Kinds   map[runner.ErrorKind]int
}

func (e *TestFailureError) Error() string {
	if len(e.Kinds) == 0 {
		return fmt.Sprintf("test failure: %s", e.Message)
	}
	return fmt.Sprintf("test failure (%s): %s", formatKinds(e.Kinds), e.Message)
}

// NewTestFailureError creates a new TestFailureError
func NewTestFailureError(message string) *TestFailureError {
	return &TestFailureError{Message: message}
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// RunError folds a finished run into its exit class. A run with any errored
// scenario is a RuntimeError carrying the first error's kind; otherwise a run
// with failed scenarios is a TestFailureError. A passing run returns nil.
func RunError(result *runner.RunResult) error {
	if result == nil {
		return NewRuntimeError(errors.New("no run result"))
	}

	var firstErr error
	kinds := make(map[runner.ErrorKind]int)
	for _, sc := range result.Failed() {
		if sc.Status == types.StatusError {
			if firstErr == nil {
				firstErr = sc.Error
			}
			continue
		}
		kinds[runner.KindOf(sc.Error)]++
	}

	switch result.Status {
	case types.StatusError:
		return &RuntimeError{Kind: runner.KindOf(firstErr), Err: errors.New(result.String())}
	case types.StatusFail:
		return &TestFailureError{Message: result.String(), Kinds: kinds}
	}
	return nil
}

// formatKinds renders kind counts as "HashMismatch=2, OutputMissing=1"
func formatKinds(kinds map[runner.ErrorKind]int) string {
	parts := make([]string, 0, len(kinds))
	for kind, n := range kinds {
		name := string(kind)
		if name == "" {
			name = "unclassified"
		}
		parts = append(parts, fmt.Sprintf("%s=%d", name, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
