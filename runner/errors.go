package runner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a scenario could not pass
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "ConfigurationError"
	KindPrecondition   ErrorKind = "PreconditionError"
	KindProcessLaunch  ErrorKind = "ProcessLaunchError"
	KindProcessTimeout ErrorKind = "ProcessTimeout"
	KindNonZeroExit    ErrorKind = "NonZeroExit"
	KindOutputMissing  ErrorKind = "OutputMissing"
	KindHashMismatch   ErrorKind = "HashMismatch"
	KindCleanup        ErrorKind = "CleanupError"
)

// Sentinels for errors.Is matching on the kind of an *Error
var (
	ErrConfiguration  = &Error{Kind: KindConfiguration}
	ErrPrecondition   = &Error{Kind: KindPrecondition}
	ErrProcessLaunch  = &Error{Kind: KindProcessLaunch}
	ErrProcessTimeout = &Error{Kind: KindProcessTimeout}
	ErrNonZeroExit    = &Error{Kind: KindNonZeroExit}
	ErrOutputMissing  = &Error{Kind: KindOutputMissing}
	ErrHashMismatch   = &Error{Kind: KindHashMismatch}
	ErrCleanup        = &Error{Kind: KindCleanup}
)

// Error is returned by every harness stage. Expected/Actual are set for
// HashMismatch, ExitCode for NonZeroExit.
type Error struct {
	Kind     ErrorKind
	Path     string
	Expected string
	Actual   string
	ExitCode int
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	switch e.Kind {
	case KindHashMismatch:
		fmt.Fprintf(&b, ": %s: expected hash %s, got %s", e.Path, e.Expected, e.Actual)
	case KindNonZeroExit:
		fmt.Fprintf(&b, ": exit code %d", e.ExitCode)
	default:
		if e.Path != "" {
			fmt.Fprintf(&b, ": %s", e.Path)
		}
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
