package runner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/kalpanika/x3f-acceptor/types"
)

// Preconditions makes sure a scenario starts from a clean slate.
type Preconditions struct {
	log log.Logger
}

// NewPreconditions creates a pre-condition checker.
func NewPreconditions(logger log.Logger) *Preconditions {
	if logger == nil {
		logger = log.Root()
	}
	return &Preconditions{log: logger}
}

// Check fails with PreconditionError when the input image is missing, removes
// a stale output left by an earlier run and creates the output directory.
func (p *Preconditions) Check(s types.Scenario) error {
	if s.Input == "" {
		return &Error{Kind: KindPrecondition, Detail: "scenario has no input image"}
	}
	info, err := os.Stat(s.Input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Kind: KindPrecondition, Path: s.Input, Detail: "input image does not exist"}
		}
		return &Error{Kind: KindPrecondition, Path: s.Input, Err: err}
	}
	if info.IsDir() {
		return &Error{Kind: KindPrecondition, Path: s.Input, Detail: "input image is a directory"}
	}

	if s.Output == "" {
		return &Error{Kind: KindPrecondition, Detail: "scenario has no output path"}
	}
	if info, err := os.Lstat(s.Output); err == nil {
		if info.IsDir() {
			return &Error{Kind: KindPrecondition, Path: s.Output, Detail: "output path is a directory"}
		}
		p.log.Warn("Removing stale output from a previous run", "path", s.Output)
		if err := RemoveOutput(s.Output); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.Output), 0o755); err != nil {
		return &Error{Kind: KindPrecondition, Path: filepath.Dir(s.Output), Detail: "creating output directory", Err: err}
	}
	return nil
}
