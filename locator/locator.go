// Package locator finds the executable under test. The result is resolved
// once and handed to the runner; nothing here is consulted per scenario.
package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kalpanika/x3f-acceptor/runner"
)

// DefaultEnvVar names the environment variable holding the executable path.
const DefaultEnvVar = "DIST_LOC"

// Locator resolves the path of the executable under test.
type Locator interface {
	Resolve() (string, error)
}

var (
	_ Locator = (*EnvLocator)(nil)
	_ Locator = (*SearchLocator)(nil)
	_ Locator = StaticLocator("")
)

// EnvLocator reads the executable path from an environment variable.
type EnvLocator struct {
	Name   string                          // Variable name, DefaultEnvVar when empty
	Lookup func(key string) (string, bool) // os.LookupEnv when nil
}

// Resolve implements Locator. An unset or empty variable is a configuration
// error, as is a path that does not exist.
func (l *EnvLocator) Resolve() (string, error) {
	name := l.Name
	if name == "" {
		name = DefaultEnvVar
	}
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	value, ok := lookup(name)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", &runner.Error{
			Kind:   runner.KindConfiguration,
			Detail: fmt.Sprintf("locator not configured: environment variable %s is not set", name),
		}
	}
	return checkExecutable(value)
}

// SearchLocator walks Root and returns the first executable file in lexical
// order. Symlinks are followed to their target's mode; subdirectories that
// cannot be read are skipped.
type SearchLocator struct {
	Root string
}

// Resolve implements Locator.
func (l *SearchLocator) Resolve() (string, error) {
	if l.Root == "" {
		return "", &runner.Error{Kind: runner.KindConfiguration, Detail: "search directory cannot be empty"}
	}

	var found string
	errFound := errors.New("found")
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != l.Root && d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return err
		}
		if !isExecutable(path, d) {
			return nil
		}
		found = path
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", &runner.Error{Kind: runner.KindConfiguration, Path: l.Root, Detail: "searching for executable", Err: err}
	}
	if found == "" {
		return "", &runner.Error{Kind: runner.KindConfiguration, Path: l.Root, Detail: "no executable found"}
	}
	return filepath.Abs(found)
}

func isExecutable(path string, d fs.DirEntry) bool {
	var (
		info fs.FileInfo
		err  error
	)
	switch {
	case d.Type().IsRegular():
		info, err = d.Info()
	case d.Type()&fs.ModeSymlink != 0:
		info, err = os.Stat(path)
	default:
		return false
	}
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}

// StaticLocator is a path given explicitly, e.g. on the command line.
type StaticLocator string

// Resolve implements Locator.
func (l StaticLocator) Resolve() (string, error) {
	if strings.TrimSpace(string(l)) == "" {
		return "", &runner.Error{Kind: runner.KindConfiguration, Detail: "executable path cannot be empty"}
	}
	return checkExecutable(string(l))
}

func checkExecutable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &runner.Error{Kind: runner.KindConfiguration, Path: path, Detail: "executable not found", Err: err}
	}
	if info.IsDir() {
		return "", &runner.Error{Kind: runner.KindConfiguration, Path: path, Detail: "executable is a directory"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for executable '%s': %w", path, err)
	}
	return abs, nil
}

// New picks a locator from the configured values: an explicit path wins over a
// search directory. With neither set the environment variable is consulted.
func New(executable, searchDir string) Locator {
	switch {
	case executable != "":
		return StaticLocator(executable)
	case searchDir != "":
		return &SearchLocator{Root: searchDir}
	default:
		return &EnvLocator{Name: DefaultEnvVar}
	}
}
