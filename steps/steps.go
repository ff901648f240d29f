// Package steps binds the acceptance scenario language to the runner:
//
//	Given an input image <image>
//	When the <image> is converted by the code to <file_type> [with <options>]
//	Then the <converted_image> has the right <hash> hash value
//
// Options are a comma separated list of denoise, crop, compress and
// color=<profile>.
package steps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/ethereum/go-ethereum/log"

	"github.com/kalpanika/x3f-acceptor/conversion"
	"github.com/kalpanika/x3f-acceptor/runner"
	"github.com/kalpanika/x3f-acceptor/types"
)

const (
	inputImagePattern = `^an input image (\S+)$`
	convertPattern    = `^the (\S+) is converted by the code to (\S+)$`
	convertOptPattern = `^the (\S+) is converted by the code to (\S+) with (.+)$`
	verifyPattern     = `^the (\S+) has the right (\S+) hash value$`
)

// DefaultSuiteID is the suite feature scenarios are reported under
const DefaultSuiteID = "features"

// Suite runs feature files against one runner. Image paths in scenario text
// are resolved against ImageDir.
type Suite struct {
	runner   *runner.Runner
	imageDir string
	id       string
	log      log.Logger
	onResult func(*types.ScenarioResult)

	mu      sync.Mutex
	results []*types.ScenarioResult
}

// Option configures a Suite
type Option func(*Suite)

// WithResultHandler is called with the result of every finished scenario.
func WithResultHandler(fn func(*types.ScenarioResult)) Option {
	return func(s *Suite) {
		s.onResult = fn
	}
}

// WithSuiteID labels the results, DefaultSuiteID when unset.
func WithSuiteID(id string) Option {
	return func(s *Suite) {
		s.id = id
	}
}

// NewSuite creates a step suite
func NewSuite(r *runner.Runner, imageDir string, logger log.Logger, opts ...Option) (*Suite, error) {
	if r == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = log.Root()
	}
	s := &Suite{runner: r, imageDir: imageDir, id: DefaultSuiteID, log: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Results returns the results of the scenarios finished so far
func (s *Suite) Results() []*types.ScenarioResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.ScenarioResult(nil), s.results...)
}

// TestSuite returns a godog suite running paths with the given formatter
func (s *Suite) TestSuite(name string, paths []string, format string) godog.TestSuite {
	if format == "" {
		format = "pretty"
	}
	return godog.TestSuite{
		Name:                name,
		ScenarioInitializer: s.InitializeScenario,
		Options: &godog.Options{
			Format:   format,
			Paths:    paths,
			Strict:   true,
			NoColors: true,
		},
	}
}

// InitializeScenario registers the steps with fresh per-scenario state
func (s *Suite) InitializeScenario(ctx *godog.ScenarioContext) {
	st := &scenarioState{suite: s}

	ctx.Before(st.before)
	ctx.After(st.after)

	ctx.Step(inputImagePattern, st.anInputImage)
	ctx.Step(convertPattern, st.isConvertedTo)
	ctx.Step(convertOptPattern, st.isConvertedToWith)
	ctx.Step(verifyPattern, st.hasTheRightHash)
}

func (s *Suite) record(res *types.ScenarioResult) {
	s.mu.Lock()
	s.results = append(s.results, res)
	s.mu.Unlock()
	if s.onResult != nil {
		s.onResult(res)
	}
}

func (s *Suite) resolve(name string) string {
	if filepath.IsAbs(name) || s.imageDir == "" {
		return name
	}
	return filepath.Join(s.imageDir, name)
}

// scenarioState is what one scenario's steps share
type scenarioState struct {
	suite *Suite

	name      string
	start     time.Time
	image     string
	scenario  types.Scenario
	converted bool
	produced  string
	unlock    func()
	result    *types.ScenarioResult
}

func (st *scenarioState) before(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	*st = scenarioState{suite: st.suite, name: sc.Name, start: time.Now()}
	st.result = &types.ScenarioResult{Status: types.StatusPass}
	return ctx, nil
}

func (st *scenarioState) after(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
	// The verify step may name a file other than the one the conversion
	// wrote. Both are removed.
	for _, path := range []string{st.produced, st.scenario.Output} {
		if path == "" {
			continue
		}
		if cleanupErr := runner.RemoveOutput(path); cleanupErr != nil && st.result.CleanupErr == nil {
			st.result.CleanupErr = cleanupErr
		}
	}
	if st.unlock != nil {
		st.unlock()
		st.unlock = nil
	}

	st.result.Scenario = st.scenario
	st.result.Scenario.ID = st.name
	st.result.Scenario.Suite = st.suite.id
	st.result.Duration = time.Since(st.start)
	if err != nil && st.result.Error == nil {
		st.result.Error = err
		st.result.Status = runner.StatusFor(err)
	}
	st.suite.record(st.result)
	return ctx, nil
}

func (st *scenarioState) fail(err error) error {
	st.result.Error = err
	st.result.Status = runner.StatusFor(err)
	return err
}

func (st *scenarioState) anInputImage(image string) error {
	path := st.suite.resolve(image)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st.fail(&runner.Error{Kind: runner.KindPrecondition, Path: path, Detail: "input image does not exist"})
		}
		return st.fail(&runner.Error{Kind: runner.KindPrecondition, Path: path, Err: err})
	}
	if info.IsDir() {
		return st.fail(&runner.Error{Kind: runner.KindPrecondition, Path: path, Detail: "input image is a directory"})
	}
	st.image = path
	return nil
}

func (st *scenarioState) isConvertedTo(ctx context.Context, image, fileType string) error {
	return st.convert(ctx, image, fileType, "")
}

func (st *scenarioState) isConvertedToWith(ctx context.Context, image, fileType, options string) error {
	return st.convert(ctx, image, fileType, options)
}

func (st *scenarioState) convert(ctx context.Context, image, fileType, options string) error {
	input := st.suite.resolve(image)
	if st.image != "" && input != st.image {
		st.suite.log.Warn("Converting an image other than the given one", "given", st.image, "converted", input)
	}

	format, err := types.ParseFormat(fileType)
	if err != nil {
		return st.fail(&runner.Error{Kind: runner.KindConfiguration, Detail: "parsing file type", Err: err})
	}
	s := types.Scenario{ID: st.name, Input: input, Format: format}
	if err := applyOptions(&s, options); err != nil {
		return st.fail(&runner.Error{Kind: runner.KindConfiguration, Detail: "parsing options", Err: err})
	}
	if s.Output, err = conversion.DefaultOutputPath(input, format); err != nil {
		return st.fail(&runner.Error{Kind: runner.KindConfiguration, Err: err})
	}
	st.scenario = s
	st.produced = s.Output

	unlock, err := st.suite.runner.LockOutput(s.Output)
	if err != nil {
		return st.fail(err)
	}
	st.unlock = unlock

	if err := st.suite.runner.Prepare(s); err != nil {
		return st.fail(err)
	}
	inv, err := st.suite.runner.Convert(ctx, s)
	st.result.Invocation = inv
	if err != nil {
		return st.fail(err)
	}
	st.converted = true
	return nil
}

func (st *scenarioState) hasTheRightHash(convertedImage, hash string) error {
	if !st.converted {
		return st.fail(&runner.Error{Kind: runner.KindPrecondition, Detail: "no conversion ran before verification"})
	}
	path := st.outputFor(convertedImage)
	st.scenario.Output = path
	st.scenario.ExpectedHash = hash

	v, err := st.suite.runner.Verify(st.scenario)
	st.result.ActualHash = v.Actual
	st.result.CleanupErr = v.CleanupErr
	if err != nil {
		return st.fail(err)
	}
	return nil
}

// outputFor maps the converted image named in scenario text to a path. The
// name of the converted file type stands for the conversion's output.
func (st *scenarioState) outputFor(convertedImage string) string {
	if f, err := types.ParseFormat(convertedImage); err == nil && f == st.scenario.Format {
		return st.scenario.Output
	}
	return st.suite.resolve(convertedImage)
}

// applyOptions parses "denoise, crop, compress, color=AdobeRGB" into s.
func applyOptions(s *types.Scenario, options string) error {
	if strings.TrimSpace(options) == "" {
		return nil
	}
	for _, opt := range strings.Split(options, ",") {
		key, value, hasValue := strings.Cut(strings.TrimSpace(opt), "=")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "denoise":
			s.Denoise = true
		case "crop":
			s.Crop = true
		case "compress":
			s.Compress = true
		case "color", "colour":
			if !hasValue {
				return fmt.Errorf("option %q needs a value", key)
			}
			c, err := types.ParseColorProfile(value)
			if err != nil {
				return err
			}
			s.Color = c
		case "":
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}
	return nil
}
