package registry

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/kalpanika/x3f-acceptor/conversion"
	"github.com/kalpanika/x3f-acceptor/runner"
	"github.com/kalpanika/x3f-acceptor/types"
)

// Registry holds the scenarios of a catalog file
type Registry struct {
	config    Config
	hash      runner.HashAlgorithm
	suites    []string
	scenarios []types.Scenario
	mu        sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	CatalogFile    string
	DefaultTimeout time.Duration // Used when neither the scenario nor the catalog sets one
}

// NewRegistry loads and validates the catalog
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.CatalogFile == "" {
		return nil, fmt.Errorf("catalog file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = runner.DefaultScenarioTimeout
	}

	r := &Registry{
		config: cfg,
	}
	if err := r.loadCatalog(cfg.CatalogFile); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(suites)", len(r.suites), "len(scenarios)", len(r.scenarios))
	return r, nil
}

func (r *Registry) loadCatalog(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	catalog, err := loadConfig(path)
	if err != nil {
		return err
	}

	hash, err := runner.ParseHashAlgorithm(catalog.Defaults.Hash)
	if err != nil {
		return fmt.Errorf("invalid defaults: %w", err)
	}
	r.hash = hash

	if err := r.validateSuiteInheritance(catalog); err != nil {
		return fmt.Errorf("failed to resolve suite inheritance: %w", err)
	}

	scenarios, err := r.buildScenarios(catalog, filepath.Dir(path))
	if err != nil {
		return err
	}
	r.scenarios = scenarios
	return nil
}

// validateSuiteInheritance checks suite IDs and resolves inherited scenarios
func (r *Registry) validateSuiteInheritance(catalog *types.CatalogConfig) error {
	suiteMap := make(map[string]types.SuiteConfig)
	for _, suite := range catalog.Suites {
		if suite.ID == "" {
			return fmt.Errorf("suite without id")
		}
		if _, dup := suiteMap[suite.ID]; dup {
			return fmt.Errorf("duplicate suite id %q", suite.ID)
		}
		suiteMap[suite.ID] = suite
		r.suites = append(r.suites, suite.ID)
	}

	for i := range catalog.Suites {
		if err := catalog.Suites[i].ResolveInherited(suiteMap); err != nil {
			return fmt.Errorf("invalid suite inheritance: %w", err)
		}
	}
	return nil
}

func (r *Registry) buildScenarios(catalog *types.CatalogConfig, baseDir string) ([]types.Scenario, error) {
	var scenarios []types.Scenario
	for _, suite := range catalog.Suites {
		imageDir := resolvePath(baseDir, suite.ImageDir)
		outputs := make(map[string]string)
		// Per-scenario logs are keyed by suite and name.
		names := make(map[string]int)

		for i, sc := range suite.Scenarios {
			s, err := r.buildScenario(suite.ID, imageDir, catalog.Defaults, sc)
			if err != nil {
				return nil, fmt.Errorf("suite %q scenario %d: %w", suite.ID, i, err)
			}
			if prev, dup := outputs[s.Output]; dup {
				return nil, fmt.Errorf("suite %q: scenarios %s and %s both write %s", suite.ID, prev, s.Name(), s.Output)
			}
			outputs[s.Output] = s.Name()
			if prev, dup := names[s.Name()]; dup {
				return nil, fmt.Errorf("suite %q: scenarios %d and %d are both named %s, set a distinct name", suite.ID, prev, i, s.Name())
			}
			names[s.Name()] = i
			scenarios = append(scenarios, s)
		}
	}
	return scenarios, nil
}

func (r *Registry) buildScenario(suiteID, imageDir string, defaults types.CatalogDefaults, sc types.ScenarioConfig) (types.Scenario, error) {
	if sc.Input == "" {
		return types.Scenario{}, fmt.Errorf("input is required")
	}
	if sc.Format == "" {
		return types.Scenario{}, fmt.Errorf("format is required for %s", sc.Input)
	}
	format, err := types.ParseFormat(sc.Format)
	if err != nil {
		return types.Scenario{}, err
	}
	color, err := types.ParseColorProfile(sc.Color)
	if err != nil {
		return types.Scenario{}, err
	}
	hash := strings.TrimSpace(sc.Hash)
	if hash == "" {
		return types.Scenario{}, fmt.Errorf("hash is required for %s", sc.Input)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return types.Scenario{}, fmt.Errorf("hash of %s is not hex: %w", sc.Input, err)
	}

	input := resolvePath(imageDir, sc.Input)
	output, err := conversion.DefaultOutputPath(input, format)
	if err != nil {
		return types.Scenario{}, err
	}
	if sc.Output != "" {
		// Only the directory is selectable; the executable names the file.
		want, err := conversion.OutputPathIn(filepath.Dir(resolvePath(imageDir, sc.Output)), input, format)
		if err != nil {
			return types.Scenario{}, err
		}
		if got := resolvePath(imageDir, sc.Output); got != want {
			return types.Scenario{}, fmt.Errorf("output %s of %s: executable writes %s", got, sc.Input, want)
		}
		output = want
	}

	timeout := r.config.DefaultTimeout
	if defaults.Timeout > 0 {
		timeout = defaults.Timeout
	}
	if sc.Timeout != nil {
		timeout = *sc.Timeout
	}

	return types.Scenario{
		ID:           sc.Name,
		Suite:        suiteID,
		Input:        input,
		Output:       output,
		Format:       format,
		Denoise:      sc.Denoise,
		Color:        color,
		Crop:         sc.Crop,
		Compress:     sc.Compress,
		ExpectedHash: hash,
		Timeout:      timeout,
	}, nil
}

// resolvePath joins relative paths onto base
func resolvePath(base, path string) string {
	if path == "" {
		return base
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// GetScenarios returns all scenarios in catalog order
func (r *Registry) GetScenarios() []types.Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scenarios
}

// ScenariosBySuite returns the scenarios of one suite, inherited ones included
func (r *Registry) ScenariosBySuite(suiteID string) []types.Scenario {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var scenarios []types.Scenario
	for _, s := range r.scenarios {
		if s.Suite == suiteID {
			scenarios = append(scenarios, s)
		}
	}
	return scenarios
}

// Suites returns the suite IDs in catalog order
func (r *Registry) Suites() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suites
}

// HasSuite reports whether the catalog defines suiteID
func (r *Registry) HasSuite(suiteID string) bool {
	for _, id := range r.Suites() {
		if id == suiteID {
			return true
		}
	}
	return false
}

// HashAlgorithm returns the digest named in the catalog defaults
func (r *Registry) HashAlgorithm() runner.HashAlgorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hash
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadConfig loads a catalog from a file
func loadConfig(path string) (*types.CatalogConfig, error) {
	log.Debug("Reading catalog file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var cfg types.CatalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	return &cfg, nil
}
