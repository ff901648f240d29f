package types

import "time"

// CatalogConfig represents the complete scenario catalog file
type CatalogConfig struct {
	Defaults CatalogDefaults `yaml:"defaults"`
	Suites   []SuiteConfig   `yaml:"suites"`
}

// CatalogDefaults holds values applied to every scenario that does not set them
type CatalogDefaults struct {
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Hash    string        `yaml:"hash,omitempty"`
}

// SuiteConfig represents a collection of related scenarios
type SuiteConfig struct {
	ID          string           `yaml:"id"`
	Description string           `yaml:"description"`
	ImageDir    string           `yaml:"image_dir,omitempty"`
	Inherits    []string         `yaml:"inherits,omitempty"`
	Scenarios   []ScenarioConfig `yaml:"scenarios"`
}

// ScenarioConfig is a single catalog entry
type ScenarioConfig struct {
	Name     string         `yaml:"name,omitempty"`
	Input    string         `yaml:"input"`
	Output   string         `yaml:"output,omitempty"`
	Format   string         `yaml:"format"`
	Hash     string         `yaml:"hash"`
	Denoise  bool           `yaml:"denoise,omitempty"`
	Crop     bool           `yaml:"crop,omitempty"`
	Compress bool           `yaml:"compress,omitempty"`
	Color    string         `yaml:"color,omitempty"`
	Timeout  *time.Duration `yaml:"timeout,omitempty"`
}
