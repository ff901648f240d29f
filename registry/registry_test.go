package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalpanika/x3f-acceptor/runner"
	"github.com/kalpanika/x3f-acceptor/types"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(Config{})
	require.Error(t, err)

	_, err = NewRegistry(Config{CatalogFile: filepath.Join(t.TempDir(), "missing.yaml"), Log: log.New()})
	require.Error(t, err)
}

func TestRegistry_Load(t *testing.T) {
	path := writeCatalog(t, `
defaults:
  timeout: 5m
  hash: sha256
suites:
  - id: consistency
    description: Formats of the reference image
    image_dir: images
    scenarios:
      - input: _SDI8040.X3F
        format: DNG
        hash: 0123abcd
      - name: tiff-adobe
        input: _SDI8040.X3F
        format: tiff
        hash: ABCDEF01
        color: AdobeRGB
        compress: true
        denoise: true
        timeout: 30s
      - input: _SDI8040.X3F
        format: qtop
        hash: 00ff
        output: out/_SDI8040.X3F.tif
        crop: true
  - id: nightly
    image_dir: /data/nightly
    inherits: [consistency]
    scenarios:
      - input: dp2.X3F
        format: color-srgb
        hash: 1234
`)
	reg, err := NewRegistry(Config{CatalogFile: path, Log: log.New(), DefaultTimeout: time.Minute})
	require.NoError(t, err)

	imageDir := filepath.Join(filepath.Dir(path), "images")
	assert.Equal(t, []string{"consistency", "nightly"}, reg.Suites())
	assert.Equal(t, runner.HashSHA256, reg.HashAlgorithm())
	assert.True(t, reg.HasSuite("nightly"))
	assert.False(t, reg.HasSuite("weekly"))

	consistency := reg.ScenariosBySuite("consistency")
	require.Len(t, consistency, 3)

	assert.Equal(t, types.Scenario{
		Suite:        "consistency",
		Input:        filepath.Join(imageDir, "_SDI8040.X3F"),
		Output:       filepath.Join(imageDir, "_SDI8040.X3F.dng"),
		Format:       types.FormatDNG,
		Color:        types.ColorNone,
		ExpectedHash: "0123abcd",
		Timeout:      5 * time.Minute,
	}, consistency[0])

	adobe := consistency[1]
	assert.Equal(t, "tiff-adobe", adobe.Name())
	assert.Equal(t, types.FormatTIFF, adobe.Format)
	assert.Equal(t, types.ColorAdobeRGB, adobe.Color)
	assert.True(t, adobe.Compress)
	assert.True(t, adobe.Denoise)
	assert.Equal(t, 30*time.Second, adobe.Timeout)
	assert.Equal(t, filepath.Join(imageDir, "_SDI8040.X3F.tif"), adobe.Output)

	qtop := consistency[2]
	assert.Equal(t, types.FormatQTop, qtop.Format)
	assert.Equal(t, filepath.Join(imageDir, "out", "_SDI8040.X3F.tif"), qtop.Output)
	assert.True(t, qtop.Crop)

	nightly := reg.ScenariosBySuite("nightly")
	require.Len(t, nightly, 4, "own scenario plus three inherited ones")
	assert.Equal(t, "/data/nightly/dp2.X3F", nightly[0].Input)
	assert.Equal(t, types.FormatColorSRGB, nightly[0].Format)
	assert.Equal(t, "/data/nightly/_SDI8040.X3F", nightly[1].Input, "inherited inputs use the inheriting suite's image_dir")

	assert.Len(t, reg.GetScenarios(), 7)
}

func TestRegistry_Defaults(t *testing.T) {
	path := writeCatalog(t, `
suites:
  - id: smoke
    scenarios:
      - input: a.X3F
        format: JPG
        hash: beef
`)
	reg, err := NewRegistry(Config{CatalogFile: path, Log: log.New()})
	require.NoError(t, err)

	assert.Equal(t, runner.HashMD5, reg.HashAlgorithm())
	scenarios := reg.GetScenarios()
	require.Len(t, scenarios, 1)
	assert.Equal(t, runner.DefaultScenarioTimeout, scenarios[0].Timeout)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "a.X3F"), scenarios[0].Input)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "a.X3F.jpg"), scenarios[0].Output)
}

func TestRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		catalog string
		errMsg  string
	}{
		{
			name:    "bad yaml",
			catalog: "suites: [",
			errMsg:  "parsing catalog file",
		},
		{
			name:    "unknown hash",
			catalog: "defaults: {hash: crc32}\nsuites: []",
			errMsg:  "unknown hash algorithm",
		},
		{
			name: "duplicate suite",
			catalog: `
suites:
  - id: a
  - id: a`,
			errMsg: "duplicate suite id",
		},
		{
			name: "suite without id",
			catalog: `
suites:
  - description: nameless`,
			errMsg: "suite without id",
		},
		{
			name: "missing parent",
			catalog: `
suites:
  - id: a
    inherits: [b]`,
			errMsg: "non-existent suite",
		},
		{
			name: "circular inheritance",
			catalog: `
suites:
  - id: a
    inherits: [b]
  - id: b
    inherits: [a]`,
			errMsg: "circular inheritance",
		},
		{
			name: "missing input",
			catalog: `
suites:
  - id: a
    scenarios:
      - format: DNG
        hash: beef`,
			errMsg: "input is required",
		},
		{
			name: "missing format",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        hash: beef`,
			errMsg: "format is required",
		},
		{
			name: "unknown format",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: bmp!
        hash: beef`,
			errMsg: "format",
		},
		{
			name: "unknown color",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: TIFF
        color: CMYK
        hash: beef`,
			errMsg: "color",
		},
		{
			name: "missing hash",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: DNG`,
			errMsg: "hash is required",
		},
		{
			name: "hash not hex",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: DNG
        hash: xyz`,
			errMsg: "not hex",
		},
		{
			name: "output renamed",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: TIFF
        output: out/renamed.tif
        hash: beef`,
			errMsg: "executable writes",
		},
		{
			name: "duplicate output",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: TIFF
        hash: beef
      - input: a.X3F
        format: CROP
        hash: beef`,
			errMsg: "both write",
		},
		{
			name: "unnamed scenarios differing only in output dir",
			catalog: `
suites:
  - id: a
    scenarios:
      - input: a.X3F
        format: TIFF
        output: out/1/a.X3F.tif
        hash: beef
      - input: a.X3F
        format: TIFF
        output: out/2/a.X3F.tif
        hash: beef`,
			errMsg: "both named",
		},
		{
			name: "repeated name",
			catalog: `
suites:
  - id: a
    scenarios:
      - name: tiff
        input: a.X3F
        format: TIFF
        hash: beef
      - name: tiff
        input: b.X3F
        format: TIFF
        hash: beef`,
			errMsg: "both named tiff",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(Config{CatalogFile: writeCatalog(t, tt.catalog), Log: log.New()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
