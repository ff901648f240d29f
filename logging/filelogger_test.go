package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalpanika/x3f-acceptor/types"
)

func TestNewFileLogger(t *testing.T) {
	tmpDir := t.TempDir()

	_, err := NewFileLogger(tmpDir, "")
	require.Error(t, err)
	_, err = NewFileLogger("", "run")
	require.Error(t, err)

	logger, err := NewFileLogger(tmpDir, "test-run-123")
	require.NoError(t, err)
	assert.Equal(t, "test-run-123", logger.GetRunID())
	assert.Equal(t, filepath.Join(tmpDir, "testrun-test-run-123"), logger.GetDirectory())
	assert.DirExists(t, logger.GetPassedDir())
	assert.DirExists(t, logger.GetFailedDir())
}

func TestFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewFileLogger(tmpDir, "run-1")
	require.NoError(t, err)

	passResult := &types.ScenarioResult{
		Scenario: types.Scenario{
			ID:           "dng",
			Suite:        "smoke",
			Input:        "images/a.X3F",
			Output:       "images/a.X3F.dng",
			Format:       types.FormatDNG,
			ExpectedHash: "deadbeef",
		},
		Status:     types.StatusPass,
		ActualHash: "deadbeef",
		Duration:   2 * time.Second,
		Invocation: &types.Invocation{
			Executable: "/opt/x3f_extract",
			Args:       []string{"-dng", "images/a.X3F"},
			Stdout:     "\x1b[32mREAD THE X3F FILE\x1b[0m\n",
		},
	}
	failResult := &types.ScenarioResult{
		Scenario: types.Scenario{
			ID:           "tiff",
			Suite:        "smoke",
			Input:        "images/a.X3F",
			Output:       "images/a.X3F.tif",
			Format:       types.FormatTIFF,
			ExpectedHash: "deadbeef",
		},
		Status:     types.StatusFail,
		Error:      errors.New("HashMismatch: images/a.X3F.tif: expected hash deadbeef, got cafebabe"),
		ActualHash: "cafebabe",
		Duration:   time.Second,
		Invocation: &types.Invocation{
			Executable: "/opt/x3f_extract",
			Args:       []string{"-tiff", "images/a.X3F"},
			Stderr:     "ERROR: something\n",
			ExitCode:   0,
		},
	}

	require.NoError(t, logger.LogScenario(passResult))
	require.NoError(t, logger.LogScenario(failResult))
	require.NoError(t, logger.LogSummary("2 scenarios, 1 failed\n"))
	require.Error(t, logger.LogScenario(nil))
	require.NoError(t, logger.Complete())

	passedLog, err := os.ReadFile(filepath.Join(logger.GetPassedDir(), "smoke_dng.log"))
	require.NoError(t, err)
	assert.Contains(t, string(passedLog), "Scenario: dng")
	assert.Contains(t, string(passedLog), "READ THE X3F FILE")
	assert.NotContains(t, string(passedLog), "\x1b[", "escape sequences are stripped")

	failedLog, err := os.ReadFile(filepath.Join(logger.GetFailedDir(), "smoke_tiff.log"))
	require.NoError(t, err)
	assert.Contains(t, string(failedLog), "ERROR SUMMARY")
	assert.Contains(t, string(failedLog), "Actual:   cafebabe")
	assert.Contains(t, string(failedLog), "ERROR: something")

	allLogs, err := os.ReadFile(logger.GetAllLogsFile())
	require.NoError(t, err)
	assert.Contains(t, string(allLogs), "SCENARIO: dng")
	assert.Contains(t, string(allLogs), "SCENARIO: tiff")
	assert.Contains(t, string(allLogs), "-tiff images/a.X3F")

	summary, err := os.ReadFile(logger.GetSummaryFile())
	require.NoError(t, err)
	assert.Equal(t, "2 scenarios, 1 failed\n", string(summary))

	page, err := os.ReadFile(filepath.Join(logger.GetDirectory(), ResultsHTMLFilename))
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, "Run run-1: fail")
	assert.Contains(t, html, "2 scenarios, 1 passed, 1 failed, 0 errored")
	assert.Contains(t, html, `<a href="passed/smoke_dng.log">dng</a>`)
	assert.Contains(t, html, `<a href="failed/smoke_tiff.log">tiff</a>`)
	assert.Contains(t, html, "<code>cafebabe</code>")
}

func TestHTMLSinkEscapes(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-3")
	require.NoError(t, err)

	res := &types.ScenarioResult{
		Scenario: types.Scenario{ID: "<script>", Suite: "smoke", Format: types.FormatDNG},
		Status:   types.StatusError,
		Error:    errors.New("PreconditionError: <missing>"),
	}
	require.NoError(t, logger.LogScenario(res))
	require.NoError(t, logger.Complete())

	page, err := os.ReadFile(filepath.Join(logger.GetDirectory(), ResultsHTMLFilename))
	require.NoError(t, err)
	html := string(page)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;missing&gt;")
	assert.Contains(t, html, "Run run-3: error")
}

func TestPerScenarioFileSinkWritesOnce(t *testing.T) {
	logger, err := NewFileLogger(t.TempDir(), "run-2")
	require.NoError(t, err)

	res := &types.ScenarioResult{
		Scenario: types.Scenario{Input: "a.X3F", Format: types.FormatJPG},
		Status:   types.StatusPass,
	}
	require.NoError(t, logger.LogScenario(res))
	require.NoError(t, logger.LogScenario(res))
	require.NoError(t, logger.Complete())

	entries, err := os.ReadDir(logger.GetPassedDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.X3F-_JPG.log", entries[0].Name())
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"a/b\\c", "a_b_c"},
		{"with space", "with_space"},
		{"what?*", "what__"},
		{"a...b", "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, safeFilename(tt.in))
		})
	}
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, "plain text", CleanOutput("\x1b[1;31mplain\x1b[0m text"))
}
