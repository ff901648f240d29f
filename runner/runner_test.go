package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalpanika/x3f-acceptor/logging"
	"github.com/kalpanika/x3f-acceptor/types"
)

func newTestRunner(t *testing.T, script string) *Runner {
	t.Helper()
	r, err := New(Config{
		Executable:     writeStub(t, script),
		DefaultTimeout: 10 * time.Second,
		Target:         "test",
		Log:            log.New(),
	})
	require.NoError(t, err)
	return r
}

func scenarioFor(input string, f types.Format, ext, hash string) types.Scenario {
	return types.Scenario{
		Suite:        "smoke",
		Input:        input,
		Output:       input + ext,
		Format:       f,
		ExpectedHash: hash,
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.ErrorIs(t, err, ErrConfiguration)

	r, err := New(Config{Executable: "/opt/x3f_extract"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/x3f_extract", r.Executable())
	assert.Equal(t, DefaultScenarioTimeout, r.defaultTimeout)
	assert.Equal(t, defaultTarget, r.target)
}

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.X3F")
	r := newTestRunner(t, fakeConverter)

	tests := []struct {
		name     string
		scenario types.Scenario
		status   types.ScenarioStatus
		kind     ErrorKind
	}{
		{
			name:     "dng matches",
			scenario: scenarioFor(input, types.FormatDNG, ".dng", md5Hex("converted .dng\n")),
			status:   types.StatusPass,
		},
		{
			name:     "jpg mismatch",
			scenario: scenarioFor(input, types.FormatJPG, ".jpg", "deadbeef"),
			status:   types.StatusFail,
			kind:     KindHashMismatch,
		},
		{
			name:     "output written elsewhere",
			scenario: scenarioFor(input, types.FormatPPM, ".pgm", md5Hex("converted .ppm\n")),
			status:   types.StatusFail,
			kind:     KindOutputMissing,
		},
		{
			name:     "missing input",
			scenario: scenarioFor(filepath.Join(dir, "missing.X3F"), types.FormatDNG, ".dng", "deadbeef"),
			status:   types.StatusError,
			kind:     KindPrecondition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.RunScenario(context.Background(), tt.scenario)
			require.NotNil(t, res)
			assert.Equal(t, tt.status, res.Status, "err: %v", res.Error)
			assert.Equal(t, tt.kind, KindOf(res.Error))
			assert.NoError(t, res.CleanupErr)
			assert.NoFileExists(t, tt.scenario.Output)
			assert.NoFileExists(t, tt.scenario.Output+lockSuffix)
		})
	}
}

func TestRunScenario_CaseInsensitiveHash(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.X3F")
	r := newTestRunner(t, fakeConverter)

	upper := strings.ToUpper(md5Hex("converted .tif\n"))
	res := r.RunScenario(context.Background(), scenarioFor(input, types.FormatTIFF, ".tif", upper))
	require.True(t, res.Passed(), "err: %v", res.Error)
	assert.Equal(t, md5Hex("converted .tif\n"), res.ActualHash)
	assert.Equal(t, []string{"-tiff", "-color", "none", "-no-denoise", "-no-crop", input}, res.Invocation.Args)
}

func TestRunScenario_Idempotent(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.X3F")
	r := newTestRunner(t, fakeConverter)
	s := scenarioFor(input, types.FormatDNG, ".dng", md5Hex("converted .dng\n"))

	for i := 0; i < 3; i++ {
		res := r.RunScenario(context.Background(), s)
		require.True(t, res.Passed(), "run %d: %v", i, res.Error)
	}
}

func TestRunScenario_StaleOutputIsRemoved(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.X3F")
	// The converter writes nothing, so only a stale file could satisfy
	// verification.
	r := newTestRunner(t, "#!/bin/sh\nexit 0\n")
	s := scenarioFor(input, types.FormatDNG, ".dng", md5Hex("stale"))
	require.NoError(t, os.WriteFile(s.Output, []byte("stale"), 0o444))

	res := r.RunScenario(context.Background(), s)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.Equal(t, KindOutputMissing, KindOf(res.Error))
}

func TestRunScenario_NonZeroExitRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.X3F")
	r := newTestRunner(t, "#!/bin/sh\nfor a in \"$@\"; do in=\"$a\"; done\necho partial > \"$in.dng\"\nexit 1\n")
	s := scenarioFor(input, types.FormatDNG, ".dng", "deadbeef")

	res := r.RunScenario(context.Background(), s)
	assert.Equal(t, types.StatusFail, res.Status)
	require.ErrorIs(t, res.Error, ErrNonZeroExit)
	assert.Equal(t, 1, res.Invocation.ExitCode)
	assert.NoFileExists(t, s.Output)
}

func TestRunScenario_Timeout(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "a.X3F")
	r := newTestRunner(t, "#!/bin/sh\nexec sleep 5\n")
	s := scenarioFor(input, types.FormatDNG, ".dng", "deadbeef")
	s.Timeout = 100 * time.Millisecond

	res := r.RunScenario(context.Background(), s)
	assert.Equal(t, types.StatusFail, res.Status)
	require.ErrorIs(t, res.Error, ErrProcessTimeout)
	assert.True(t, res.Invocation.TimedOut)
}

func TestLockOutput(t *testing.T) {
	r := newTestRunner(t, fakeConverter)
	out := filepath.Join(t.TempDir(), "a.X3F.dng")

	unlock, err := r.LockOutput(out)
	require.NoError(t, err)

	_, err = r.LockOutput(out)
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Contains(t, err.Error(), "owned by another running scenario")

	unlock()
	assert.NoFileExists(t, out+lockSuffix)

	unlock, err = r.LockOutput(out)
	require.NoError(t, err)
	unlock()
}

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	a := writeInput(t, dir, "a.X3F")
	b := writeInput(t, dir, "b.X3F")
	r := newTestRunner(t, fakeConverter)

	logDir := t.TempDir()
	fl, err := logging.NewFileLogger(logDir, "run-abc")
	require.NoError(t, err)
	r.SetFileLogger(fl)

	good := scenarioFor(a, types.FormatDNG, ".dng", md5Hex("converted .dng\n"))
	bad := scenarioFor(b, types.FormatJPG, ".jpg", "deadbeef")
	other := scenarioFor(b, types.FormatPPM, ".ppm", md5Hex("converted .ppm\n"))
	other.Suite = "regression"

	result, err := r.RunAll(context.Background(), []types.Scenario{good, other, bad})
	require.NoError(t, err)
	require.NoError(t, fl.Complete())

	assert.Equal(t, "run-abc", result.RunID)
	assert.Equal(t, types.StatusFail, result.Status)
	assert.Equal(t, 3, result.Stats.Total)
	assert.Equal(t, 2, result.Stats.Passed)
	assert.Equal(t, 1, result.Stats.Failed)
	assert.Equal(t, 0, result.Stats.Errored)

	require.Len(t, result.Suites, 2)
	assert.Equal(t, "smoke", result.Suites[0].ID)
	assert.Len(t, result.Suites[0].Scenarios, 2)
	assert.Equal(t, types.StatusFail, result.Suites[0].Status)
	assert.Equal(t, "regression", result.Suites[1].ID)
	assert.Equal(t, types.StatusPass, result.Suites[1].Status)

	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, b, failed[0].Scenario.Input)
	assert.Contains(t, result.String(), "HashMismatch")

	entries, err := os.ReadDir(fl.GetFailedDir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.FileExists(t, fl.GetAllLogsFile())
}

func TestRunAll_Empty(t *testing.T) {
	r := newTestRunner(t, fakeConverter)
	_, err := r.RunAll(context.Background(), nil)
	require.Error(t, err)
}

func TestRunAll_Interrupted(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(t, fakeConverter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunAll(ctx, []types.Scenario{scenarioFor(writeInput(t, dir, "a.X3F"), types.FormatDNG, ".dng", "x")})
	require.ErrorIs(t, err, context.Canceled)
}
