package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalpanika/x3f-acceptor/types"
)

// ResultStats tracks scenario statistics at each level
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Errored   int
	StartTime time.Time
	EndTime   time.Time
}

func (s *ResultStats) add(r *types.ScenarioResult) {
	s.Total++
	switch r.Status {
	case types.StatusPass:
		s.Passed++
	case types.StatusFail:
		s.Failed++
	default:
		s.Errored++
	}
}

// SuiteResult captures aggregated results for a suite
type SuiteResult struct {
	ID        string
	Scenarios []*types.ScenarioResult
	Status    types.ScenarioStatus
	Duration  time.Duration
	Stats     ResultStats
}

// RunResult captures the complete run
type RunResult struct {
	RunID    string
	Suites   []*SuiteResult
	Status   types.ScenarioStatus
	Duration time.Duration
	Stats    ResultStats
}

// determineStatus folds stats into a status: any error wins, then any failure.
func determineStatus(stats ResultStats) types.ScenarioStatus {
	switch {
	case stats.Errored > 0:
		return types.StatusError
	case stats.Failed > 0:
		return types.StatusFail
	default:
		return types.StatusPass
	}
}

// NewSuiteResult aggregates the results of one suite that started at start.
func NewSuiteResult(id string, results []*types.ScenarioResult, start time.Time) *SuiteResult {
	suite := &SuiteResult{ID: id, Scenarios: results, Stats: ResultStats{StartTime: start}}
	for _, res := range results {
		suite.Stats.add(res)
	}
	suite.Stats.EndTime = time.Now()
	suite.Duration = suite.Stats.EndTime.Sub(start)
	suite.Status = determineStatus(suite.Stats)
	return suite
}

// NewRunResult starts an empty run.
func NewRunResult(runID string, start time.Time) *RunResult {
	return &RunResult{RunID: runID, Status: types.StatusPass, Stats: ResultStats{StartTime: start}}
}

// AddSuite appends suite and folds its stats into the run.
func (r *RunResult) AddSuite(suite *SuiteResult) {
	r.Suites = append(r.Suites, suite)
	r.Stats.Total += suite.Stats.Total
	r.Stats.Passed += suite.Stats.Passed
	r.Stats.Failed += suite.Stats.Failed
	r.Stats.Errored += suite.Stats.Errored
	r.Status = determineStatus(r.Stats)
}

// Finish stamps the end of the run.
func (r *RunResult) Finish() {
	r.Stats.EndTime = time.Now()
	r.Duration = r.Stats.EndTime.Sub(r.Stats.StartTime)
}

// Failed returns every scenario result that did not pass, in run order.
func (r *RunResult) Failed() []*types.ScenarioResult {
	var failed []*types.ScenarioResult
	for _, suite := range r.Suites {
		for _, sc := range suite.Scenarios {
			if !sc.Passed() {
				failed = append(failed, sc)
			}
		}
	}
	return failed
}

// String returns a short summary of the run
func (r *RunResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RunResult{RunID: %s, Status: %s, Total: %d, Passed: %d, Failed: %d, Errored: %d, Duration: %s}",
		r.RunID, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.Errored, r.Duration.Round(time.Millisecond))
	for _, f := range r.Failed() {
		fmt.Fprintf(&b, "\n  %s [%s] %s: %v", f.Scenario.Suite, f.Status, f.Scenario.Name(), f.Error)
	}
	return b.String()
}
