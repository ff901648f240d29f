package logging

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kalpanika/x3f-acceptor/types"
)

// ResultsHTMLFilename is the run summary page inside the run directory
const ResultsHTMLFilename = "results.html"

// HTMLSink collects the results of a run and renders results.html on Complete.
// Each row links to the scenario's log file.
type HTMLSink struct {
	logger   *FileLogger
	template *template.Template

	mu      sync.Mutex
	results map[string][]*types.ScenarioResult
}

// NewHTMLSink creates an HTML sink writing into logger's run directory
func NewHTMLSink(logger *FileLogger) (*HTMLSink, error) {
	tmpl, err := GetHTMLTemplate(ResultsTemplate)
	if err != nil {
		return nil, err
	}
	return &HTMLSink{
		logger:   logger,
		template: tmpl,
		results:  make(map[string][]*types.ScenarioResult),
	}, nil
}

type htmlRow struct {
	Suite    string
	Name     string
	Format   string
	Status   types.ScenarioStatus
	Duration time.Duration
	Expected string
	Actual   string
	Error    string
	LogPath  string
}

type htmlReport struct {
	RunID     string
	Generated string
	Status    types.ScenarioStatus
	Total     int
	Passed    int
	Failed    int
	Errored   int
	Rows      []htmlRow
}

// Consume collects a scenario result for later rendering
func (s *HTMLSink) Consume(result *types.ScenarioResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete renders the collected results of runID
func (s *HTMLSink) Complete(runID string) error {
	s.mu.Lock()
	results := s.results[runID]
	delete(s.results, runID)
	s.mu.Unlock()

	report := htmlReport{
		RunID:     runID,
		Generated: time.Now().Format(time.RFC3339),
		Status:    types.StatusPass,
	}
	for _, res := range results {
		report.Total++
		switch res.Status {
		case types.StatusPass:
			report.Passed++
		case types.StatusFail:
			report.Failed++
		default:
			report.Errored++
		}

		dir := PassedDirname
		if !res.Passed() {
			dir = FailedDirname
		}
		row := htmlRow{
			Suite:    res.Scenario.Suite,
			Name:     res.Scenario.Name(),
			Format:   res.Scenario.Format.String(),
			Status:   res.Status,
			Duration: res.Duration,
			Expected: res.Scenario.ExpectedHash,
			Actual:   res.ActualHash,
			LogPath:  filepath.ToSlash(filepath.Join(dir, scenarioFilename(res.Scenario)+".log")),
		}
		if res.Error != nil {
			row.Error = res.Error.Error()
		}
		report.Rows = append(report.Rows, row)
	}
	switch {
	case report.Errored > 0:
		report.Status = types.StatusError
	case report.Failed > 0:
		report.Status = types.StatusFail
	}

	var buf bytes.Buffer
	if err := s.template.Execute(&buf, report); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	path := filepath.Join(s.logger.GetDirectory(), ResultsHTMLFilename)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	return nil
}
