package acceptor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/kalpanika/x3f-acceptor/runner"
	"github.com/kalpanika/x3f-acceptor/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *runner.RunResult) error
}

// ConsoleResultFormatter renders a run as a table.
type ConsoleResultFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing to
// out, or to stdout when out is nil.
func NewConsoleResultFormatter(logger log.Logger, out io.Writer) *ConsoleResultFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleResultFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatResults formats and displays the run results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunResult) error {
	if result == nil {
		return fmt.Errorf("no result to format")
	}
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Conversion Acceptance Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"Type", "ID", "Format", "Duration", "Scenarios", "Passed", "Failed", "Errored", "Status", "Error",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Scenarios", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Errored", Align: text.AlignRight},
		{Name: "Error", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, suite := range result.Suites {
		t.AppendRow(table.Row{
			"Suite",
			suite.ID,
			"",
			formatDuration(suite.Duration),
			"-", // Don't count suite as a scenario
			suite.Stats.Passed,
			suite.Stats.Failed,
			suite.Stats.Errored,
			getResultString(suite.Status),
			"",
		})

		for i, sc := range suite.Scenarios {
			prefix := "├──"
			if i == len(suite.Scenarios)-1 {
				prefix = "└──"
			}
			t.AppendRow(table.Row{
				"Scenario",
				fmt.Sprintf("%s %s", prefix, sc.Scenario.Name()),
				sc.Scenario.Format.String(),
				formatDuration(sc.Duration),
				"1",
				boolToInt(sc.Status == types.StatusPass),
				boolToInt(sc.Status == types.StatusFail),
				boolToInt(sc.Status == types.StatusError),
				getResultString(sc.Status),
				extractKeyErrorMessage(sc.Error),
			})
		}
		t.AppendSeparator()
	}

	if result.Status == types.StatusPass {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		"",
		formatDuration(result.Duration),
		result.Stats.Total,
		result.Stats.Passed,
		result.Stats.Failed,
		result.Stats.Errored,
		getResultString(result.Status),
		"",
	})

	t.Render()

	_, err := fmt.Fprintln(f.out, result.String())
	return err
}

// extractKeyErrorMessage keeps the line of an error that names the problem
func extractKeyErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	// Hash mismatches carry both digests; keep them together.
	if idx := strings.Index(errStr, "expected hash"); idx != -1 {
		end := len(errStr)
		if newLine := strings.Index(errStr[idx:], "\n"); newLine != -1 {
			end = idx + newLine
		}
		return errStr[idx:end]
	}

	if idx := strings.Index(errStr, "\n"); idx != -1 {
		return errStr[:idx]
	} else if len(errStr) > 80 {
		return errStr[:70] + "..."
	}
	return errStr
}

// Helper function to convert bool to int
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getResultString returns a marked string representing the scenario status
func getResultString(status types.ScenarioStatus) string {
	switch status {
	case types.StatusPass:
		return "✓ pass"
	case types.StatusFail:
		return "✗ fail"
	default:
		return "! error"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
