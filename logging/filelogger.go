package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/kalpanika/x3f-acceptor/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	AllLogsFilename    = "all.log"
	PassedDirname      = "passed"
	FailedDirname      = "failed"
)

// ResultSink is an interface for different ways of consuming scenario results
type ResultSink interface {
	// Consume processes a single scenario result
	Consume(result *types.ScenarioResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger writes scenario output of one run to files
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of this run
	failedDir    string                // Directory for failed scenarios
	passedDir    string                // Directory for passed scenarios
	mu           sync.Mutex            // Protects asyncWriters
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string                // Current run ID
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the directory layout for runID under baseDir:
//
//	<baseDir>/testrun-<runID>/{passed,failed}/
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	l := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    filepath.Join(logDir, FailedDirname),
		passedDir:    filepath.Join(logDir, PassedDirname),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}

	for _, dir := range []string{baseDir, logDir, l.failedDir, l.passedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	htmlSink, err := NewHTMLSink(l)
	if err != nil {
		return nil, err
	}
	l.sinks = []ResultSink{
		&AllLogsFileSink{logger: l},
		&PerScenarioFileSink{logger: l, processed: make(map[string]bool)},
		htmlSink,
	}
	return l, nil
}

func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// AddSink registers an additional result consumer
func (l *FileLogger) AddSink(sink ResultSink) {
	l.sinks = append(l.sinks, sink)
}

// LogScenario feeds a scenario result to all sinks
func (l *FileLogger) LogScenario(result *types.ScenarioResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(result, l.runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary writes the run summary to summary.log
func (l *FileLogger) LogSummary(summary string) error {
	writer, err := l.getAsyncWriter(l.GetSummaryFile())
	if err != nil {
		return err
	}
	return writer.Write([]byte(summary))
}

// Complete finalizes all sinks and flushes all files
func (l *FileLogger) Complete() error {
	defer l.closeAllWriters()
	for _, sink := range l.sinks {
		if err := sink.Complete(l.runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	return nil
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetDirectory returns the directory of this run
func (l *FileLogger) GetDirectory() string {
	return l.logDir
}

// GetFailedDir returns the directory containing logs for failed scenarios
func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

// GetPassedDir returns the directory containing logs for passed scenarios
func (l *FileLogger) GetPassedDir() string {
	return l.passedDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return filepath.Join(l.logDir, SummaryFilename)
}

// GetAllLogsFile returns the path to the all logs file
func (l *FileLogger) GetAllLogsFile() string {
	return filepath.Join(l.logDir, AllLogsFilename)
}

// safeFilename converts a string to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	r := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
		"...", "",
	)
	return r.Replace(s)
}

// scenarioFilename names the per-scenario log file, prefixed by the suite
func scenarioFilename(s types.Scenario) string {
	name := s.Name()
	if s.Suite != "" && s.Suite != name {
		name = s.Suite + "_" + name
	}
	return safeFilename(name)
}

// CleanOutput strips terminal escape sequences from child output
func CleanOutput(s string) string {
	return stripansi.Strip(s)
}

// Sink implementations

// AllLogsFileSink writes all scenario results to a single "all.log" file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume writes a scenario result to the all.log file
func (s *AllLogsFileSink) Consume(result *types.ScenarioResult, runID string) error {
	writer, err := s.logger.getAsyncWriter(s.logger.GetAllLogsFile())
	if err != nil {
		return err
	}

	sc := result.Scenario
	var content strings.Builder
	fmt.Fprintf(&content, "\n")
	fmt.Fprintf(&content, "┌─────────────────────────────────────────────────────────────────────┐\n")
	fmt.Fprintf(&content, "│ SCENARIO: %-60s │\n", truncateString(sc.Name(), 60))
	fmt.Fprintf(&content, "├─────────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&content, "│ Status:   %-60s │\n", result.Status)
	fmt.Fprintf(&content, "│ Suite:    %-60s │\n", truncateString(sc.Suite, 60))
	fmt.Fprintf(&content, "│ Input:    %-60s │\n", truncateString(sc.Input, 60))
	fmt.Fprintf(&content, "│ Format:   %-60s │\n", sc.Format)
	fmt.Fprintf(&content, "│ Duration: %-60s │\n", result.Duration)
	fmt.Fprintf(&content, "│ Time:     %-60s │\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&content, "└─────────────────────────────────────────────────────────────────────┘\n\n")

	if result.Error != nil {
		fmt.Fprintf(&content, "ERROR:\n")
		fmt.Fprintf(&content, "~~~~~~\n")
		fmt.Fprintf(&content, "%s\n\n", result.Error.Error())
	}
	writeInvocation(&content, result.Invocation)
	fmt.Fprintf(&content, "\n")

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerScenarioFileSink creates one log file per scenario in the passed or
// failed directory
type PerScenarioFileSink struct {
	logger    *FileLogger
	mu        sync.Mutex
	processed map[string]bool
}

// Consume writes a scenario result to its dedicated file, once per path
func (s *PerScenarioFileSink) Consume(result *types.ScenarioResult, runID string) error {
	dir := s.logger.GetPassedDir()
	if !result.Passed() {
		dir = s.logger.GetFailedDir()
	}
	path := filepath.Join(dir, scenarioFilename(result.Scenario)+".log")

	s.mu.Lock()
	if s.processed[path] {
		s.mu.Unlock()
		return nil
	}
	s.processed[path] = true
	s.mu.Unlock()

	writer, err := s.logger.getAsyncWriter(path)
	if err != nil {
		return err
	}

	sc := result.Scenario
	var content strings.Builder
	if !result.Passed() {
		fmt.Fprintf(&content, "ERROR SUMMARY:\n")
		fmt.Fprintf(&content, "=============\n\n")
		if result.Invocation != nil && result.Invocation.TimedOut {
			fmt.Fprintf(&content, "The executable was killed after %s.\n", formatDuration(result.Invocation.Duration))
		}
		fmt.Fprintf(&content, "Error: %v\n\n", result.Error)
	}
	fmt.Fprintf(&content, "Scenario: %s\n", sc.Name())
	fmt.Fprintf(&content, "Input:    %s\n", sc.Input)
	fmt.Fprintf(&content, "Output:   %s\n", sc.Output)
	fmt.Fprintf(&content, "Format:   %s\n", sc.Format)
	fmt.Fprintf(&content, "Expected: %s\n", sc.ExpectedHash)
	if result.ActualHash != "" {
		fmt.Fprintf(&content, "Actual:   %s\n", result.ActualHash)
	}
	if result.CleanupErr != nil {
		fmt.Fprintf(&content, "Cleanup:  %v\n", result.CleanupErr)
	}
	fmt.Fprintf(&content, "Duration: %s\n\n", formatDuration(result.Duration))
	writeInvocation(&content, result.Invocation)

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for PerScenarioFileSink
func (s *PerScenarioFileSink) Complete(runID string) error {
	return nil
}

func writeInvocation(b *strings.Builder, inv *types.Invocation) {
	if inv == nil {
		return
	}
	fmt.Fprintf(b, "COMMAND:\n")
	fmt.Fprintf(b, "~~~~~~~~\n")
	fmt.Fprintf(b, "  %s %s\n", inv.Executable, strings.Join(inv.Args, " "))
	fmt.Fprintf(b, "  exit code %d after %s\n\n", inv.ExitCode, formatDuration(inv.Duration))
	if inv.Stdout != "" {
		fmt.Fprintf(b, "STDOUT:\n")
		fmt.Fprintf(b, "~~~~~~~\n")
		fmt.Fprintf(b, "%s\n", indentText(CleanOutput(inv.Stdout), "  "))
	}
	if inv.Stderr != "" {
		fmt.Fprintf(b, "STDERR:\n")
		fmt.Fprintf(b, "~~~~~~~\n")
		fmt.Fprintf(b, "%s\n", indentText(CleanOutput(inv.Stderr), "  "))
	}
}

// indentText adds indentation to each line of text for better readability
func indentText(text, indent string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// truncateString truncates a string to the specified max length
// and adds an ellipsis if needed
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
