package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kalpanika/x3f-acceptor/types"
)

const (
	MetricsNamespace = "x3f_acceptor"
)

var (
	Debug                bool = true
	validResults              = []types.ScenarioStatus{types.StatusPass, types.StatusFail, types.StatusError}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	scenariosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "scenarios_total",
		Help:      "Count of conversion scenarios",
	}, []string{
		"target",
		"run_id",
		"name",
		"format",
		"result",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of acceptance runs",
	}, []string{
		"target",
		"run_id",
		"result",
	})

	runScenarioTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scenario_total",
		Help:      "Total number of scenarios per run",
	}, []string{
		"target",
		"run_id",
	})

	runScenarioPassed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scenario_passed",
		Help:      "Number of passed scenarios per run",
	}, []string{
		"target",
		"run_id",
	})

	runScenarioFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "run_scenario_failed",
		Help:      "Number of failed scenarios per run",
	}, []string{
		"target",
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of acceptance runs",
	}, []string{
		"target",
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordScenario(target string, runID string, name string, format string, result types.ScenarioStatus) {
	if !isValidResult(result) {
		log.Error("RecordScenario - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "scenarios_total",
			"target", target,
			"run_id", runID,
			"scenario", name,
			"format", format,
			"result", result)
	}
	scenariosTotal.WithLabelValues(target, runID, name, format, string(result)).Inc()
}

func RecordRun(
	target string,
	runID string,
	result string,
	total int,
	passed int,
	failed int,
	duration time.Duration,
) {
	runResults.WithLabelValues(target, runID, result).Set(1)
	runScenarioTotal.WithLabelValues(target, runID).Add(float64(total))
	runScenarioPassed.WithLabelValues(target, runID).Add(float64(passed))
	runScenarioFailed.WithLabelValues(target, runID).Add(float64(failed))
	runDuration.WithLabelValues(target, runID).Set(duration.Seconds())
}

func isValidResult(result types.ScenarioStatus) bool {
	return slices.Contains(validResults, result)
}
