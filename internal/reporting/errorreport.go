// internal/reporting/errorreport.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rcastell/healctl/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorReport is the on-disk shape of the unfixed-test report consumed by CI
// dashboards and humans triaging what the healer could not repair.
type errorReport struct {
	RunID   string       `json:"run_id"`
	Entries []errorEntry `json:"entries"`
}

type errorEntry struct {
	File         string   `json:"file"`
	Title        string   `json:"title"`
	ErrorType    string   `json:"error_type"`
	ErrorSummary string   `json:"error_summary"`
	Reason       string   `json:"reason"`
	Hints        []string `json:"hints,omitempty"`
}

// triageHints give the human reading the report a starting point per failure
// class.
var triageHints = map[schemas.ErrorType][]string{
	schemas.ErrorTypeTimeout: {
		"Check whether the element appears only after a navigation or network call.",
		"Consider a web-first assertion instead of a fixed wait.",
	},
	schemas.ErrorTypeStrictMode: {
		"The selector matches multiple elements; narrow it with a role or test id.",
	},
	schemas.ErrorTypeAssertion: {
		"Decide whether the page changed intentionally before updating the expectation.",
	},
	schemas.ErrorTypeNotFound: {
		"The selector is probably stale; inspect the current DOM for a stable attribute.",
	},
}

// WriteErrorReport writes the unfixed-test report for a run. Nothing is
// written when every attempt was fixed or skipped, so the file's presence
// alone signals leftover work. Returns whether a report was written.
func WriteErrorReport(path string, report *schemas.HealingReport, logger *zap.Logger) (bool, error) {
	var entries []errorEntry
	for i := range report.Tests {
		a := &report.Tests[i]
		if !a.NotFixed() {
			continue
		}
		entries = append(entries, errorEntry{
			File:         a.Failure.FilePath,
			Title:        a.Failure.Title,
			ErrorType:    string(a.Failure.ErrorType),
			ErrorSummary: firstLine(a.Failure.ErrorMessage),
			Reason:       a.FailureReason,
			Hints:        triageHints[a.Failure.ErrorType],
		})
	}
	if len(entries) == 0 {
		return false, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("failed to create error report directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(errorReport{RunID: report.RunID, Entries: entries}, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal error report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return false, fmt.Errorf("failed to write error report: %w", err)
	}

	logger.Info("Error report written.", zap.String("path", path), zap.Int("unfixed", len(entries)))
	return true, nil
}

// PrintSummary renders the run's outcome for the console.
func PrintSummary(w io.Writer, report *schemas.HealingReport, autoFix bool) {
	skipped := 0
	unfixed := 0
	for i := range report.Tests {
		if report.Tests[i].Skipped {
			skipped++
		}
		if report.Tests[i].NotFixed() {
			unfixed++
		}
	}

	fmt.Fprintf(w, "\nHealing run %s\n", report.RunID)
	fmt.Fprintf(w, "  failing tests: %d\n", report.TotalTests)
	fmt.Fprintf(w, "  candidates produced: %d\n", report.FixedCount)
	if autoFix {
		fmt.Fprintf(w, "  verified fixes: %d\n", report.VerifiedCount)
	}
	fmt.Fprintf(w, "  skipped (environment): %d\n", skipped)
	fmt.Fprintf(w, "  unfixed: %d\n", unfixed)
	fmt.Fprintf(w, "  success rate: %.0f%%\n", report.SuccessRate*100)
	fmt.Fprintf(w, "  duration: %dms\n", report.DurationMs)

	for i := range report.Tests {
		a := &report.Tests[i]
		switch {
		case a.Skipped:
			fmt.Fprintf(w, "  SKIP  %s: %s\n", a.Failure.Title, a.SkipReason)
		case a.NotFixed():
			fmt.Fprintf(w, "  FAIL  %s: %s\n", a.Failure.Title, firstLine(a.FailureReason))
		case a.Verified:
			fmt.Fprintf(w, "  FIXED %s (verified)\n", a.Failure.Title)
		default:
			fmt.Fprintf(w, "  FIXED %s (candidate only)\n", a.Failure.Title)
		}
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
