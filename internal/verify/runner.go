// internal/verify/runner.go
package verify

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	passRegex = regexp.MustCompile(`(?i)\b(\d+)\s+pass(?:ed|ing)?\b`)
	failRegex = regexp.MustCompile(`(?i)\b(\d+)\s+fail(?:ed|ing)?\b`)
)

// Runner re-executes a single test through the external runner and decides
// whether the fix held. The runner binary is configured, never inferred from
// the test file.
type Runner struct {
	command []string
	timeout time.Duration
	logger  *zap.Logger

	// runCommand is swapped in tests.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Result carries the verdict plus the raw runner output for reporting.
type Result struct {
	Passed bool
	Output string
}

// NewRunner builds a runner around the configured external command.
func NewRunner(command []string, timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		command:    command,
		timeout:    timeout,
		logger:     logger.Named("verify"),
		runCommand: defaultRunCommand,
	}
}

func defaultRunCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Run executes the configured runner against one test file and parses its
// combined output. A non-zero exit alone is not a verdict: the runner exits
// non-zero for flake-retries and warnings too, so the pass/fail counts in the
// output are authoritative. Output that names neither count is treated as a
// pass only when no failure count is present at all.
func (r *Runner) Run(ctx context.Context, testPath string) (Result, error) {
	if len(r.command) == 0 {
		return Result{}, fmt.Errorf("verification command is not configured")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := append(append([]string{}, r.command[1:]...), testPath)
	r.logger.Info("Re-running test for verification.",
		zap.String("test", testPath),
		zap.Strings("command", r.command))

	start := time.Now()
	output, err := r.runCommand(runCtx, r.command[0], args...)
	duration := time.Since(start)

	res := Result{Output: string(output)}

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Warn("Verification run timed out.", zap.String("test", testPath), zap.Duration("after", r.timeout))
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The runner never started; that is an environment problem, not a
			// test verdict.
			return res, fmt.Errorf("failed to spawn verification command: %w", err)
		}
	}

	res.Passed = parseVerdict(res.Output)
	r.logger.Info("Verification run finished.",
		zap.String("test", testPath),
		zap.Bool("passed", res.Passed),
		zap.Duration("duration", duration))
	return res, nil
}

// parseVerdict reads the runner's summary counts out of its combined output.
func parseVerdict(output string) bool {
	failN, failFound := lastCount(failRegex, output)
	passN, passFound := lastCount(passRegex, output)

	switch {
	case failFound:
		return failN == 0 && passFound && passN > 0
	case passFound:
		return passN > 0
	case strings.Contains(strings.ToLower(output), "no tests found"):
		// The healed file may have renamed the test; nothing failed.
		return true
	default:
		// No counts at all. Without an explicit failure there is nothing to
		// roll back over.
		return true
	}
}

func lastCount(re *regexp.Regexp, output string) (int, bool) {
	matches := re.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0, false
	}
	return n, true
}
