// internal/healing/orchestrator.go
package healing

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rcastell/healctl/api/schemas"
	"github.com/rcastell/healctl/internal/config"
	"github.com/rcastell/healctl/internal/results"
)

const systemPrompt = `You are an expert test engineer repairing a failing browser UI test.
You will receive the current test file and the error output of a failing run.
Respond with the COMPLETE corrected test file in a single fenced code block.
Do not remove or weaken assertions. Do not add explanatory prose inside the code block.`

// errorTypeHints steer the analysis toward the likely fix per symptom class.
var errorTypeHints = map[schemas.ErrorType]string{
	schemas.ErrorTypeTimeout:    "The failure is a timeout. Prefer web-first assertions and explicit waits over fixed sleeps; check whether the selector targets an element that only appears after navigation.",
	schemas.ErrorTypeStrictMode: "The failure is a strict mode violation: a locator resolved to multiple elements. Make the selector unambiguous, for example with a role, test id, or :first/:nth refinement that preserves intent.",
	schemas.ErrorTypeAssertion:  "The failure is an assertion mismatch. Decide whether the expectation or the page state changed, and update the weaker side without deleting the assertion.",
	schemas.ErrorTypeNotFound:   "The failure is a missing element. The selector is probably stale; find the closest stable attribute for the same element.",
	schemas.ErrorTypeUnknown:    "The failure class is unclear. Read the error output carefully before changing anything.",
}

// Orchestrator drives each failing test through the healing pipeline:
// classify, sanitize, analyze, extract, validate, and, in auto-fix mode,
// apply, verify and roll back on failure. Attempts run sequentially; the
// analysis rate limit makes concurrency pointless and sequential runs keep
// the audit trail in causal order.
type Orchestrator struct {
	cfg       *config.Config
	client    schemas.AnalysisClient
	sanitizer *Sanitizer
	mutator   FileMutator
	verifier  Verifier
	auditor   Auditor
	backups   BackupDeleter
	logger    *zap.Logger
	autoFix   bool

	now func() time.Time
}

// NewOrchestrator wires the pipeline. With autoFix false the run stops after
// validation and never touches disk.
func NewOrchestrator(
	cfg *config.Config,
	client schemas.AnalysisClient,
	mutator FileMutator,
	verifier Verifier,
	auditor Auditor,
	backups BackupDeleter,
	autoFix bool,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		client:    client,
		sanitizer: NewSanitizer(cfg.Analysis.MaxPromptChars, logger),
		mutator:   mutator,
		verifier:  verifier,
		auditor:   auditor,
		backups:   backups,
		logger:    logger.Named("orchestrator"),
		autoFix:   autoFix,
		now:       time.Now,
	}
}

// Run processes every raw failure and returns the finalized report. One
// failing attempt never aborts the run; its reason lands in the attempt record
// and the loop moves on. Only context cancellation stops the run early.
func (o *Orchestrator) Run(ctx context.Context, failures []results.RawFailure) (*schemas.HealingReport, error) {
	start := o.now()
	report := &schemas.HealingReport{
		RunID:      uuid.NewString(),
		TotalTests: len(failures),
	}

	o.logger.Info("Healing run starting.",
		zap.String("run_id", report.RunID),
		zap.Int("failing_tests", len(failures)),
		zap.Bool("auto_fix", o.autoFix))

	for _, raw := range failures {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("healing run aborted: %w", err)
		}
		attempt := o.heal(ctx, raw)
		report.Tests = append(report.Tests, attempt)
	}

	o.finalize(report, start)
	return report, nil
}

// heal runs the full pipeline for a single failing test. Every exit path
// leaves the attempt self-describing: either Skipped with a reason, Verified
// (or validated in analyze-only mode), or FailureReason set.
func (o *Orchestrator) heal(ctx context.Context, raw results.RawFailure) schemas.HealingAttempt {
	attempt := schemas.HealingAttempt{AttemptID: uuid.NewString()}

	failure, skipReason := Classify(raw)
	attempt.Failure = failure
	log := o.logger.With(zap.String("attempt_id", attempt.AttemptID), zap.String("test", raw.Title))

	if skipReason != "" {
		attempt.Skipped = true
		attempt.SkipReason = skipReason
		log.Info("Skipping unhealable failure.", zap.String("reason", skipReason))
		return attempt
	}

	resolved, err := results.ResolveTestPath(o.cfg.Healing.TestRoot, raw.File)
	if err != nil {
		attempt.FailureReason = err.Error()
		log.Warn("Rejected test file path.", zap.Error(err))
		return attempt
	}
	attempt.Failure.FilePath = resolved

	source, err := o.readTestFile(resolved)
	if err != nil {
		attempt.FailureReason = err.Error()
		log.Warn("Could not read test file.", zap.Error(err))
		return attempt
	}

	sanitizedErr := o.sanitizer.Sanitize("error_message", failure.ErrorMessage)
	sanitizedSrc := o.sanitizer.Sanitize("test_source", source)
	attempt.InjectionFlag = sanitizedErr.InjectionFlag || sanitizedSrc.InjectionFlag

	response, err := o.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(attempt.Failure, sanitizedSrc.Text, sanitizedErr.Text),
		Temperature:  o.cfg.Analysis.Temperature,
	})
	if err != nil {
		attempt.FailureReason = fmt.Sprintf("analysis failed: %v", err)
		log.Warn("Analysis request failed.", zap.Error(err))
		return attempt
	}
	attempt.RawAnalysis = response

	candidate, ok := ExtractCode(response)
	if !ok {
		attempt.FailureReason = "analysis response contained no usable code"
		log.Warn("No code could be extracted from the analysis response.")
		return attempt
	}
	attempt.CandidateCode = candidate

	attempt.Validation = ValidateCode(candidate)
	if !attempt.Validation.OK {
		attempt.FailureReason = "candidate rejected: " + strings.Join(attempt.Validation.Issues, "; ")
		log.Warn("Candidate failed validation.", zap.Strings("issues", attempt.Validation.Issues))
		return attempt
	}
	for _, issue := range attempt.Validation.Issues {
		log.Warn("Candidate validation finding.", zap.String("issue", issue))
	}

	if !o.autoFix {
		log.Info("Analyze-only mode; candidate validated, not applied.")
		return attempt
	}

	return o.applyAndVerify(ctx, attempt, resolved, candidate, log)
}

// applyAndVerify is the mutating tail of the pipeline. Invariant on every
// path: the test file on disk is either the verified candidate or the
// pre-mutation original, except when the rollback itself fails, which is
// reported loudly with the backup location.
func (o *Orchestrator) applyAndVerify(ctx context.Context, attempt schemas.HealingAttempt, path string, candidate string, log *zap.Logger) schemas.HealingAttempt {
	rec, err := o.mutator.Apply(path, []byte(candidate))
	attempt.Backup = rec
	if err != nil {
		attempt.FailureReason = fmt.Sprintf("failed to apply candidate: %v", err)
		log.Warn("Mutation failed; original file untouched.", zap.Error(err))
		return attempt
	}
	attempt.Applied = true

	result, err := o.verifier.Run(ctx, path)
	if err != nil {
		// The runner never produced a verdict; treat it as a failed fix.
		result.Passed = false
		log.Warn("Verification run errored.", zap.Error(err))
	}

	if result.Passed {
		attempt.Verified = true
		if err := o.auditor.Record(schemas.AuditTestVerified, path, "attempt "+attempt.AttemptID); err != nil {
			log.Warn("Failed to audit verification.", zap.Error(err))
		}
		if err := o.backups.Delete(rec); err != nil {
			log.Warn("Failed to delete backup after verified fix.", zap.Error(err))
		}
		log.Info("Fix verified.", zap.String("path", path))
		return attempt
	}

	if err := o.auditor.Record(schemas.AuditTestFailed, path, "attempt "+attempt.AttemptID); err != nil {
		log.Warn("Failed to audit verification failure.", zap.Error(err))
	}

	if err := o.mutator.Rollback(rec); err != nil {
		attempt.FailureReason = fmt.Sprintf(
			"fix failed verification AND rollback failed: %v; the file may hold unverified changes, backup at %s", err, rec.BackupPath)
		log.Error("ROLLBACK FAILED; manual recovery needed.",
			zap.String("path", path),
			zap.String("backup", rec.BackupPath),
			zap.Error(err))
		return attempt
	}

	attempt.FailureReason = "candidate did not pass verification; original restored"
	log.Info("Fix rejected by verification; rolled back.", zap.String("path", path))
	return attempt
}

// readTestFile loads the test source under the configured size cap. Oversized
// files are refused before any of their content is put in a prompt.
func (o *Orchestrator) readTestFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat test file: %w", err)
	}
	if info.Size() > o.cfg.Healing.MaxFileSizeBytes {
		return "", fmt.Errorf("test file is %d bytes, over the %d byte limit", info.Size(), o.cfg.Healing.MaxFileSizeBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read test file: %w", err)
	}
	return string(data), nil
}

// buildUserPrompt assembles the analysis prompt from already-sanitized parts.
func buildUserPrompt(failure schemas.TestFailure, source, errText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Failing test: %s\n", failure.Title)
	fmt.Fprintf(&b, "Failure class: %s\n", failure.ErrorType)
	if hint := errorTypeHints[failure.ErrorType]; hint != "" {
		fmt.Fprintf(&b, "Hint: %s\n", hint)
	}
	b.WriteString("\nCurrent test file:\n```\n")
	b.WriteString(source)
	b.WriteString("\n```\n\nError output:\n```\n")
	b.WriteString(errText)
	b.WriteString("\n```\n")
	return b.String()
}

// finalize computes the aggregate counters. FixedCount counts attempts that
// produced a validated candidate; VerifiedCount the subset confirmed by a
// re-run. The success rate is verified over total in auto-fix mode and fixed
// over total in analyze-only mode, since nothing is verified there.
func (o *Orchestrator) finalize(report *schemas.HealingReport, start time.Time) {
	for i := range report.Tests {
		a := &report.Tests[i]
		if !a.Skipped && a.Validation.OK && a.CandidateCode != "" {
			report.FixedCount++
		}
		if a.Verified {
			report.VerifiedCount++
		}
	}
	if report.TotalTests > 0 {
		if o.autoFix {
			report.SuccessRate = float64(report.VerifiedCount) / float64(report.TotalTests)
		} else {
			report.SuccessRate = float64(report.FixedCount) / float64(report.TotalTests)
		}
	}
	report.DurationMs = o.now().Sub(start).Milliseconds()

	o.logger.Info("Healing run finished.",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.TotalTests),
		zap.Int("fixed", report.FixedCount),
		zap.Int("verified", report.VerifiedCount),
		zap.Float64("success_rate", report.SuccessRate),
		zap.Int64("duration_ms", report.DurationMs))
}
