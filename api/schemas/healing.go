// api/schemas/healing.go
package schemas

import "context"

// ErrorType categorizes a test failure by the dominant symptom in its error
// text. Classification is keyword based; the first matching category wins.
type ErrorType string

const (
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeStrictMode ErrorType = "strict_mode"
	ErrorTypeAssertion  ErrorType = "assertion"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// TestFailure is one failing test discovered in a run. FilePath is only
// populated after it has been resolved and validated against the configured
// test root; it must never be used raw from the input document.
type TestFailure struct {
	FilePath     string    `json:"file_path"`
	Title        string    `json:"title"`
	ErrorMessage string    `json:"error_message"`
	ErrorType    ErrorType `json:"error_type"`
}

// BackupRecord points at a timestamped copy of a file taken before mutation.
// It is owned by the backup store; attempts hold a reference only.
type BackupRecord struct {
	OriginalPath string `json:"original_path"`
	BackupPath   string `json:"backup_path"`
	TimestampMs  int64  `json:"timestamp_ms"`
	SizeBytes    int64  `json:"size_bytes"`
}

// ValidationResult is the outcome of the structural and security checks run
// against candidate code before it is allowed to touch disk. Soft warnings are
// recorded in Issues with a "warning:" prefix and do not clear OK.
type ValidationResult struct {
	OK     bool     `json:"ok"`
	Issues []string `json:"issues,omitempty"`
}

// HealingAttempt tracks one failing test through the pipeline. It is mutated
// in place by the orchestrator and becomes read-only once appended to the
// final report. An attempt is never reused across failures.
type HealingAttempt struct {
	AttemptID     string           `json:"attempt_id"`
	Failure       TestFailure      `json:"failure"`
	Skipped       bool             `json:"skipped"`
	SkipReason    string           `json:"skip_reason,omitempty"`
	InjectionFlag bool             `json:"injection_flag,omitempty"`
	RawAnalysis   string           `json:"raw_analysis,omitempty"`
	CandidateCode string           `json:"candidate_code,omitempty"`
	Validation    ValidationResult `json:"validation"`
	Backup        *BackupRecord    `json:"backup,omitempty"`
	Applied       bool             `json:"applied"`
	Verified      bool             `json:"verified"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

// NotFixed reports whether the attempt ran the pipeline and ended without a
// verified (or, in analyze-only mode, validated) fix.
func (a *HealingAttempt) NotFixed() bool {
	return !a.Skipped && a.FailureReason != ""
}

// HealingReport aggregates all attempts of a single run. It is built
// incrementally and finalized exactly once.
type HealingReport struct {
	RunID         string           `json:"run_id"`
	TotalTests    int              `json:"total_tests"`
	FixedCount    int              `json:"fixed_count"`
	VerifiedCount int              `json:"verified_count"`
	SuccessRate   float64          `json:"success_rate"`
	DurationMs    int64            `json:"duration_ms"`
	Tests         []HealingAttempt `json:"tests"`
}

// AuditAction names one mutating event in the append-only audit log.
type AuditAction string

const (
	AuditBackupCreated     AuditAction = "BACKUP_CREATED"
	AuditFileModified      AuditAction = "FILE_MODIFIED"
	AuditRollbackPerformed AuditAction = "ROLLBACK_PERFORMED"
	AuditTestVerified      AuditAction = "TEST_VERIFIED"
	AuditTestFailed        AuditAction = "TEST_FAILED"
	AuditBackupDeleted     AuditAction = "BACKUP_DELETED"
)

// AuditEntry is one line of the audit log. Entries are appended in causal
// order and never mutated or deleted.
type AuditEntry struct {
	TimestampISO string      `json:"timestamp"`
	Action       AuditAction `json:"action"`
	TargetPath   string      `json:"target_path"`
	Details      string      `json:"details,omitempty"`
	ActorID      string      `json:"actor_id"`
	ProcessID    int         `json:"process_id"`
}

// GenerationRequest carries a sanitized prompt pair to the analysis service.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
}

// AnalysisClient is the contract for the external text-generation service.
// Implementations own rate limiting, per-call timeouts and retries; callers
// treat any returned error as a terminal analysis failure for the attempt.
type AnalysisClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
