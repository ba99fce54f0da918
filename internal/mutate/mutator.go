// internal/mutate/mutator.go
package mutate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/rcastell/healctl/api/schemas"
	"github.com/rcastell/healctl/internal/audit"
	"github.com/rcastell/healctl/internal/backup"
)

// readBack is swappable in tests to simulate a write-verification mismatch.
var readBack = os.ReadFile

// Mutator applies candidate code to disk with backup and rollback primitives.
// Per file the progression is backup -> temp write -> verify -> rename; the
// target is only ever visible as the pre-mutation original or the fully
// written candidate, never a mixture.
type Mutator struct {
	backups *backup.Store
	auditor *audit.Logger
	logger  *zap.Logger
}

// NewMutator wires the mutator to its backup store and audit trail.
func NewMutator(backups *backup.Store, auditor *audit.Logger, logger *zap.Logger) *Mutator {
	return &Mutator{
		backups: backups,
		auditor: auditor,
		logger:  logger.Named("mutator"),
	}
}

// Apply backs up path, then atomically replaces its content with candidate.
// On any error before the final rename the original file is untouched; the
// returned record (when non-nil) locates the backup for rollback or manual
// recovery.
func (m *Mutator) Apply(path string, candidate []byte) (*schemas.BackupRecord, error) {
	rec, err := m.backups.Create(path)
	if err != nil {
		return nil, fmt.Errorf("backup failed: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode()
	}

	// Write to a temp file in the same directory so the final rename stays on
	// one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".healctl-write-*")
	if err != nil {
		return rec, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	discard := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(candidate); err != nil {
		discard()
		return rec, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return rec, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return rec, fmt.Errorf("failed to close temp file: %w", err)
	}

	// Write verification: read the temp file back and compare byte for byte
	// before the original is replaced.
	written, err := readBack(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return rec, fmt.Errorf("failed to re-read temp file: %w", err)
	}
	if !bytes.Equal(written, candidate) {
		os.Remove(tmpPath)
		return rec, fmt.Errorf("write verification failed: temp file content does not match candidate")
	}

	if err := os.Chmod(tmpPath, mode); err != nil {
		os.Remove(tmpPath)
		return rec, fmt.Errorf("failed to set temp file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return rec, fmt.Errorf("failed to replace target file: %w", err)
	}

	if err := m.auditor.Record(schemas.AuditFileModified, path, "backup at "+rec.BackupPath); err != nil {
		m.logger.Warn("Failed to audit file modification.", zap.Error(err))
	}
	m.logger.Info("Candidate written.", zap.String("path", path), zap.Int("bytes", len(candidate)))
	return rec, nil
}

// Rollback restores the backup's exact bytes over the target.
func (m *Mutator) Rollback(rec *schemas.BackupRecord) error {
	if rec == nil {
		return fmt.Errorf("no backup record to roll back from")
	}
	if err := m.backups.Restore(rec); err != nil {
		return err
	}
	if err := m.auditor.Record(schemas.AuditRollbackPerformed, rec.OriginalPath, "restored from "+rec.BackupPath); err != nil {
		m.logger.Warn("Failed to audit rollback.", zap.Error(err))
	}
	m.logger.Info("Rollback performed.", zap.String("path", rec.OriginalPath))
	return nil
}
