// internal/backup/store.go
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcastell/healctl/api/schemas"
	"github.com/rcastell/healctl/internal/audit"
)

// Store creates, restores and prunes timestamped file backups. Backups are
// flat files in a single directory, named {basename}.{timestampMs}.bak.
//
// The directory listing is shared mutable state across attempts; all access
// goes through the Store so a future concurrent orchestrator only has to lock
// here.
type Store struct {
	dir       string
	retention time.Duration
	maxPerOrig int
	auditor   *audit.Logger
	logger    *zap.Logger

	// Injected for tests.
	now func() time.Time
}

// NewStore creates the backup directory if needed.
func NewStore(dir string, retentionDays, maxPerFile int, auditor *audit.Logger, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &Store{
		dir:        dir,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		maxPerOrig: maxPerFile,
		auditor:    auditor,
		logger:     logger.Named("backup"),
		now:        time.Now,
	}, nil
}

// Create copies the current bytes of originalPath into the store and records
// the backup in the audit log. It must be called before the first write to a
// file in an attempt.
func (s *Store) Create(originalPath string) (*schemas.BackupRecord, error) {
	data, err := os.ReadFile(originalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read original file for backup: %w", err)
	}

	ts := s.now().UnixMilli()
	backupPath := filepath.Join(s.dir, fmt.Sprintf("%s.%d.bak", filepath.Base(originalPath), ts))
	if err := os.WriteFile(backupPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	rec := &schemas.BackupRecord{
		OriginalPath: originalPath,
		BackupPath:   backupPath,
		TimestampMs:  ts,
		SizeBytes:    int64(len(data)),
	}

	if err := s.auditor.Record(schemas.AuditBackupCreated, originalPath, "backup at "+backupPath); err != nil {
		s.logger.Warn("Failed to audit backup creation.", zap.Error(err))
	}
	s.logger.Debug("Backup created.", zap.String("path", backupPath), zap.Int64("bytes", rec.SizeBytes))
	return rec, nil
}

// Restore writes the backup's exact bytes over the original file, preserving
// the original's mode when it still exists.
func (s *Store) Restore(rec *schemas.BackupRecord) error {
	data, err := os.ReadFile(rec.BackupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(rec.OriginalPath); err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(rec.OriginalPath, data, mode); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	return nil
}

// Delete removes a single backup, typically after its fix has been verified.
func (s *Store) Delete(rec *schemas.BackupRecord) error {
	if err := os.Remove(rec.BackupPath); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	if err := s.auditor.Record(schemas.AuditBackupDeleted, rec.OriginalPath, "deleted "+rec.BackupPath); err != nil {
		s.logger.Warn("Failed to audit backup deletion.", zap.Error(err))
	}
	return nil
}

// entry is one parsed backup file name.
type entry struct {
	path     string
	baseName string
	ts       int64
}

// Prune enforces the retention policy: backups older than the retention
// window are removed, and only the newest maxPerFile backups are kept per
// original file.
func (s *Store) Prune() error {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to list backup directory: %w", err)
	}

	byOriginal := make(map[string][]entry)
	for _, item := range items {
		if item.IsDir() {
			continue
		}
		e, ok := parseBackupName(item.Name())
		if !ok {
			continue
		}
		e.path = filepath.Join(s.dir, item.Name())
		byOriginal[e.baseName] = append(byOriginal[e.baseName], e)
	}

	cutoff := s.now().Add(-s.retention).UnixMilli()
	for _, entries := range byOriginal {
		// Newest first.
		sort.Slice(entries, func(i, j int) bool { return entries[i].ts > entries[j].ts })
		for i, e := range entries {
			if i < s.maxPerOrig && e.ts >= cutoff {
				continue
			}
			if err := os.Remove(e.path); err != nil {
				s.logger.Warn("Failed to prune backup.", zap.String("path", e.path), zap.Error(err))
				continue
			}
			if err := s.auditor.Record(schemas.AuditBackupDeleted, e.baseName, "pruned "+e.path); err != nil {
				s.logger.Warn("Failed to audit backup pruning.", zap.Error(err))
			}
		}
	}
	return nil
}

// parseBackupName splits {basename}.{timestampMs}.bak.
func parseBackupName(name string) (entry, bool) {
	if !strings.HasSuffix(name, ".bak") {
		return entry{}, false
	}
	trimmed := strings.TrimSuffix(name, ".bak")
	dot := strings.LastIndex(trimmed, ".")
	if dot <= 0 {
		return entry{}, false
	}
	ts, err := strconv.ParseInt(trimmed[dot+1:], 10, 64)
	if err != nil {
		return entry{}, false
	}
	return entry{baseName: trimmed[:dot], ts: ts}, true
}
