// internal/audit/audit.go
package audit

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/rcastell/healctl/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Logger is an append-only trail of every mutating action the healer takes.
// One JSON object per line; the file is opened O_APPEND and entries are never
// rewritten. The mutex serializes writers inside this process; cross-process
// interleaving relies on the OS appending atomically.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	actorID string
	pid     int
	logger  *zap.Logger

	// Injected for tests.
	now func() time.Time
}

// NewLogger opens (or creates) the audit log at path.
func NewLogger(path string, logger *zap.Logger) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	return &Logger{
		file:    f,
		actorID: currentActor(),
		pid:     os.Getpid(),
		logger:  logger.Named("audit"),
		now:     time.Now,
	}, nil
}

func currentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "healctl"
}

// Record appends one entry. Failures are reported to the caller but must not
// abort a healing attempt; the orchestrator logs and continues.
func (l *Logger) Record(action schemas.AuditAction, targetPath, details string) error {
	entry := schemas.AuditEntry{
		TimestampISO: l.now().UTC().Format(time.RFC3339Nano),
		Action:       action,
		TargetPath:   targetPath,
		Details:      details,
		ActorID:      l.actorID,
		ProcessID:    l.pid,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	l.logger.Debug("Audit entry recorded.",
		zap.String("action", string(action)),
		zap.String("target", targetPath))
	return nil
}

// Close releases the underlying file handle.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
