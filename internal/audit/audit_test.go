// internal/audit/audit_test.go
package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcastell/healctl/api/schemas"
)

func TestLogger_AppendsOneLinePerEntry(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l, err := NewLogger(path, zap.NewNop())
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Record(schemas.AuditBackupCreated, "/tests/a.spec.ts", "backup at /b/a.spec.ts.1.bak"))
	require.NoError(t, l.Record(schemas.AuditFileModified, "/tests/a.spec.ts", ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first schemas.AuditEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, schemas.AuditBackupCreated, first.Action)
	assert.Equal(t, "/tests/a.spec.ts", first.TargetPath)
	assert.Equal(t, os.Getpid(), first.ProcessID)
	assert.NotEmpty(t, first.ActorID)

	_, err = time.Parse(time.RFC3339Nano, first.TimestampISO)
	assert.NoError(t, err, "timestamp must be RFC3339")
}

func TestLogger_ReopenAppendsDoesNotTruncate(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	l, err := NewLogger(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.Record(schemas.AuditTestVerified, "/tests/a.spec.ts", ""))
	require.NoError(t, l.Close())

	l2, err := NewLogger(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l2.Record(schemas.AuditTestFailed, "/tests/b.spec.ts", ""))
	require.NoError(t, l2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2, "reopening the log must append, never truncate")
}
