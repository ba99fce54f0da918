// internal/backup/store_test.go
package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcastell/healctl/internal/audit"
)

func newTestStore(t *testing.T, retentionDays, maxPerFile int) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	auditor, err := audit.NewLogger(filepath.Join(dir, "audit.jsonl"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { auditor.Close() })

	s, err := NewStore(filepath.Join(dir, "backups"), retentionDays, maxPerFile, auditor, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestStore_CreateAndRestore(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t, 7, 5)
	original := writeTestFile(t, dir, "login.spec.ts", "test('a', () => {})")

	rec, err := s.Create(original)
	require.NoError(t, err)
	assert.Equal(t, int64(len("test('a', () => {})")), rec.SizeBytes)
	assert.FileExists(t, rec.BackupPath)

	// Clobber the original, then restore the exact pre-mutation bytes.
	require.NoError(t, os.WriteFile(original, []byte("garbage"), 0o644))
	require.NoError(t, s.Restore(rec))

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, "test('a', () => {})", string(data))
}

func TestStore_PruneKeepsNewestPerFile(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t, 7, 2)
	original := writeTestFile(t, dir, "cart.spec.ts", "test('b', () => {})")

	// Five backups with strictly increasing timestamps.
	base := time.Unix(1700000000, 0)
	var newest []string
	for i := 0; i < 5; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return tick }
		rec, err := s.Create(original)
		require.NoError(t, err)
		newest = append(newest, rec.BackupPath)
	}
	s.now = func() time.Time { return base.Add(time.Minute) }

	require.NoError(t, s.Prune())

	items, err := os.ReadDir(filepath.Join(dir, "backups"))
	require.NoError(t, err)
	require.Len(t, items, 2, "exactly the 2 most recent backups must remain")
	assert.FileExists(t, newest[4])
	assert.FileExists(t, newest[3])
	assert.NoFileExists(t, newest[0])
}

func TestStore_PruneByAge(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t, 1, 10)
	original := writeTestFile(t, dir, "old.spec.ts", "test('c', () => {})")

	old := time.Now().Add(-48 * time.Hour)
	s.now = func() time.Time { return old }
	rec, err := s.Create(original)
	require.NoError(t, err)

	s.now = time.Now
	require.NoError(t, s.Prune())
	assert.NoFileExists(t, rec.BackupPath)
}

func TestStore_CreateMissingOriginal(t *testing.T) {
	t.Parallel()
	s, dir := newTestStore(t, 7, 5)
	_, err := s.Create(filepath.Join(dir, "missing.spec.ts"))
	require.Error(t, err)
}
