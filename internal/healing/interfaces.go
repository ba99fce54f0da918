// internal/healing/interfaces.go
package healing

import (
	"context"

	"github.com/rcastell/healctl/api/schemas"
	"github.com/rcastell/healctl/internal/verify"
)

// FileMutator applies a candidate to disk and undoes it. Satisfied by
// mutate.Mutator.
type FileMutator interface {
	Apply(path string, candidate []byte) (*schemas.BackupRecord, error)
	Rollback(rec *schemas.BackupRecord) error
}

// Verifier re-runs one test after a mutation. Satisfied by verify.Runner.
type Verifier interface {
	Run(ctx context.Context, testPath string) (verify.Result, error)
}

// Auditor records mutating events. Satisfied by audit.Logger.
type Auditor interface {
	Record(action schemas.AuditAction, targetPath, details string) error
}

// BackupDeleter discards a backup whose fix has been verified. Satisfied by
// backup.Store.
type BackupDeleter interface {
	Delete(rec *schemas.BackupRecord) error
}
