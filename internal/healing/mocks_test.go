// internal/healing/mocks_test.go
package healing_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rcastell/healctl/api/schemas"
	"github.com/rcastell/healctl/internal/verify"
)

type MockAnalysisClient struct {
	mock.Mock
}

func (m *MockAnalysisClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockMutator struct {
	mock.Mock
}

func (m *MockMutator) Apply(path string, candidate []byte) (*schemas.BackupRecord, error) {
	args := m.Called(path, candidate)
	rec, _ := args.Get(0).(*schemas.BackupRecord)
	return rec, args.Error(1)
}

func (m *MockMutator) Rollback(rec *schemas.BackupRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Run(ctx context.Context, testPath string) (verify.Result, error) {
	args := m.Called(ctx, testPath)
	return args.Get(0).(verify.Result), args.Error(1)
}

type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(action schemas.AuditAction, targetPath, details string) error {
	args := m.Called(action, targetPath, details)
	return args.Error(0)
}

type MockBackupDeleter struct {
	mock.Mock
}

func (m *MockBackupDeleter) Delete(rec *schemas.BackupRecord) error {
	args := m.Called(rec)
	return args.Error(0)
}
