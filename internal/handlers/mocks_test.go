package handlers

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
)

type mockSelectionService struct {
	mock.Mock
}

func (m *mockSelectionService) Select(ctx context.Context, req services.SelectionRequest) ([]models.PresentedQuestion, error) {
	args := m.Called(ctx, req)
	if v := args.Get(0); v != nil {
		return v.([]models.PresentedQuestion), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSelectionService) RecordOutcome(ctx context.Context, questionID string, correct bool) error {
	return m.Called(ctx, questionID, correct).Error(0)
}

func (m *mockSelectionService) DefaultPoolSize() int {
	return m.Called().Int(0)
}

type mockAuditService struct {
	mock.Mock
}

func (m *mockAuditService) RunAudit(ctx context.Context, params models.AuditParameters) (*models.DuplicateAuditReport, error) {
	args := m.Called(ctx, params)
	if v := args.Get(0); v != nil {
		return v.(*models.DuplicateAuditReport), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCoverageService struct {
	mock.Mock
}

func (m *mockCoverageService) Report(ctx context.Context) (*models.CoverageReport, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*models.CoverageReport), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockLedgerService struct {
	mock.Mock
}

func (m *mockLedgerService) Source() string {
	return m.Called().String(0)
}

func (m *mockLedgerService) Snapshot(ctx context.Context) (*services.LedgerSnapshot, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*services.LedgerSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedgerService) LatestForQuestion(ctx context.Context, questionID string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, questionID)
	if v := args.Get(0); v != nil {
		return v.(*models.LedgerEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedgerService) Record(ctx context.Context, entry models.LedgerEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockLedgerService) Import(ctx context.Context, r io.Reader) (*services.ImportResult, error) {
	args := m.Called(ctx, r)
	if v := args.Get(0); v != nil {
		return v.(*services.ImportResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedgerService) Export(ctx context.Context, w io.Writer) error {
	return m.Called(ctx, w).Error(0)
}

func (m *mockLedgerService) Triage(ctx context.Context, questions []models.Question) (*models.LedgerTriage, error) {
	args := m.Called(ctx, questions)
	if v := args.Get(0); v != nil {
		return v.(*models.LedgerTriage), args.Error(1)
	}
	return nil, args.Error(1)
}
