package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

type mockLedgerRepository struct {
	mock.Mock
}

func (m *mockLedgerRepository) Append(ctx context.Context, entry models.LedgerEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockLedgerRepository) ImportEntries(ctx context.Context, entries []models.LedgerEntry, source string) (int, error) {
	args := m.Called(ctx, entries, source)
	return args.Int(0), args.Error(1)
}

func (m *mockLedgerRepository) LatestByQuestion(ctx context.Context) (map[string]models.LedgerEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.LedgerEntry), args.Error(1)
}

func (m *mockLedgerRepository) LatestForQuestion(ctx context.Context, questionID string) (*models.LedgerEntry, error) {
	args := m.Called(ctx, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerEntry), args.Error(1)
}

func (m *mockLedgerRepository) ListEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LedgerEntry), args.Error(1)
}

func markdownLedgerService(t *testing.T, content string) (*LedgerService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs", "ledger.md")
	if content != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	cfg := config.AuditConfig{LedgerPath: path, LedgerSource: config.LedgerSourceMarkdown, Auditor: "quiz-audit"}
	return NewLedgerServiceWithLogger(nil, cfg, nil, testLogger()), path
}

func TestLedgerService_MarkdownSnapshot(t *testing.T) {
	service, _ := markdownLedgerService(t, sampleLedger)

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.LedgerSourceMarkdown, snapshot.Source)
	assert.Len(t, snapshot.Latest, 4)
	assert.Equal(t, 1, snapshot.Incomplete)

	entry, err := service.LatestForQuestion(context.Background(), "65b000000000000000000002")
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Violations)

	_, err = service.LatestForQuestion(context.Background(), hexID(77))
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrRecordNotFound))

	_, err = service.LatestForQuestion(context.Background(), "bogus")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
}

func TestLedgerService_MissingFileIsEmpty(t *testing.T) {
	service, _ := markdownLedgerService(t, "")

	snapshot, err := service.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snapshot.Latest)

	triage, err := service.Triage(context.Background(), []models.Question{newQuestion(1, courseA, "L1")})
	require.NoError(t, err)
	assert.Equal(t, []string{hexID(1)}, triage.UncheckedIDs)
}

func TestLedgerService_RecordMarkdown(t *testing.T) {
	service, path := markdownLedgerService(t, "")
	ctx := context.Background()

	require.NoError(t, service.Record(ctx, models.LedgerEntry{QuestionID: hexID(1), Timestamp: baseTime, Violations: 2}))
	require.NoError(t, service.Record(ctx, models.LedgerEntry{QuestionID: strings.ToUpper(hexID(1)), Timestamp: baseTime.Add(time.Hour), Violations: 0}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "- Auditor: quiz-audit")

	entry, err := service.LatestForQuestion(ctx, hexID(1))
	require.NoError(t, err)
	assert.Equal(t, 0, entry.Violations)
	assert.True(t, entry.Timestamp.Equal(baseTime.Add(time.Hour)))

	err = service.Record(ctx, models.LedgerEntry{QuestionID: hexID(1)})
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
}

func TestLedgerService_MarkdownRequiresRepoForImportExport(t *testing.T) {
	service, _ := markdownLedgerService(t, sampleLedger)

	_, err := service.Import(context.Background(), strings.NewReader(sampleLedger))
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrLedgerUnavailable))

	err = service.Export(context.Background(), &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrLedgerUnavailable))
}

func databaseLedgerService(repo LedgerRepository) *LedgerService {
	cfg := config.AuditConfig{LedgerSource: config.LedgerSourceDatabase, Auditor: "quiz-audit"}
	return NewLedgerServiceWithLogger(repo, cfg, nil, testLogger())
}

func TestLedgerService_DatabaseTriage(t *testing.T) {
	repo := &mockLedgerRepository{}
	repo.On("LatestByQuestion", mock.Anything).Return(map[string]models.LedgerEntry{
		hexID(1): {QuestionID: hexID(1), Violations: 0},
		hexID(2): {QuestionID: hexID(2), Violations: 1},
	}, nil)
	service := databaseLedgerService(repo)

	questions := []models.Question{newQuestion(1, courseA, "L1"), newQuestion(2, courseA, "L1"), newQuestion(3, courseA, "L1")}
	triage, err := service.Triage(context.Background(), questions)
	require.NoError(t, err)
	assert.Equal(t, config.LedgerSourceDatabase, triage.Source)
	assert.Equal(t, 1, triage.Passed)
	assert.Equal(t, 1, triage.Failing)
	assert.Equal(t, 1, triage.Unchecked)
	repo.AssertExpectations(t)
}

func TestLedgerService_DatabaseRecord(t *testing.T) {
	repo := &mockLedgerRepository{}
	repo.On("Append", mock.Anything, mock.MatchedBy(func(e models.LedgerEntry) bool {
		return e.QuestionID == hexID(5) && e.Auditor == "quiz-audit" && e.Source == config.LedgerSourceDatabase
	})).Return(int64(1), nil)
	service := databaseLedgerService(repo)

	require.NoError(t, service.Record(context.Background(), models.LedgerEntry{QuestionID: hexID(5), Timestamp: baseTime}))
	repo.AssertExpectations(t)
}

func TestLedgerService_DatabaseLookup(t *testing.T) {
	repo := &mockLedgerRepository{}
	repo.On("LatestForQuestion", mock.Anything, hexID(5)).Return(&models.LedgerEntry{QuestionID: hexID(5), Violations: 4}, nil)
	service := databaseLedgerService(repo)

	entry, err := service.LatestForQuestion(context.Background(), hexID(5))
	require.NoError(t, err)
	assert.Equal(t, models.LedgerFailing, entry.Status())
}

func TestLedgerService_ImportAndExport(t *testing.T) {
	repo := &mockLedgerRepository{}
	repo.On("ImportEntries", mock.Anything, mock.MatchedBy(func(entries []models.LedgerEntry) bool {
		return len(entries) == 4
	}), config.LedgerSourceMarkdown).Return(3, nil)
	repo.On("ListEntries", mock.Anything).Return([]models.LedgerEntry{
		{QuestionID: hexID(1), Timestamp: baseTime, Violations: 1},
		{QuestionID: hexID(2), Timestamp: baseTime.Add(time.Hour), Violations: 0},
	}, nil)
	service := databaseLedgerService(repo)

	result, err := service.Import(context.Background(), strings.NewReader(sampleLedger))
	require.NoError(t, err)
	assert.Equal(t, &ImportResult{Parsed: 4, Inserted: 3, Incomplete: 1, Undated: 1}, result)

	var buf bytes.Buffer
	require.NoError(t, service.Export(context.Background(), &buf))
	out := buf.String()
	assert.Less(t, strings.Index(out, hexID(2)), strings.Index(out, hexID(1)), "export is newest first")
	repo.AssertExpectations(t)
}

func TestLedgerService_DatabaseSourceWithoutRepo(t *testing.T) {
	service := databaseLedgerService(nil)
	_, err := service.Snapshot(context.Background())
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrLedgerUnavailable))
}
