package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

func newCoverageFixture() *fakeQuestionStore {
	store := newFakeStore()
	store.courses = []models.Course{
		{ID: courseA, Name: "Finance", IsActive: true},
		{ID: courseB, Name: "History", IsActive: false},
	}
	retired := lesson("A3", courseA, 3)
	retired.IsActive = false
	store.lessons = []models.Lesson{
		lesson("A1", courseA, 1),
		lesson("A2", courseA, 2),
		retired,
		lesson("B1", courseB, 1),
		lesson("X1", "65a0000000000000000000ee", 1),
	}
	store.questions = append(store.questions, lessonQuestions(1, 7, courseA, "A1")...)
	store.questions = append(store.questions, lessonQuestions(10, 9, courseA, "A2")...)
	store.questions = append(store.questions, lessonQuestions(30, 2, courseB, "B1")...)
	store.questions = append(store.questions, lessonQuestions(40, 5, "65a0000000000000000000ee", "X1")...)
	store.questions = append(store.questions, lessonQuestions(50, 3, courseA, "A3")...)

	inactive := newQuestion(60, courseB, "B1")
	inactive.IsActive = false
	store.questions = append(store.questions, inactive, newQuestion(61, "", ""))
	return store
}

func TestComputeCoverage(t *testing.T) {
	store := newCoverageFixture()
	report := ComputeCoverage(store.courses, store.lessons, store.questions, config.MinQuestionsPerLesson)

	assert.Equal(t, models.CoverageScope{
		ActiveCourses:         1,
		TotalCourses:          2,
		ActiveLessons:         4,
		TotalLessons:          5,
		MinQuestionsPerLesson: 7,
	}, report.Scope)
	assert.Equal(t, 28, report.Required)
	assert.Equal(t, 7+9+2+5, report.Present)
	assert.Equal(t, 5+2, report.QuestionsMissing)
	assert.Equal(t, 2, report.LessonsBelowMinimum)
	assert.Equal(t, 1, report.OrphanLessons)

	require.Len(t, report.Lessons, 2)
	assert.Equal(t, models.LessonDeficit{LessonID: "B1", CourseID: courseB, DayNumber: 1, Present: 2, QuestionsMissing: 5}, report.Lessons[0])
	assert.Equal(t, "X1", report.Lessons[1].LessonID)

	require.Len(t, report.Courses, 2)
	assert.Equal(t, models.CourseDeficit{CourseID: courseB, CourseName: "History", Lessons: 1, LessonsBelowMinimum: 1, QuestionsMissing: 5}, report.Courses[0])
	assert.Equal(t, "65a0000000000000000000ee", report.Courses[1].CourseID)
	assert.Empty(t, report.Courses[1].CourseName)
}

func TestComputeCoverage_TieBreaks(t *testing.T) {
	lessons := []models.Lesson{lesson("L2", courseB, 1), lesson("L1", courseA, 1)}
	report := ComputeCoverage([]models.Course{{ID: courseA}, {ID: courseB}}, lessons, nil, 3)

	require.Len(t, report.Lessons, 2)
	assert.Equal(t, "L1", report.Lessons[0].LessonID)
	assert.Equal(t, "L2", report.Lessons[1].LessonID)
	require.Len(t, report.Courses, 2)
	assert.Equal(t, courseA, report.Courses[0].CourseID)
	assert.Equal(t, 6, report.QuestionsMissing)
}

type mockLedgerService struct {
	mock.Mock
	LedgerServiceInterface
}

func (m *mockLedgerService) Source() string {
	return m.Called().String(0)
}

func (m *mockLedgerService) Triage(ctx context.Context, questions []models.Question) (*models.LedgerTriage, error) {
	args := m.Called(ctx, questions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LedgerTriage), args.Error(1)
}

func TestCoverageService_Report(t *testing.T) {
	store := newCoverageFixture()
	ledger := &mockLedgerService{}
	ledger.On("Triage", mock.Anything, mock.MatchedBy(func(qs []models.Question) bool {
		return len(qs) == 7+9+2+5+3
	})).Return(&models.LedgerTriage{Source: "markdown", Total: 26, Unchecked: 26}, nil)

	service := NewCoverageServiceWithLogger(store, ledger, testLogger(), WithMinimumQuestions(8))
	service.now = func() time.Time { return baseTime }

	report, err := service.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, report.Scope.MinQuestionsPerLesson)
	assert.Equal(t, 32, report.Required)
	assert.Equal(t, 1+6+3, report.QuestionsMissing)
	assert.Equal(t, baseTime, report.GeneratedAt)
	require.NotNil(t, report.Ledger)
	assert.Equal(t, 26, report.Ledger.Unchecked)
	ledger.AssertExpectations(t)
}

func TestCoverageService_ReportWithoutLedger(t *testing.T) {
	service := NewCoverageServiceWithLogger(newCoverageFixture(), nil, testLogger())

	report, err := service.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.MinQuestionsPerLesson, report.Scope.MinQuestionsPerLesson)
	assert.Nil(t, report.Ledger)
}

func TestCoverageService_Errors(t *testing.T) {
	store := newCoverageFixture()
	store.listCoursesErr = contextutils.WrapError(contextutils.ErrStoreUnavailable, "down")
	service := NewCoverageServiceWithLogger(store, nil, testLogger())

	_, err := service.Report(context.Background())
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrStoreUnavailable))
}

func TestCoverageService_ReportSurvivesLedgerFailure(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "unreadable markdown ledger",
			err:      contextutils.WrapError(contextutils.ErrLedgerUnavailable, "permission denied"),
			wantCode: "LEDGER_UNAVAILABLE",
		},
		{
			name:     "ledger database down",
			err:      contextutils.WrapError(contextutils.ErrDatabaseConnection, "connection refused"),
			wantCode: string(contextutils.ErrorCodeDatabaseConnection),
		},
		{
			name:     "plain error",
			err:      errors.New("boom"),
			wantCode: "LEDGER_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mockLedgerService{}
			ledger.On("Triage", mock.Anything, mock.Anything).Return(nil, tt.err)
			ledger.On("Source").Return("markdown")
			service := NewCoverageServiceWithLogger(newCoverageFixture(), ledger, testLogger(), WithMinimumQuestions(8))

			report, err := service.Report(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 32, report.Required)
			assert.Equal(t, 1+6+3, report.QuestionsMissing)
			assert.Nil(t, report.Ledger)
			assert.Equal(t, tt.wantCode, report.LedgerError)
			ledger.AssertExpectations(t)
		})
	}
}
