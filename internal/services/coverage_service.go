package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// CoverageServiceInterface defines the interface for coverage reporting
type CoverageServiceInterface interface {
	Report(ctx context.Context) (*models.CoverageReport, error)
}

// CoverageService measures how many questions each active lesson is short of the minimum
type CoverageService struct {
	store  QuestionStore
	ledger LedgerServiceInterface
	min    int
	logger *observability.Logger
	now    func() time.Time
}

// CoverageOption configures a CoverageService
type CoverageOption func(*CoverageService)

// WithMinimumQuestions overrides the per-lesson minimum
func WithMinimumQuestions(n int) CoverageOption {
	return func(s *CoverageService) {
		if n > 0 {
			s.min = n
		}
	}
}

// NewCoverageServiceWithLogger creates a new CoverageService. ledger may be nil,
// in which case reports carry no ledger triage.
func NewCoverageServiceWithLogger(store QuestionStore, ledger LedgerServiceInterface, logger *observability.Logger, opts ...CoverageOption) *CoverageService {
	s := &CoverageService{
		store:  store,
		ledger: ledger,
		min:    config.MinQuestionsPerLesson,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ComputeCoverage builds a coverage report from already loaded data.
// questions should be the active lesson-specific questions of the bank.
func ComputeCoverage(courses []models.Course, lessons []models.Lesson, questions []models.Question, minPerLesson int) models.CoverageReport {
	report := models.CoverageReport{
		Scope: models.CoverageScope{
			TotalCourses:          len(courses),
			TotalLessons:          len(lessons),
			MinQuestionsPerLesson: minPerLesson,
		},
		Courses: []models.CourseDeficit{},
		Lessons: []models.LessonDeficit{},
	}

	courseByID := make(map[string]models.Course, len(courses))
	for _, c := range courses {
		courseByID[c.ID] = c
		if c.IsActive {
			report.Scope.ActiveCourses++
		}
	}

	counts := make(map[string]int)
	for i := range questions {
		q := &questions[i]
		if q.IsActive && q.IsLessonSpecific() {
			counts[q.LessonID]++
		}
	}

	perCourse := make(map[string]*models.CourseDeficit)
	for _, l := range lessons {
		if !l.IsActive {
			continue
		}
		report.Scope.ActiveLessons++

		course, known := courseByID[l.CourseID]
		if !known {
			report.OrphanLessons++
		}

		present := counts[l.ID]
		missing := minPerLesson - present
		if missing < 0 {
			missing = 0
		}
		report.Present += present
		report.QuestionsMissing += missing

		cd, ok := perCourse[l.CourseID]
		if !ok {
			cd = &models.CourseDeficit{CourseID: l.CourseID, CourseName: course.Name}
			perCourse[l.CourseID] = cd
		}
		cd.Lessons++

		if missing == 0 {
			continue
		}
		report.LessonsBelowMinimum++
		cd.LessonsBelowMinimum++
		cd.QuestionsMissing += missing
		report.Lessons = append(report.Lessons, models.LessonDeficit{
			LessonID:         l.ID,
			CourseID:         l.CourseID,
			DayNumber:        l.DayNumber,
			Present:          present,
			QuestionsMissing: missing,
		})
	}
	report.Required = report.Scope.ActiveLessons * minPerLesson

	for _, cd := range perCourse {
		if cd.QuestionsMissing > 0 {
			report.Courses = append(report.Courses, *cd)
		}
	}
	sort.Slice(report.Courses, func(i, j int) bool {
		a, b := report.Courses[i], report.Courses[j]
		if a.QuestionsMissing != b.QuestionsMissing {
			return a.QuestionsMissing > b.QuestionsMissing
		}
		return a.CourseID < b.CourseID
	})
	sort.Slice(report.Lessons, func(i, j int) bool {
		a, b := report.Lessons[i], report.Lessons[j]
		if a.QuestionsMissing != b.QuestionsMissing {
			return a.QuestionsMissing > b.QuestionsMissing
		}
		return a.LessonID < b.LessonID
	})
	return report
}

func ledgerErrorCode(err error) contextutils.ErrorCode {
	var appErr *contextutils.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return contextutils.ErrorCodeLedgerUnavailable
}

// Report loads courses, lessons and questions and computes the coverage report.
// A ledger that cannot be triaged leaves Ledger nil and sets LedgerError;
// only store failures fail the report.
func (s *CoverageService) Report(ctx context.Context) (result *models.CoverageReport, err error) {
	ctx, span := observability.TraceCoverageFunction(ctx, "report")
	defer observability.FinishSpan(span, &err)

	courses, err := s.store.ListCourses(ctx, false)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list courses for coverage")
	}
	lessons, err := s.store.ListAllLessons(ctx)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list lessons for coverage")
	}
	batch, err := s.store.ListQuestions(ctx, models.QuestionFilter{ActiveOnly: true, LessonSpecificOnly: true})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list questions for coverage")
	}

	report := ComputeCoverage(courses, lessons, batch.Questions, s.min)
	report.GeneratedAt = s.now().UTC()

	if s.ledger != nil {
		triage, triageErr := s.ledger.Triage(ctx, batch.Questions)
		if triageErr != nil {
			report.LedgerError = string(ledgerErrorCode(triageErr))
			s.logger.Warn(ctx, "Ledger triage unavailable, reporting coverage only", map[string]interface{}{
				"source": s.ledger.Source(),
				"code":   report.LedgerError,
				"error":  triageErr.Error(),
			})
		} else {
			report.Ledger = triage
		}
	}

	observability.SetSpanCounts(span, map[string]int{
		"coverage.active_lessons":        report.Scope.ActiveLessons,
		"coverage.questions_missing":     report.QuestionsMissing,
		"coverage.lessons_below_minimum": report.LessonsBelowMinimum,
	})
	s.logger.Info(ctx, "Coverage report computed", map[string]interface{}{
		"active_lessons":        report.Scope.ActiveLessons,
		"required":              report.Required,
		"present":               report.Present,
		"questions_missing":     report.QuestionsMissing,
		"lessons_below_minimum": report.LessonsBelowMinimum,
		"orphan_lessons":        report.OrphanLessons,
		"rejected_questions":    batch.Rejected,
	})
	return &report, nil
}
