package services

import (
	"context"
	"time"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
)

// QuestionStore is the document store the audit, selection and coverage services read.
// Implementations validate questions at the boundary and report rejects in QuestionBatch.
type QuestionStore interface {
	ListCourses(ctx context.Context, activeOnly bool) ([]models.Course, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error)
	ListAllLessons(ctx context.Context) ([]models.Lesson, error)
	ListLessonQuestions(ctx context.Context, lessonID string) (models.QuestionBatch, error)
	ListQuestions(ctx context.Context, filter models.QuestionFilter) (models.QuestionBatch, error)
	IncrementCounters(ctx context.Context, id string, correct bool) error
	MarkAudited(ctx context.Context, id, auditor string, at time.Time) error
}

// LedgerRepository persists audit ledger entries
type LedgerRepository interface {
	Append(ctx context.Context, entry models.LedgerEntry) (int64, error)
	ImportEntries(ctx context.Context, entries []models.LedgerEntry, source string) (int, error)
	LatestByQuestion(ctx context.Context) (map[string]models.LedgerEntry, error)
	LatestForQuestion(ctx context.Context, questionID string) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context) ([]models.LedgerEntry, error)
}
