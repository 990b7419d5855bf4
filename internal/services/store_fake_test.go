package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// fakeQuestionStore is an in-memory QuestionStore. Reads are safe for the
// parallel audit runner; writes are guarded by mu.
type fakeQuestionStore struct {
	mu sync.Mutex

	courses   []models.Course
	lessons   []models.Lesson
	questions []models.Question
	rejected  map[string]int

	listCoursesErr error
	lessonsErr     map[string]error
	questionsErr   map[string]error

	increments []increment
	audited    map[string]string
}

type increment struct {
	id      string
	correct bool
}

func newFakeStore() *fakeQuestionStore {
	return &fakeQuestionStore{
		rejected:     map[string]int{},
		lessonsErr:   map[string]error{},
		questionsErr: map[string]error{},
		audited:      map[string]string{},
	}
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func hexID(n int) string {
	return fmt.Sprintf("%024x", n)
}

var baseTime = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// newQuestion builds a valid active question whose text and options share no
// tokens with any other question built here unless overridden
func newQuestion(n int, courseID, lessonID string) models.Question {
	id := hexID(n)
	return models.Question{
		ID:           id,
		Question:     "Unique prompt " + id,
		Options:      []string{"alpha " + id, "bravo " + id, "charlie " + id, "delta " + id},
		CorrectIndex: 0,
		Difficulty:   models.DifficultyMedium,
		Category:     models.CategoryBusiness,
		LessonID:     lessonID,
		CourseID:     courseID,
		IsActive:     true,
		Metadata: models.QuestionMetadata{
			CreatedAt: baseTime.Add(time.Duration(n) * time.Minute),
			UpdatedAt: baseTime.Add(time.Duration(n) * time.Minute),
		},
	}
}

func (f *fakeQuestionStore) ListCourses(_ context.Context, activeOnly bool) ([]models.Course, error) {
	if f.listCoursesErr != nil {
		return nil, f.listCoursesErr
	}
	out := []models.Course{}
	for _, c := range f.courses {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeQuestionStore) GetCourse(_ context.Context, id string) (*models.Course, error) {
	if f.listCoursesErr != nil {
		return nil, f.listCoursesErr
	}
	for _, c := range f.courses {
		if c.ID == id {
			course := c
			return &course, nil
		}
	}
	return nil, contextutils.WrapErrorf(contextutils.ErrCourseNotFound, "course %s not found", id)
}

func (f *fakeQuestionStore) ListLessons(_ context.Context, courseID string) ([]models.Lesson, error) {
	if err := f.lessonsErr[courseID]; err != nil {
		return nil, err
	}
	out := []models.Lesson{}
	for _, l := range f.lessons {
		if l.CourseID == courseID {
			out = append(out, l)
		}
	}
	return models.SortLessons(out), nil
}

func (f *fakeQuestionStore) ListAllLessons(_ context.Context) ([]models.Lesson, error) {
	return models.SortLessons(f.lessons), nil
}

func (f *fakeQuestionStore) ListLessonQuestions(_ context.Context, lessonID string) (models.QuestionBatch, error) {
	if err := f.questionsErr[lessonID]; err != nil {
		return models.QuestionBatch{}, err
	}
	batch := models.QuestionBatch{Questions: []models.Question{}, Rejected: f.rejected[lessonID]}
	for _, q := range f.questions {
		if q.LessonID == lessonID && q.IsActive {
			batch.Questions = append(batch.Questions, q)
		}
	}
	models.SortQuestionsByCreation(batch.Questions)
	return batch, nil
}

func (f *fakeQuestionStore) ListQuestions(_ context.Context, filter models.QuestionFilter) (models.QuestionBatch, error) {
	batch := models.QuestionBatch{Questions: []models.Question{}}
	for _, q := range f.questions {
		switch {
		case filter.ActiveOnly && !q.IsActive:
			continue
		case filter.Difficulty != "" && q.Difficulty != filter.Difficulty:
			continue
		case filter.Category != "" && q.Category != filter.Category:
			continue
		case filter.LessonID != "" && q.LessonID != filter.LessonID:
			continue
		case filter.LessonID == "" && filter.LessonSpecificOnly && !q.IsLessonSpecific():
			continue
		case filter.CourseID != "" && q.CourseID != filter.CourseID:
			continue
		}
		batch.Questions = append(batch.Questions, q)
	}
	models.SortQuestionsByCreation(batch.Questions)
	return batch, nil
}

func (f *fakeQuestionStore) IncrementCounters(_ context.Context, id string, correct bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.questions {
		if f.questions[i].ID == id {
			f.questions[i].TimesShown++
			if correct {
				f.questions[i].TimesCorrect++
			}
			f.increments = append(f.increments, increment{id: id, correct: correct})
			return nil
		}
	}
	return contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s not found", id)
}

func (f *fakeQuestionStore) MarkAudited(_ context.Context, id, auditor string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.questions {
		if q.ID == id {
			f.audited[id] = auditor
			return nil
		}
	}
	return contextutils.WrapErrorf(contextutils.ErrQuestionNotFound, "question %s not found", id)
}
