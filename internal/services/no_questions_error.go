package services

import (
	"fmt"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// NoQuestionsAvailableError is returned when no question matches a selection request.
type NoQuestionsAvailableError struct {
	Difficulty models.Difficulty
	Category   models.Category
	LessonID   string
	CourseID   string
	PoolSize   int
}

func (e *NoQuestionsAvailableError) Error() string {
	return fmt.Sprintf("no questions available for selection (difficulty=%s category=%s lesson_id=%s course_id=%s pool_size=%d)",
		e.Difficulty, e.Category, e.LessonID, e.CourseID, e.PoolSize)
}

// Unwrap allows errors.Is(..., contextutils.ErrNoQuestionsAvailable) to work.
func (e *NoQuestionsAvailableError) Unwrap() error {
	return contextutils.ErrNoQuestionsAvailable
}
