package services

import (
	"context"
	"sort"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// SelectionCriteria filters a candidate pool before ranking
type SelectionCriteria struct {
	Difficulty models.Difficulty
	// Category is optional; empty matches every category
	Category   models.Category
	ActiveOnly bool
}

// SelectCandidates returns the questions of pool matching criteria, least
// shown first. Ties break on TimesCorrect, then question text, then id.
// pool is not modified.
func SelectCandidates(pool []models.Question, criteria SelectionCriteria) []models.Question {
	out := make([]models.Question, 0, len(pool))
	for _, q := range pool {
		if criteria.ActiveOnly && !q.IsActive {
			continue
		}
		if q.Difficulty != criteria.Difficulty {
			continue
		}
		if criteria.Category != "" && q.Category != criteria.Category {
			continue
		}
		out = append(out, q)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TimesShown != b.TimesShown {
			return a.TimesShown < b.TimesShown
		}
		if a.TimesCorrect != b.TimesCorrect {
			return a.TimesCorrect < b.TimesCorrect
		}
		if a.Question != b.Question {
			return a.Question < b.Question
		}
		return a.ID < b.ID
	})
	return out
}

// SelectionRequest describes which questions a learner should be shown
type SelectionRequest struct {
	Difficulty models.Difficulty `json:"difficulty" yaml:"difficulty"`
	Category   models.Category   `json:"category,omitempty" yaml:"category,omitempty"`
	LessonID   string            `json:"lesson_id,omitempty" yaml:"lesson_id,omitempty"`
	CourseID   string            `json:"course_id,omitempty" yaml:"course_id,omitempty"`
	PoolSize   int               `json:"pool_size" yaml:"pool_size"`
}

// SelectionServiceInterface defines the interface for question selection
type SelectionServiceInterface interface {
	Select(ctx context.Context, req SelectionRequest) ([]models.PresentedQuestion, error)
	RecordOutcome(ctx context.Context, questionID string, correct bool) error
	DefaultPoolSize() int
}

// SelectionService picks the least exposed questions and records answer outcomes
type SelectionService struct {
	store   QuestionStore
	cfg     config.SelectionConfig
	metrics *observability.AuditMetrics
	logger  *observability.Logger
}

// NewSelectionServiceWithLogger creates a new SelectionService. metrics may be nil.
func NewSelectionServiceWithLogger(store QuestionStore, cfg config.SelectionConfig, metrics *observability.AuditMetrics, logger *observability.Logger) *SelectionService {
	if cfg.MaxPoolSize < 1 {
		cfg.MaxPoolSize = config.MaxSelectionPoolSize
	}
	if cfg.DefaultPoolSize < 1 || cfg.DefaultPoolSize > cfg.MaxPoolSize {
		cfg.DefaultPoolSize = config.DefaultSelectionPoolSize
	}
	return &SelectionService{store: store, cfg: cfg, metrics: metrics, logger: logger}
}

// DefaultPoolSize is used when a caller does not ask for a specific size
func (s *SelectionService) DefaultPoolSize() int {
	return s.cfg.DefaultPoolSize
}

func (s *SelectionService) validateRequest(req SelectionRequest) error {
	if !req.Difficulty.IsValid() {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid difficulty %q", req.Difficulty)
	}
	if req.Category != "" && !req.Category.IsValid() {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid category %q", req.Category)
	}
	if req.PoolSize <= 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "pool size must be positive, got %d", req.PoolSize)
	}
	if req.PoolSize > s.cfg.MaxPoolSize {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "pool size %d exceeds maximum %d", req.PoolSize, s.cfg.MaxPoolSize)
	}
	if req.CourseID != "" && !contextutils.IsValidObjectID(req.CourseID) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid course id %q", req.CourseID)
	}
	return nil
}

// Select returns up to req.PoolSize questions without their correct answers.
// It never changes exposure counters.
func (s *SelectionService) Select(ctx context.Context, req SelectionRequest) (result []models.PresentedQuestion, err error) {
	ctx, span := observability.TraceSelectionFunction(ctx, "select",
		observability.AttributeDifficulty(req.Difficulty),
		observability.AttributeCategory(req.Category),
		observability.AttributeLessonID(req.LessonID),
		observability.AttributeLimit(req.PoolSize),
	)
	defer observability.FinishSpan(span, &err)

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	batch, err := s.store.ListQuestions(ctx, models.QuestionFilter{
		Difficulty: req.Difficulty,
		Category:   req.Category,
		LessonID:   req.LessonID,
		CourseID:   req.CourseID,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load selection pool")
	}
	if batch.Rejected > 0 {
		s.logger.Warn(ctx, "Selection pool contained invalid questions", map[string]interface{}{
			"rejected":   batch.Rejected,
			"difficulty": string(req.Difficulty),
		})
	}

	ranked := SelectCandidates(batch.Questions, SelectionCriteria{
		Difficulty: req.Difficulty,
		Category:   req.Category,
		ActiveOnly: true,
	})
	if len(ranked) == 0 {
		s.metrics.RecordSelection(ctx, string(req.Difficulty), 0)
		return nil, &NoQuestionsAvailableError{
			Difficulty: req.Difficulty,
			Category:   req.Category,
			LessonID:   req.LessonID,
			CourseID:   req.CourseID,
			PoolSize:   req.PoolSize,
		}
	}
	if len(ranked) > req.PoolSize {
		ranked = ranked[:req.PoolSize]
	}

	result = make([]models.PresentedQuestion, 0, len(ranked))
	for i := range ranked {
		result = append(result, ranked[i].Present())
	}

	s.metrics.RecordSelection(ctx, string(req.Difficulty), len(result))
	observability.SetSpanCounts(span, map[string]int{
		"selection.pool":     len(batch.Questions),
		"selection.returned": len(result),
	})
	return result, nil
}

// RecordOutcome counts one presentation of questionID and, when correct, one correct answer.
// The store applies both increments atomically.
func (s *SelectionService) RecordOutcome(ctx context.Context, questionID string, correct bool) (err error) {
	ctx, span := observability.TraceSelectionFunction(ctx, "record_outcome", observability.AttributeQuestionID(questionID))
	defer observability.FinishSpan(span, &err)

	if !contextutils.IsValidObjectID(questionID) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid question id %q", questionID)
	}
	if err := s.store.IncrementCounters(ctx, questionID, correct); err != nil {
		return contextutils.WrapError(err, "failed to record outcome")
	}

	s.metrics.RecordOutcome(ctx, correct)
	s.logger.Debug(ctx, "Recorded question outcome", map[string]interface{}{
		"question_id": questionID,
		"correct":     correct,
	})
	return nil
}
