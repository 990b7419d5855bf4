package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// QuestionHandler serves question selection and answer outcome requests
type QuestionHandler struct {
	selectionService services.SelectionServiceInterface
	logger           *observability.Logger
}

// NewQuestionHandler creates a new QuestionHandler
func NewQuestionHandler(selectionService services.SelectionServiceInterface, logger *observability.Logger) *QuestionHandler {
	return &QuestionHandler{
		selectionService: selectionService,
		logger:           logger,
	}
}

type selectQuery struct {
	Difficulty string `form:"difficulty" binding:"required"`
	Category   string `form:"category"`
	LessonID   string `form:"lesson_id"`
	CourseID   string `form:"course_id"`
	PoolSize   int    `form:"pool_size" binding:"omitempty,min=1"`
}

type outcomeRequest struct {
	Correct *bool `json:"correct" binding:"required"`
}

// SelectQuestions handles GET /v1/questions/select
func (h *QuestionHandler) SelectQuestions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "select_questions")
	defer observability.FinishSpan(span, nil)

	var q selectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handleBindError(c, err)
		return
	}

	difficulty, err := models.ParseDifficulty(q.Difficulty)
	if err != nil {
		HandleValidationError(c, "difficulty", q.Difficulty, err.Error())
		return
	}
	var category models.Category
	if q.Category != "" {
		if category, err = models.ParseCategory(q.Category); err != nil {
			HandleValidationError(c, "category", q.Category, err.Error())
			return
		}
	}

	poolSize := q.PoolSize
	if poolSize == 0 {
		poolSize = h.selectionService.DefaultPoolSize()
	}
	span.SetAttributes(
		observability.AttributeDifficulty(difficulty),
		observability.AttributeLimit(poolSize),
	)

	questions, err := h.selectionService.Select(ctx, services.SelectionRequest{
		Difficulty: difficulty,
		Category:   category,
		LessonID:   q.LessonID,
		CourseID:   q.CourseID,
		PoolSize:   poolSize,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": questions,
		"count":     len(questions),
		"pool_size": poolSize,
	})
}

// RecordOutcome handles POST /v1/questions/:id/outcome
func (h *QuestionHandler) RecordOutcome(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "record_outcome")
	defer observability.FinishSpan(span, nil)

	questionID := c.Param("id")
	if !contextutils.IsValidObjectID(questionID) {
		HandleValidationError(c, "question id", questionID, "must be a 24 character hex id")
		return
	}

	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeQuestionID(questionID), attribute.Bool("outcome.correct", *req.Correct))

	if err := h.selectionService.RecordOutcome(ctx, questionID, *req.Correct); err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question_id": questionID,
		"correct":     *req.Correct,
		"recorded":    true,
	})
}
