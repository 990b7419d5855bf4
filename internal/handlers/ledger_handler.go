package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// LedgerHandler reads and appends audit ledger entries
type LedgerHandler struct {
	ledgerService services.LedgerServiceInterface
	logger        *observability.Logger
	now           func() time.Time
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService services.LedgerServiceInterface, logger *observability.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
		now:           time.Now,
	}
}

type ledgerEntryRequest struct {
	Violations *int       `json:"violations" binding:"required,min=0"`
	Auditor    string     `json:"auditor"`
	Timestamp  *time.Time `json:"timestamp"`
}

// Latest handles GET /v1/ledger/latest/:id
func (h *LedgerHandler) Latest(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "ledger_latest")
	defer observability.FinishSpan(span, nil)

	questionID := c.Param("id")
	span.SetAttributes(observability.AttributeQuestionID(questionID))

	entry, err := h.ledgerService.LatestForQuestion(ctx, questionID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entry":  entry,
		"status": entry.Status(),
		"source": h.ledgerService.Source(),
	})
}

// Record handles POST /v1/ledger/:id
func (h *LedgerHandler) Record(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "ledger_record")
	defer observability.FinishSpan(span, nil)

	questionID := c.Param("id")
	if !contextutils.IsValidObjectID(questionID) {
		HandleValidationError(c, "question id", questionID, "must be a 24 character hex id")
		return
	}
	span.SetAttributes(observability.AttributeQuestionID(questionID))

	var req ledgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	entry := models.LedgerEntry{
		QuestionID: questionID,
		Timestamp:  h.now().UTC(),
		Violations: *req.Violations,
		Auditor:    req.Auditor,
	}
	if req.Timestamp != nil {
		entry.Timestamp = req.Timestamp.UTC()
	}

	if err := h.ledgerService.Record(ctx, entry); err != nil {
		HandleAppError(c, err)
		return
	}

	h.logger.Info(ctx, "Ledger entry recorded", map[string]interface{}{
		"question_id": questionID,
		"violations":  entry.Violations,
		"source":      h.ledgerService.Source(),
	})
	c.JSON(http.StatusCreated, gin.H{
		"entry":  entry,
		"status": entry.Status(),
	})
}
