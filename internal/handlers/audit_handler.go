package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
)

// AuditHandler exposes the duplicate audit and coverage reports
type AuditHandler struct {
	auditService    services.DuplicateAuditServiceInterface
	coverageService services.CoverageServiceInterface
	auditCfg        config.AuditConfig
	logger          *observability.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(
	auditService services.DuplicateAuditServiceInterface,
	coverageService services.CoverageServiceInterface,
	auditCfg config.AuditConfig,
	logger *observability.Logger,
) *AuditHandler {
	return &AuditHandler{
		auditService:    auditService,
		coverageService: coverageService,
		auditCfg:        auditCfg,
		logger:          logger,
	}
}

// duplicatesQuery overrides the configured audit parameters for one run
type duplicatesQuery struct {
	CourseID   string   `form:"course_id"`
	Threshold  *float64 `form:"threshold"`
	MinWindow  *int     `form:"min_window"`
	MinPrev    *int     `form:"min_prev"`
	Clustering string   `form:"clustering"`
}

func (q duplicatesQuery) apply(params models.AuditParameters) models.AuditParameters {
	params.CourseID = q.CourseID
	if q.Threshold != nil {
		params.Threshold = *q.Threshold
	}
	if q.MinWindow != nil {
		params.MinWindow = *q.MinWindow
	}
	if q.MinPrev != nil {
		params.MinPrev = *q.MinPrev
	}
	if q.Clustering != "" {
		params.Clustering = models.ClusteringStrategy(q.Clustering)
	}
	return params
}

// Duplicates handles GET /v1/audit/duplicates
func (h *AuditHandler) Duplicates(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "audit_duplicates")
	defer observability.FinishSpan(span, nil)

	var q duplicatesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		handleBindError(c, err)
		return
	}
	params := q.apply(services.AuditParametersFromConfig(h.auditCfg))
	span.SetAttributes(
		observability.AttributeCourseID(params.CourseID),
		observability.AttributeThreshold(params.Threshold),
	)

	ctx, cancel := context.WithTimeout(ctx, config.DefaultAuditRunTimeout)
	defer cancel()

	report, err := h.auditService.RunAudit(ctx, params)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Coverage handles GET /v1/audit/coverage
func (h *AuditHandler) Coverage(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "audit_coverage")
	defer observability.FinishSpan(span, nil)

	report, err := h.coverageService.Report(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
