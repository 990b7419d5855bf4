package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/middleware"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/version"
	"github.com/moldovancsaba/amanoba-sub004/internal/worker"
)

// WorkerControl is the part of the scheduled worker exposed over HTTP
type WorkerControl interface {
	GetStatus() worker.Status
	GetHistory() []worker.RunRecord
	LatestAudit() *models.DuplicateAuditReport
	LatestCoverage() *models.CoverageReport
	TriggerManualRun() bool
	Pause(ctx context.Context)
	Resume(ctx context.Context)
}

// WorkerHandler serves status and control endpoints of the scheduled worker
type WorkerHandler struct {
	worker WorkerControl
	logger *observability.Logger
}

// NewWorkerHandler creates a new WorkerHandler
func NewWorkerHandler(w WorkerControl, logger *observability.Logger) *WorkerHandler {
	return &WorkerHandler{worker: w, logger: logger}
}

// Status handles GET /v1/worker/status
func (h *WorkerHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// History handles GET /v1/worker/history
func (h *WorkerHandler) History(c *gin.Context) {
	history := h.worker.GetHistory()
	c.JSON(http.StatusOK, gin.H{"runs": history, "count": len(history)})
}

// LatestDuplicates handles GET /v1/worker/reports/duplicates
func (h *WorkerHandler) LatestDuplicates(c *gin.Context) {
	report := h.worker.LatestAudit()
	if report == nil {
		HandleAppError(c, notYetAvailable("duplicate audit"))
		return
	}
	c.JSON(http.StatusOK, report)
}

// LatestCoverage handles GET /v1/worker/reports/coverage
func (h *WorkerHandler) LatestCoverage(c *gin.Context) {
	report := h.worker.LatestCoverage()
	if report == nil {
		HandleAppError(c, notYetAvailable("coverage"))
		return
	}
	c.JSON(http.StatusOK, report)
}

// Trigger handles POST /v1/worker/trigger
func (h *WorkerHandler) Trigger(c *gin.Context) {
	queued := h.worker.TriggerManualRun()
	h.logger.Info(c.Request.Context(), "Worker run requested", map[string]interface{}{"queued": queued})
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

// Pause handles POST /v1/worker/pause
func (h *WorkerHandler) Pause(c *gin.Context) {
	h.worker.Pause(c.Request.Context())
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// Resume handles POST /v1/worker/resume
func (h *WorkerHandler) Resume(c *gin.Context) {
	h.worker.Resume(c.Request.Context())
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// NewWorkerRouter creates the gin engine of the worker process
func NewWorkerRouter(cfg *config.Config, w WorkerControl, serviceName string, logger *observability.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	router.Use(
		observability.GinMiddleware(serviceName),
		observability.GinErrorAttributes(),
		observability.RequestLogger(logger),
		middleware.ErrorRecoveryMiddleware(logger, middleware.DefaultErrorRecoveryConfig()),
	)

	handler := NewWorkerHandler(w, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get(serviceName))
		})

		wg := v1.Group("/worker")
		{
			wg.GET("/status", handler.Status)
			wg.GET("/history", handler.History)
			wg.GET("/reports/duplicates", handler.LatestDuplicates)
			wg.GET("/reports/coverage", handler.LatestCoverage)
			wg.POST("/trigger", handler.Trigger)
			wg.POST("/pause", handler.Pause)
			wg.POST("/resume", handler.Resume)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found", "path": c.Request.URL.Path})
	})

	routeListing := NewRouteListingHandler(serviceName)
	router.GET("/", routeListing.GetRouteListingJSON)
	routeListing.CollectRoutes(router)

	return router
}
