package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/middleware"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/schema"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	"github.com/moldovancsaba/amanoba-sub004/internal/version"
)

// NewRouter creates the gin engine with middleware and every API route
func NewRouter(
	cfg *config.Config,
	selectionService services.SelectionServiceInterface,
	auditService services.DuplicateAuditServiceInterface,
	coverageService services.CoverageServiceInterface,
	ledgerService services.LedgerServiceInterface,
	schemaLoader *schema.Loader,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = false

	serviceName := cfg.OpenTelemetry.ServiceName
	if serviceName == "" {
		serviceName = "quiz-audit"
	}

	// Health check is registered before tracing so probes stay out of traces
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	router.Use(
		observability.GinMiddleware(serviceName),
		observability.GinErrorAttributes(),
		observability.RequestLogger(logger),
		middleware.ErrorRecoveryMiddleware(logger, &middleware.ErrorRecoveryConfig{
			EnableCircuitBreaker:    true,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
		}),
	)

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Requested-With"}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	questionHandler := NewQuestionHandler(selectionService, logger)
	auditHandler := NewAuditHandler(auditService, coverageService, cfg.Audit, logger)
	ledgerHandler := NewLedgerHandler(ledgerService, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, version.Get(serviceName))
		})

		questions := v1.Group("/questions")
		{
			questions.GET("/select", questionHandler.SelectQuestions)
			questions.POST("/:id/outcome",
				middleware.RequestSchemaValidation(schemaLoader, schema.OutcomeRequest, logger),
				questionHandler.RecordOutcome)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/duplicates", auditHandler.Duplicates)
			audit.GET("/coverage", auditHandler.Coverage)
		}

		ledger := v1.Group("/ledger")
		{
			ledger.GET("/latest/:id", ledgerHandler.Latest)
			ledger.POST("/:id",
				middleware.RequestSchemaValidation(schemaLoader, schema.LedgerEntryRequest, logger),
				ledgerHandler.Record)
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
