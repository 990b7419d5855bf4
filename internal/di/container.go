// Package di wires configuration, stores and services for the server and the admin CLI.
package di

import (
	"context"
	"database/sql"
	"sync"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/database"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	mongostore "github.com/moldovancsaba/amanoba-sub004/internal/repositories/mongo"
	"github.com/moldovancsaba/amanoba-sub004/internal/schema"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// Service names registered by Initialize
const (
	ServiceSelection = "selection"
	ServiceAudit     = "duplicate_audit"
	ServiceCoverage  = "coverage"
	ServiceLedger    = "ledger"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetSelectionService() (services.SelectionServiceInterface, error)
	GetDuplicateAuditService() (services.DuplicateAuditServiceInterface, error)
	GetCoverageService() (services.CoverageServiceInterface, error)
	GetLedgerService() (services.LedgerServiceInterface, error)
	GetQuestionStore() services.QuestionStore
	GetSchemaLoader() *schema.Loader
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	metrics       *observability.AuditMetrics
	dbManager     *database.Manager
	db            *sql.DB
	store         services.QuestionStore
	ledgerRepo    services.LedgerRepository
	schemaLoader  *schema.Loader
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// Option customizes a ServiceContainer before Initialize
type Option func(*ServiceContainer)

// WithQuestionStore skips the MongoDB connection and uses store instead
func WithQuestionStore(store services.QuestionStore) Option {
	return func(sc *ServiceContainer) {
		sc.store = store
	}
}

// WithLedgerRepository skips the PostgreSQL connection and uses repo instead
func WithLedgerRepository(repo services.LedgerRepository) Option {
	return func(sc *ServiceContainer) {
		sc.ledgerRepo = repo
	}
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, opts ...Option) *ServiceContainer {
	sc := &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Initialize connects the stores and builds every service
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if err := sc.cfg.Validate(); err != nil {
		return err
	}

	loader, err := schema.NewLoader()
	if err != nil {
		return contextutils.WrapError(err, "failed to load schemas")
	}
	sc.schemaLoader = loader

	metrics, err := observability.NewAuditMetrics()
	if err != nil {
		sc.logger.Warn(ctx, "Audit metrics disabled", map[string]interface{}{"error": err.Error()})
	}
	sc.metrics = metrics

	if sc.store == nil {
		if err := sc.connectQuestionStore(ctx); err != nil {
			_ = sc.cleanup(ctx)
			return err
		}
	}

	if sc.ledgerRepo == nil && sc.cfg.Database.URL != "" {
		if err := sc.connectLedgerDatabase(ctx); err != nil {
			_ = sc.cleanup(ctx)
			return err
		}
	}

	sc.initializeServices()
	return nil
}

func (sc *ServiceContainer) connectQuestionStore(ctx context.Context) error {
	client, err := mongostore.NewClient(ctx, sc.cfg.Mongo)
	if err != nil {
		return contextutils.WrapError(err, "failed to connect question store")
	}
	sc.shutdownFuncs = append(sc.shutdownFuncs, client.Close)

	store, err := mongostore.NewStoreFromClient(client, sc.logger)
	if err != nil {
		return contextutils.WrapError(err, "failed to open question store")
	}
	sc.store = store

	sc.logger.Info(ctx, "Question store connected", map[string]interface{}{
		"database": sc.cfg.Mongo.Database,
		"uri":      contextutils.MaskDatabaseURL(sc.cfg.Mongo.URI),
	})
	return nil
}

func (sc *ServiceContainer) connectLedgerDatabase(ctx context.Context) error {
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDB(ctx, sc.cfg.Database)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize ledger database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})
	sc.ledgerRepo = services.NewLedgerRepository(db, sc.logger)
	return nil
}

func (sc *ServiceContainer) initializeServices() {
	ledgerService := services.NewLedgerServiceWithLogger(sc.ledgerRepo, sc.cfg.Audit, sc.metrics, sc.logger)
	sc.services[ServiceLedger] = ledgerService

	sc.services[ServiceSelection] = services.NewSelectionServiceWithLogger(sc.store, sc.cfg.Selection, sc.metrics, sc.logger)
	sc.services[ServiceAudit] = services.NewDuplicateAuditServiceWithLogger(sc.store, sc.cfg.Audit.Workers, sc.metrics, sc.logger)
	sc.services[ServiceCoverage] = services.NewCoverageServiceWithLogger(sc.store, ledgerService, sc.logger)
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetSelectionService returns the selection service
func (sc *ServiceContainer) GetSelectionService() (services.SelectionServiceInterface, error) {
	return GetServiceAs[services.SelectionServiceInterface](sc, ServiceSelection)
}

// GetDuplicateAuditService returns the duplicate audit service
func (sc *ServiceContainer) GetDuplicateAuditService() (services.DuplicateAuditServiceInterface, error) {
	return GetServiceAs[services.DuplicateAuditServiceInterface](sc, ServiceAudit)
}

// GetCoverageService returns the coverage service
func (sc *ServiceContainer) GetCoverageService() (services.CoverageServiceInterface, error) {
	return GetServiceAs[services.CoverageServiceInterface](sc, ServiceCoverage)
}

// GetLedgerService returns the ledger service
func (sc *ServiceContainer) GetLedgerService() (services.LedgerServiceInterface, error) {
	return GetServiceAs[services.LedgerServiceInterface](sc, ServiceLedger)
}

// GetQuestionStore returns the connected question store
func (sc *ServiceContainer) GetQuestionStore() services.QuestionStore {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.store
}

// GetSchemaLoader returns the compiled JSON schemas
func (sc *ServiceContainer) GetSchemaLoader() *schema.Loader {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.schemaLoader
}

// GetDatabase returns the ledger database, or nil when none is configured
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown closes connections in reverse order of creation
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errs = append(errs, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}
