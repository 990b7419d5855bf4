// Package worker runs the duplicate audit and the coverage report on a
// schedule, keeps the latest reports in memory and records run history.
// The worker runs independently of HTTP request handling.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	"github.com/moldovancsaba/amanoba-sub004/internal/services"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// Run triggers
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// Run outcomes
const (
	RunSuccess = "Success"
	RunFailure = "Failure"
	RunSkipped = "Skipped"
)

// Status represents the current state of the worker
type Status struct {
	Instance        string    `json:"instance"`
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	NextRun         time.Time `json:"next_run"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Trigger   string        `json:"trigger"`
	Status    string        `json:"status"`
	Details   string        `json:"details"`
}

// Worker periodically audits the question bank
type Worker struct {
	auditService    services.DuplicateAuditServiceInterface
	coverageService services.CoverageServiceInterface
	params          models.AuditParameters
	cfg             config.WorkerConfig
	instance        string
	logger          *observability.Logger

	mu             sync.RWMutex
	status         Status
	history        []RunRecord
	latestAudit    *models.DuplicateAuditReport
	latestCoverage *models.CoverageReport

	runMu         sync.Mutex
	manualTrigger chan struct{}

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
}

// NewWorker creates a worker that audits with params every cfg.Interval
func NewWorker(auditService services.DuplicateAuditServiceInterface, coverageService services.CoverageServiceInterface, params models.AuditParameters, cfg config.WorkerConfig, instance string, logger *observability.Logger) *Worker {
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = config.DefaultWorkerMaxHistory
	}
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultWorkerInterval
	}
	return &Worker{
		auditService:    auditService,
		coverageService: coverageService,
		params:          params,
		cfg:             cfg,
		instance:        instance,
		logger:          logger,
		status:          Status{Instance: instance, IsPaused: cfg.StartPaused},
		manualTrigger:   make(chan struct{}, 1),
		timeNow:         time.Now,
	}
}

// Start runs the scheduling loop until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.mu.Lock()
	w.status.IsRunning = true
	w.status.NextRun = w.timeNow().Add(w.cfg.Interval)
	paused := w.status.IsPaused
	w.mu.Unlock()

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance": w.instance,
		"interval": w.cfg.Interval.String(),
		"paused":   paused,
	})

	if w.cfg.RunOnStart {
		w.runAndLog(ctx, TriggerStartup)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker shutting down", map[string]interface{}{
				"instance": w.instance,
			})
			w.mu.Lock()
			w.status.IsRunning = false
			w.status.CurrentActivity = ""
			w.mu.Unlock()
			return

		case <-ticker.C:
			w.mu.Lock()
			w.status.NextRun = w.timeNow().Add(w.cfg.Interval)
			w.mu.Unlock()
			w.runAndLog(ctx, TriggerSchedule)

		case <-w.manualTrigger:
			w.logger.Info(ctx, "Worker triggered manually", map[string]interface{}{
				"instance": w.instance,
			})
			w.runAndLog(ctx, TriggerManual)
		}
	}
}

func (w *Worker) runAndLog(ctx context.Context, trigger string) {
	if err := w.RunOnce(ctx, trigger); err != nil {
		w.logger.Error(ctx, "Worker run failed", err, map[string]interface{}{
			"instance": w.instance,
			"trigger":  trigger,
		})
	}
}

// RunOnce performs one audit and coverage cycle. A paused worker records a
// skipped run and returns nil.
func (w *Worker) RunOnce(ctx context.Context, trigger string) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "run",
		attribute.String("worker.instance", w.instance),
		attribute.String("worker.trigger", trigger),
	)
	defer observability.FinishSpan(span, &err)

	w.runMu.Lock()
	defer w.runMu.Unlock()

	start := w.timeNow()
	if w.IsPaused() {
		span.SetAttributes(attribute.Bool("worker.paused", true))
		w.recordRun(RunRecord{StartTime: start, EndTime: start, Trigger: trigger, Status: RunSkipped, Details: "Worker paused"})
		return nil
	}

	w.mu.Lock()
	w.status.LastRunStart = start
	w.status.CurrentActivity = "Running duplicate audit"
	w.mu.Unlock()

	auditCtx, cancel := context.WithTimeout(ctx, config.DefaultAuditRunTimeout)
	report, auditErr := w.auditService.RunAudit(auditCtx, w.params)
	cancel()

	w.setActivity("Computing coverage")
	coverage, coverageErr := w.coverageService.Report(ctx)

	finish := w.timeNow()
	err = errors.Join(
		wrapIfErr(auditErr, "scheduled duplicate audit failed"),
		wrapIfErr(coverageErr, "scheduled coverage report failed"),
	)

	w.mu.Lock()
	if auditErr == nil {
		w.latestAudit = report
	}
	if coverageErr == nil {
		w.latestCoverage = coverage
	}
	w.status.LastRunFinish = finish
	w.status.CurrentActivity = ""
	if err != nil {
		w.status.LastRunError = err.Error()
	} else {
		w.status.LastRunError = ""
	}
	w.mu.Unlock()

	record := RunRecord{
		StartTime: start,
		EndTime:   finish,
		Duration:  finish.Sub(start),
		Trigger:   trigger,
		Status:    RunSuccess,
		Details:   summarizeRun(report, coverage),
	}
	if err != nil {
		record.Status = RunFailure
	}
	w.recordRun(record)

	if err == nil {
		w.logger.Info(ctx, "Worker run completed", map[string]interface{}{
			"instance": w.instance,
			"trigger":  trigger,
			"details":  record.Details,
		})
	}
	return err
}

func wrapIfErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	return contextutils.WrapError(err, msg)
}

func summarizeRun(report *models.DuplicateAuditReport, coverage *models.CoverageReport) string {
	details := ""
	if report != nil {
		s := report.Summary
		details = fmt.Sprintf("courses=%d lessons=%d intra_pairs=%d cross_pairs=%d answer_groups=%d",
			s.Courses, s.Lessons, s.IntraLessonPairs, s.CrossLessonPairs, s.SimilarAnswerGroups)
	}
	if coverage != nil {
		if details != "" {
			details += " "
		}
		details += fmt.Sprintf("questions_missing=%d lessons_below_minimum=%d",
			coverage.QuestionsMissing, coverage.LessonsBelowMinimum)
	}
	return details
}

func (w *Worker) setActivity(activity string) {
	w.mu.Lock()
	w.status.CurrentActivity = activity
	w.mu.Unlock()
}

// recordRun appends to history, keeping at most MaxHistory records
func (w *Worker) recordRun(record RunRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.history = append(w.history, record)
	if len(w.history) > w.cfg.MaxHistory {
		w.history = w.history[len(w.history)-w.cfg.MaxHistory:]
	}
}

// GetStatus returns the current worker status
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns the worker's run history, oldest first
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	history := make([]RunRecord, len(w.history))
	copy(history, w.history)
	return history
}

// LatestAudit returns the last successful duplicate audit report, or nil
func (w *Worker) LatestAudit() *models.DuplicateAuditReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latestAudit
}

// LatestCoverage returns the last successful coverage report, or nil
func (w *Worker) LatestCoverage() *models.CoverageReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latestCoverage
}

// GetInstance returns the worker instance name
func (w *Worker) GetInstance() string {
	return w.instance
}

// IsPaused reports whether scheduled runs are currently skipped
func (w *Worker) IsPaused() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status.IsPaused
}

// TriggerManualRun queues a run. It returns false when one is already pending.
func (w *Worker) TriggerManualRun() bool {
	select {
	case w.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Pause makes subsequent runs skip until Resume
func (w *Worker) Pause(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = true
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker paused", map[string]interface{}{
		"instance": w.instance,
	})
}

// Resume re-enables runs
func (w *Worker) Resume(ctx context.Context) {
	w.mu.Lock()
	w.status.IsPaused = false
	w.mu.Unlock()
	w.logger.Info(ctx, "Worker resumed", map[string]interface{}{
		"instance": w.instance,
	})
}
