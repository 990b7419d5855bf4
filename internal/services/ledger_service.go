package services

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// LedgerSnapshot is the latest audit entry per question from one ledger source
type LedgerSnapshot struct {
	Source             string
	Latest             map[string]models.LedgerEntry
	Incomplete         int
	OrderingViolations int
}

// ImportResult summarizes a markdown import into the ledger table
type ImportResult struct {
	Parsed             int `json:"parsed" yaml:"parsed"`
	Inserted           int `json:"inserted" yaml:"inserted"`
	Incomplete         int `json:"incomplete" yaml:"incomplete"`
	Undated            int `json:"undated" yaml:"undated"`
	OrderingViolations int `json:"ordering_violations" yaml:"ordering_violations"`
}

// LedgerServiceInterface defines the interface for the audit ledger
type LedgerServiceInterface interface {
	Source() string
	Snapshot(ctx context.Context) (*LedgerSnapshot, error)
	LatestForQuestion(ctx context.Context, questionID string) (*models.LedgerEntry, error)
	Record(ctx context.Context, entry models.LedgerEntry) error
	Import(ctx context.Context, r io.Reader) (*ImportResult, error)
	Export(ctx context.Context, w io.Writer) error
	Triage(ctx context.Context, questions []models.Question) (*models.LedgerTriage, error)
}

// LedgerService reads and writes the audit ledger, either the markdown file
// or the ledger table depending on configuration
type LedgerService struct {
	repo    LedgerRepository
	path    string
	source  string
	auditor string
	metrics *observability.AuditMetrics
	logger  *observability.Logger

	// serializes markdown rewrites
	fileMu sync.Mutex
}

// NewLedgerServiceWithLogger creates a new LedgerService. repo may be nil when
// the ledger source is markdown; Import and Export then fail.
func NewLedgerServiceWithLogger(repo LedgerRepository, cfg config.AuditConfig, metrics *observability.AuditMetrics, logger *observability.Logger) *LedgerService {
	source := cfg.LedgerSource
	if source == "" {
		source = config.LedgerSourceMarkdown
	}
	return &LedgerService{
		repo:    repo,
		path:    cfg.LedgerPath,
		source:  source,
		auditor: cfg.Auditor,
		metrics: metrics,
		logger:  logger,
	}
}

// Source reports where ledger reads come from
func (s *LedgerService) Source() string {
	return s.source
}

func (s *LedgerService) useDatabase() bool {
	return s.source == config.LedgerSourceDatabase
}

func (s *LedgerService) requireRepo(op string) error {
	if s.repo == nil {
		return contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "%s requires the ledger database", op)
	}
	return nil
}

// Snapshot loads the latest entry per question from the configured source.
// A missing markdown file is an empty ledger.
func (s *LedgerService) Snapshot(ctx context.Context) (result *LedgerSnapshot, err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "snapshot", attribute.String("ledger.source", s.source))
	defer observability.FinishSpan(span, &err)

	if s.useDatabase() {
		if err := s.requireRepo("database snapshot"); err != nil {
			return nil, err
		}
		latest, err := s.repo.LatestByQuestion(ctx)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to load ledger from database")
		}
		return &LedgerSnapshot{Source: s.source, Latest: latest}, nil
	}

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn(ctx, "Ledger file not found, treating every question as unchecked", map[string]interface{}{
			"path": s.path,
		})
		return &LedgerSnapshot{Source: s.source, Latest: map[string]models.LedgerEntry{}}, nil
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "failed to open ledger %s: %w", s.path, err)
	}
	defer f.Close()

	parsed, err := ParseLedger(f)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "failed to read ledger %s: %w", s.path, err)
	}
	if parsed.Incomplete > 0 || parsed.Undated > 0 || parsed.OrderingViolations > 0 {
		s.logger.Warn(ctx, "Ledger contains malformed or misordered entries", map[string]interface{}{
			"path":                s.path,
			"incomplete":          parsed.Incomplete,
			"undated":             parsed.Undated,
			"ordering_violations": parsed.OrderingViolations,
		})
	}

	return &LedgerSnapshot{
		Source:             s.source,
		Latest:             LatestStatus(parsed.Entries),
		Incomplete:         parsed.Incomplete,
		OrderingViolations: parsed.OrderingViolations,
	}, nil
}

// LatestForQuestion returns the latest entry for one question or ErrRecordNotFound
func (s *LedgerService) LatestForQuestion(ctx context.Context, questionID string) (result *models.LedgerEntry, err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "latest_for_question", observability.AttributeQuestionID(questionID))
	defer observability.FinishSpan(span, &err)

	if !contextutils.IsValidObjectID(questionID) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid question id %q", questionID)
	}
	if s.useDatabase() {
		if err := s.requireRepo("ledger lookup"); err != nil {
			return nil, err
		}
		return s.repo.LatestForQuestion(ctx, questionID)
	}

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok := snapshot.Latest[strings.ToLower(questionID)]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "no ledger entry for question %s", questionID)
	}
	return &entry, nil
}

// Record appends one audit result to the configured ledger
func (s *LedgerService) Record(ctx context.Context, entry models.LedgerEntry) (err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "record",
		observability.AttributeQuestionID(entry.QuestionID),
		attribute.Int("ledger.violations", entry.Violations),
	)
	defer observability.FinishSpan(span, &err)

	if entry.Auditor == "" {
		entry.Auditor = s.auditor
	}
	entry.QuestionID = strings.ToLower(entry.QuestionID)
	if err := validateLedgerEntry(entry); err != nil {
		return err
	}

	if s.useDatabase() {
		if err := s.requireRepo("ledger record"); err != nil {
			return err
		}
		entry.Source = config.LedgerSourceDatabase
		if _, err := s.repo.Append(ctx, entry); err != nil {
			return contextutils.WrapError(err, "failed to record ledger entry")
		}
		return nil
	}
	return s.prependToFile(ctx, entry)
}

func (s *LedgerService) prependToFile(ctx context.Context, entry models.LedgerEntry) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	existing, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "failed to read ledger %s: %w", s.path, err)
	}

	updated := PrependLedgerEntry(string(existing), entry)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "failed to create ledger directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(updated), 0o644); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "failed to write ledger: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrLedgerUnavailable, "failed to replace ledger: %w", err)
	}

	s.logger.Info(ctx, "Recorded ledger entry", map[string]interface{}{
		"question_id": entry.QuestionID,
		"violations":  entry.Violations,
		"path":        s.path,
	})
	return nil
}

// Import parses a markdown ledger and stores every complete entry in the ledger table
func (s *LedgerService) Import(ctx context.Context, r io.Reader) (result *ImportResult, err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "import")
	defer observability.FinishSpan(span, &err)

	if err := s.requireRepo("ledger import"); err != nil {
		return nil, err
	}
	parsed, err := ParseLedger(r)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidFormat, "failed to parse ledger: %w", err)
	}
	// the table is keyed by timestamp, so undated entries stay markdown-only
	dated := make([]models.LedgerEntry, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		if !e.Timestamp.IsZero() {
			dated = append(dated, e)
		}
	}
	inserted, err := s.repo.ImportEntries(ctx, dated, config.LedgerSourceMarkdown)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to import ledger")
	}
	return &ImportResult{
		Parsed:             len(dated),
		Inserted:           inserted,
		Incomplete:         parsed.Incomplete,
		Undated:            parsed.Undated,
		OrderingViolations: parsed.OrderingViolations,
	}, nil
}

// Export renders the ledger table as markdown, newest first
func (s *LedgerService) Export(ctx context.Context, w io.Writer) (err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "export")
	defer observability.FinishSpan(span, &err)

	if err := s.requireRepo("ledger export"); err != nil {
		return err
	}
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return contextutils.WrapError(err, "failed to export ledger")
	}
	if err := RenderLedger(w, entries); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to write ledger: %w", err)
	}
	span.SetAttributes(attribute.Int("ledger.entries", len(entries)))
	return nil
}

// Triage reconciles questions against the latest ledger snapshot
func (s *LedgerService) Triage(ctx context.Context, questions []models.Question) (result *models.LedgerTriage, err error) {
	ctx, span := observability.TraceLedgerFunction(ctx, "triage", attribute.Int("ledger.questions", len(questions)))
	defer observability.FinishSpan(span, &err)

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	triage := Reconcile(questions, snapshot.Latest)
	triage.Source = snapshot.Source
	triage.Incomplete = snapshot.Incomplete
	triage.OrderingIssues = snapshot.OrderingViolations

	s.metrics.RecordLedgerStatus(ctx, string(models.LedgerPassed), triage.Passed)
	s.metrics.RecordLedgerStatus(ctx, string(models.LedgerFailing), triage.Failing)
	s.metrics.RecordLedgerStatus(ctx, string(models.LedgerUnchecked), triage.Unchecked)
	observability.SetSpanCounts(span, map[string]int{
		"ledger.passed":    triage.Passed,
		"ledger.failing":   triage.Failing,
		"ledger.unchecked": triage.Unchecked,
	})
	return &triage, nil
}
