package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
	"github.com/moldovancsaba/amanoba-sub004/internal/observability"
	contextutils "github.com/moldovancsaba/amanoba-sub004/internal/utils"
)

// LedgerRepositoryImpl stores ledger entries in the question_audit_ledger table
type LedgerRepositoryImpl struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB, logger *observability.Logger) *LedgerRepositoryImpl {
	return &LedgerRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

const ledgerColumns = `question_id, audited_at, violations, auditor, source`

func scanLedgerEntry(scan func(dest ...interface{}) error) (models.LedgerEntry, error) {
	var (
		e       models.LedgerEntry
		auditor sql.NullString
		source  sql.NullString
	)
	if err := scan(&e.QuestionID, &e.Timestamp, &e.Violations, &auditor, &source); err != nil {
		return models.LedgerEntry{}, err
	}
	e.QuestionID = strings.TrimSpace(e.QuestionID)
	e.Timestamp = e.Timestamp.UTC()
	e.Auditor = auditor.String
	e.Source = source.String
	return e, nil
}

func validateLedgerEntry(e models.LedgerEntry) error {
	if !contextutils.IsValidObjectID(e.QuestionID) {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "invalid question id %q", e.QuestionID)
	}
	if e.Timestamp.IsZero() {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "ledger entry for %s has no timestamp", e.QuestionID)
	}
	if e.Violations < 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "violations must not be negative, got %d", e.Violations)
	}
	return nil
}

// Append stores a single audit result. Recording the same question and
// timestamp again replaces the earlier row.
func (r *LedgerRepositoryImpl) Append(ctx context.Context, entry models.LedgerEntry) (id int64, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "append_ledger_entry",
		observability.AttributeQuestionID(entry.QuestionID),
		attribute.Int("ledger.violations", entry.Violations),
	)
	defer observability.FinishSpan(span, &err)

	if err := validateLedgerEntry(entry); err != nil {
		return 0, err
	}
	source := entry.Source
	if source == "" {
		source = config.LedgerSourceDatabase
	}

	query := `
		INSERT INTO question_audit_ledger (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (question_id, audited_at)
		DO UPDATE SET
			violations = EXCLUDED.violations,
			auditor = EXCLUDED.auditor,
			source = EXCLUDED.source
		RETURNING id
	`
	err = r.db.QueryRowContext(ctx, query,
		strings.ToLower(entry.QuestionID), entry.Timestamp.UTC(), entry.Violations, entry.Auditor, source,
	).Scan(&id)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to append ledger entry for %s: %w", entry.QuestionID, err)
	}
	return id, nil
}

// ImportEntries inserts entries in one transaction, skipping rows already
// present for the same question and timestamp. It returns the number inserted.
func (r *LedgerRepositoryImpl) ImportEntries(ctx context.Context, entries []models.LedgerEntry, source string) (inserted int, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "import_ledger_entries",
		attribute.Int("ledger.entries", len(entries)),
		attribute.String("ledger.source", source),
	)
	defer observability.FinishSpan(span, &err)

	for _, e := range entries {
		if err := validateLedgerEntry(e); err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseConnection, "failed to begin ledger import: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error(ctx, "Failed to roll back ledger import", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO question_audit_ledger (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (question_id, audited_at) DO NOTHING
	`)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to prepare ledger import: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		res, execErr := stmt.ExecContext(ctx, strings.ToLower(e.QuestionID), e.Timestamp.UTC(), e.Violations, e.Auditor, source)
		if execErr != nil {
			err = contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to import ledger entry for %s: %w", e.QuestionID, execErr)
			return 0, err
		}
		n, affErr := res.RowsAffected()
		if affErr != nil {
			err = contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read rows affected: %w", affErr)
			return 0, err
		}
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to commit ledger import: %w", err)
	}

	span.SetAttributes(attribute.Int("ledger.inserted", inserted))
	r.logger.Info(ctx, "Imported ledger entries", map[string]interface{}{
		"entries":  len(entries),
		"inserted": inserted,
		"source":   source,
	})
	return inserted, nil
}

// LatestByQuestion returns the most recent entry per question, by audit time
func (r *LedgerRepositoryImpl) LatestByQuestion(ctx context.Context) (result map[string]models.LedgerEntry, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "latest_ledger_by_question")
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT DISTINCT ON (question_id) ` + ledgerColumns + `
		FROM question_audit_ledger
		ORDER BY question_id, audited_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to query latest ledger entries: %w", err)
	}
	defer rows.Close()

	result = make(map[string]models.LedgerEntry)
	for rows.Next() {
		e, scanErr := scanLedgerEntry(rows.Scan)
		if scanErr != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan ledger entry: %w", scanErr)
		}
		result[e.QuestionID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "ledger row iteration failed: %w", err)
	}

	span.SetAttributes(attribute.Int("ledger.questions", len(result)))
	return result, nil
}

// LatestForQuestion returns the most recent entry of one question or ErrRecordNotFound
func (r *LedgerRepositoryImpl) LatestForQuestion(ctx context.Context, questionID string) (result *models.LedgerEntry, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "latest_ledger_for_question", observability.AttributeQuestionID(questionID))
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + ledgerColumns + `
		FROM question_audit_ledger
		WHERE question_id = $1
		ORDER BY audited_at DESC, id DESC
		LIMIT 1
	`
	e, err := scanLedgerEntry(r.db.QueryRowContext(ctx, query, strings.ToLower(questionID)).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.WrapErrorf(contextutils.ErrRecordNotFound, "no ledger entry for question %s", questionID)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to query ledger for %s: %w", questionID, err)
	}
	return &e, nil
}

// ListEntries returns every entry, newest first
func (r *LedgerRepositoryImpl) ListEntries(ctx context.Context) (result []models.LedgerEntry, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "list_ledger_entries")
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + ledgerColumns + `
		FROM question_audit_ledger
		ORDER BY audited_at DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	result = []models.LedgerEntry{}
	for rows.Next() {
		e, scanErr := scanLedgerEntry(rows.Scan)
		if scanErr != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan ledger entry: %w", scanErr)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "ledger row iteration failed: %w", err)
	}
	return result, nil
}

// DeleteAll removes every ledger row and returns how many were deleted
func (r *LedgerRepositoryImpl) DeleteAll(ctx context.Context) (deleted int64, err error) {
	ctx, span := observability.TraceDatabaseFunction(ctx, "delete_all_ledger_entries")
	defer observability.FinishSpan(span, &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM question_audit_ledger`)
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to clear ledger: %w", err)
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count cleared ledger rows: %w", err)
	}
	span.SetAttributes(attribute.Int64("ledger.deleted", deleted))

	r.logger.Warn(ctx, "Ledger cleared", map[string]interface{}{"deleted": deleted})
	return deleted, nil
}
