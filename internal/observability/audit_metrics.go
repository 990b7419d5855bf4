package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuditMetrics holds the instruments recorded by the audit, selection and ledger services.
// Instruments come from the global meter provider, so they are no-ops until InitMetrics
// output has been registered with otel.SetMeterProvider.
type AuditMetrics struct {
	duplicatePairs    metric.Int64Counter
	answerGroups      metric.Int64Counter
	lessonsAudited    metric.Int64Counter
	rejectedQuestions metric.Int64Counter
	auditDuration     metric.Float64Histogram
	selectionRequests metric.Int64Counter
	selectionOutcomes metric.Int64Counter
	ledgerStatuses    metric.Int64Counter
}

// NewAuditMetrics creates the audit instruments on the global meter provider
func NewAuditMetrics() (*AuditMetrics, error) {
	return NewAuditMetricsWithMeter(otel.Meter(instrumentationName))
}

// NewAuditMetricsWithMeter creates the audit instruments on meter
func NewAuditMetricsWithMeter(meter metric.Meter) (*AuditMetrics, error) {
	m := &AuditMetrics{}
	var err error

	if m.duplicatePairs, err = meter.Int64Counter("quiz_audit.duplicate_pairs",
		metric.WithDescription("Near-duplicate question pairs found"),
	); err != nil {
		return nil, err
	}
	if m.answerGroups, err = meter.Int64Counter("quiz_audit.answer_groups",
		metric.WithDescription("Similar answer option groups found"),
	); err != nil {
		return nil, err
	}
	if m.lessonsAudited, err = meter.Int64Counter("quiz_audit.lessons",
		metric.WithDescription("Lessons processed by the duplicate audit"),
	); err != nil {
		return nil, err
	}
	if m.rejectedQuestions, err = meter.Int64Counter("quiz_audit.rejected_questions",
		metric.WithDescription("Stored questions rejected by boundary validation"),
	); err != nil {
		return nil, err
	}
	if m.auditDuration, err = meter.Float64Histogram("quiz_audit.duration",
		metric.WithDescription("Duration of a full duplicate audit run"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.selectionRequests, err = meter.Int64Counter("quiz_selection.requests",
		metric.WithDescription("Question selection requests served"),
	); err != nil {
		return nil, err
	}
	if m.selectionOutcomes, err = meter.Int64Counter("quiz_selection.outcomes",
		metric.WithDescription("Answer outcomes recorded against questions"),
	); err != nil {
		return nil, err
	}
	if m.ledgerStatuses, err = meter.Int64Counter("quiz_ledger.statuses",
		metric.WithDescription("Questions classified by ledger triage"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordDuplicatePairs adds n findings of the given kind
func (m *AuditMetrics) RecordDuplicatePairs(ctx context.Context, kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.duplicatePairs.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordAnswerGroups adds n similar answer groups
func (m *AuditMetrics) RecordAnswerGroups(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.answerGroups.Add(ctx, int64(n))
}

// RecordLessonAudited counts one processed lesson
func (m *AuditMetrics) RecordLessonAudited(ctx context.Context, answerPassSkipped bool) {
	if m == nil {
		return
	}
	m.lessonsAudited.Add(ctx, 1, metric.WithAttributes(attribute.Bool("answer_pass_skipped", answerPassSkipped)))
}

// RecordRejectedQuestions adds n questions dropped at the store boundary
func (m *AuditMetrics) RecordRejectedQuestions(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejectedQuestions.Add(ctx, int64(n))
}

// RecordAuditDuration records how long an audit run took
func (m *AuditMetrics) RecordAuditDuration(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.auditDuration.Record(ctx, seconds)
}

// RecordSelection counts a selection request by difficulty and result
func (m *AuditMetrics) RecordSelection(ctx context.Context, difficulty string, returned int) {
	if m == nil {
		return
	}
	m.selectionRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("difficulty", difficulty),
		attribute.Bool("empty", returned == 0),
	))
}

// RecordOutcome counts an answer outcome
func (m *AuditMetrics) RecordOutcome(ctx context.Context, correct bool) {
	if m == nil {
		return
	}
	m.selectionOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("correct", correct)))
}

// RecordLedgerStatus adds n questions classified with status
func (m *AuditMetrics) RecordLedgerStatus(ctx context.Context, status string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ledgerStatuses.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status)))
}
