package models

import "time"

// LedgerStatus is the audit outcome of a question according to the ledger
type LedgerStatus string

// Ledger statuses
const (
	LedgerPassed    LedgerStatus = "passed"
	LedgerFailing   LedgerStatus = "failing"
	LedgerUnchecked LedgerStatus = "unchecked"
)

// LedgerEntry is one audit record for a question
type LedgerEntry struct {
	QuestionID   string    `json:"question_id" yaml:"question_id"`
	Timestamp    time.Time `json:"timestamp" yaml:"timestamp"`
	RawTimestamp string    `json:"raw_timestamp,omitempty" yaml:"raw_timestamp,omitempty"`
	Violations   int       `json:"violations" yaml:"violations"`
	Line         int       `json:"line,omitempty" yaml:"line,omitempty"`
	Auditor      string    `json:"auditor,omitempty" yaml:"auditor,omitempty"`
	Source       string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// Status classifies the entry by its violation count
func (e LedgerEntry) Status() LedgerStatus {
	if e.Violations > 0 {
		return LedgerFailing
	}
	return LedgerPassed
}

// LedgerTriage buckets every active lesson question by its latest ledger status
type LedgerTriage struct {
	Source         string   `json:"source" yaml:"source"`
	Total          int      `json:"total" yaml:"total"`
	Passed         int      `json:"passed" yaml:"passed"`
	Failing        int      `json:"failing" yaml:"failing"`
	Unchecked      int      `json:"unchecked" yaml:"unchecked"`
	PassedIDs      []string `json:"passed_ids" yaml:"passed_ids"`
	FailingIDs     []string `json:"failing_ids" yaml:"failing_ids"`
	UncheckedIDs   []string `json:"unchecked_ids" yaml:"unchecked_ids"`
	Incomplete     int      `json:"incomplete_entries,omitempty" yaml:"incomplete_entries,omitempty"`
	OrderingIssues int      `json:"ordering_violations,omitempty" yaml:"ordering_violations,omitempty"`
}
