package services

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/moldovancsaba/amanoba-sub004/internal/config"
	"github.com/moldovancsaba/amanoba-sub004/internal/models"
)

var (
	ledgerHeaderPattern     = regexp.MustCompile(`^##\s+(\S+)\s+[—–-]\s+([0-9a-fA-F]{24})\s*$`)
	ledgerViolationsPattern = regexp.MustCompile(`(?i)^\s*[-*]\s+(?:\*\*)?violations(?:\*\*)?\s*:\s*(?:\*\*)?\s*(\d+)`)
	ledgerAuditorPattern    = regexp.MustCompile(`(?i)^\s*[-*]\s+(?:\*\*)?auditor(?:\*\*)?\s*:\s*(?:\*\*)?\s*(.+?)\s*$`)
)

// Z0700 also matches a literal Z; fractional seconds are accepted after any seconds field
var ledgerTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"20060102T150405Z0700",
	"20060102T150405Z07:00",
	"20060102T150405",
	"2006-01-02",
	"20060102",
}

// maxLedgerLine bounds a single ledger line; audit notes can be long
const maxLedgerLine = 1024 * 1024

// ParsedLedger is the result of reading a markdown audit ledger
type ParsedLedger struct {
	// Entries in file order, newest first by convention
	Entries []models.LedgerEntry
	// Incomplete counts headers dropped for a missing violation count
	Incomplete int
	// Undated counts kept entries whose timestamp could not be parsed; their
	// Timestamp is zero and RawTimestamp holds the header text
	Undated int
	// OrderingViolations counts dated entries newer than some dated entry above them
	OrderingViolations int
}

func parseLedgerTime(raw string) (time.Time, bool) {
	for _, layout := range ledgerTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseLedger reads a markdown ledger. Malformed entries are skipped and
// counted; only read errors are returned.
func ParseLedger(r io.Reader) (ParsedLedger, error) {
	parsed := ParsedLedger{Entries: []models.LedgerEntry{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLedgerLine)

	var (
		pending *models.LedgerEntry
		counted bool
		lineNo  int
	)
	flush := func() {
		switch {
		case pending != nil && counted:
			if pending.Timestamp.IsZero() {
				parsed.Undated++
			}
			parsed.Entries = append(parsed.Entries, *pending)
		case pending != nil:
			parsed.Incomplete++
		}
		pending, counted = nil, false
	}

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if m := ledgerHeaderPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			ts, _ := parseLedgerTime(m[1])
			pending = &models.LedgerEntry{
				QuestionID:   strings.ToLower(m[2]),
				Timestamp:    ts,
				RawTimestamp: m[1],
				Line:         lineNo,
				Source:       config.LedgerSourceMarkdown,
			}
			continue
		}
		if pending == nil {
			continue
		}
		if !counted {
			if m := ledgerViolationsPattern.FindStringSubmatch(line); m != nil {
				n, err := strconv.Atoi(m[1])
				if err == nil {
					pending.Violations = n
					counted = true
				}
				continue
			}
		}
		if pending.Auditor == "" {
			if m := ledgerAuditorPattern.FindStringSubmatch(line); m != nil {
				pending.Auditor = m[1]
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return ParsedLedger{}, fmt.Errorf("reading ledger: %w", err)
	}
	flush()

	parsed.OrderingViolations = countOrderingViolations(parsed.Entries)
	return parsed, nil
}

// countOrderingViolations counts entries newer than the oldest entry above
// them. Undated entries are skipped.
func countOrderingViolations(entries []models.LedgerEntry) int {
	violations := 0
	var oldest time.Time
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			continue
		}
		if !oldest.IsZero() && e.Timestamp.After(oldest) {
			violations++
		}
		if oldest.IsZero() || e.Timestamp.Before(oldest) {
			oldest = e.Timestamp
		}
	}
	return violations
}

// LatestStatus keeps the first entry seen per question. The markdown file is
// newest first, so the first occurrence is the latest audit.
func LatestStatus(entries []models.LedgerEntry) map[string]models.LedgerEntry {
	latest := make(map[string]models.LedgerEntry, len(entries))
	for _, e := range entries {
		if _, ok := latest[e.QuestionID]; ok {
			continue
		}
		latest[e.QuestionID] = e
	}
	return latest
}

// Reconcile classifies every active lesson-specific question by its latest ledger entry
func Reconcile(questions []models.Question, latest map[string]models.LedgerEntry) models.LedgerTriage {
	triage := models.LedgerTriage{
		PassedIDs:    []string{},
		FailingIDs:   []string{},
		UncheckedIDs: []string{},
	}
	seen := make(map[string]struct{}, len(questions))
	for i := range questions {
		q := &questions[i]
		if !q.IsActive || !q.IsLessonSpecific() {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}

		entry, ok := latest[strings.ToLower(q.ID)]
		switch {
		case !ok:
			triage.UncheckedIDs = append(triage.UncheckedIDs, q.ID)
		case entry.Status() == models.LedgerPassed:
			triage.PassedIDs = append(triage.PassedIDs, q.ID)
		default:
			triage.FailingIDs = append(triage.FailingIDs, q.ID)
		}
	}

	sort.Strings(triage.PassedIDs)
	sort.Strings(triage.FailingIDs)
	sort.Strings(triage.UncheckedIDs)
	triage.Passed = len(triage.PassedIDs)
	triage.Failing = len(triage.FailingIDs)
	triage.Unchecked = len(triage.UncheckedIDs)
	triage.Total = len(seen)
	return triage
}

const ledgerTitle = "# Quiz Quality Audit Ledger"

// formatLedgerEntry renders one entry block in the format ParseLedger reads
func formatLedgerEntry(e models.LedgerEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s — %s\n", e.Timestamp.UTC().Format(time.RFC3339), e.QuestionID)
	fmt.Fprintf(&b, "- Violations: %d\n", e.Violations)
	if e.Auditor != "" {
		fmt.Fprintf(&b, "- Auditor: %s\n", e.Auditor)
	}
	return b.String()
}

// RenderLedger writes entries as a markdown ledger, newest first.
// Entries with equal timestamps keep their relative order.
func RenderLedger(w io.Writer, entries []models.LedgerEntry) error {
	sorted := append([]models.LedgerEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\n", ledgerTitle); err != nil {
		return err
	}
	for _, e := range sorted {
		if _, err := fmt.Fprintf(bw, "\n%s", formatLedgerEntry(e)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// PrependLedgerEntry inserts entry above the first existing entry of doc,
// keeping any preamble. An empty doc gets a title.
func PrependLedgerEntry(doc string, entry models.LedgerEntry) string {
	block := formatLedgerEntry(entry)
	if strings.TrimSpace(doc) == "" {
		return ledgerTitle + "\n\n" + block
	}

	lines := strings.SplitAfter(doc, "\n")
	for i, line := range lines {
		if ledgerHeaderPattern.MatchString(strings.TrimSpace(line)) {
			head := strings.Join(lines[:i], "")
			tail := strings.Join(lines[i:], "")
			return head + block + "\n" + tail
		}
	}
	if !strings.HasSuffix(doc, "\n") {
		doc += "\n"
	}
	return doc + "\n" + block
}
