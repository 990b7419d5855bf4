package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moldovancsaba/amanoba-sub004/internal/models"
)

const sampleLedger = `# Quiz Quality Audit Ledger

Entries are newest first.

## 2024-03-03T12:00:00Z — 65b000000000000000000001
- Violations: 0
- Auditor: reviewer-a

## 2024-03-02T12:00:00Z – 65b000000000000000000002
- **Violations:** 3
- Notes: options overlap

## 2024-03-02T08:00:00Z - 65B000000000000000000003
Some commentary before the count.
- Violations: 1
- Violations: 7

## 2024-03-01T12:00:00Z — 65b000000000000000000001
- **Violations**: 2

## 2024-03-01T10:00:00Z — 65b000000000000000000004
- Notes: forgot the count

## yesterday — 65b000000000000000000005
- Violations: 0
`

func TestParseLedger(t *testing.T) {
	parsed, err := ParseLedger(strings.NewReader(sampleLedger))
	require.NoError(t, err)

	require.Len(t, parsed.Entries, 5)
	assert.Equal(t, 1, parsed.Incomplete)
	assert.Equal(t, 1, parsed.Undated)
	assert.Zero(t, parsed.OrderingViolations)

	first := parsed.Entries[0]
	assert.Equal(t, "65b000000000000000000001", first.QuestionID)
	assert.Equal(t, 0, first.Violations)
	assert.Equal(t, "reviewer-a", first.Auditor)
	assert.Equal(t, 5, first.Line)
	assert.True(t, first.Timestamp.Equal(time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "markdown", first.Source)

	assert.Equal(t, 3, parsed.Entries[1].Violations)
	assert.Equal(t, "65b000000000000000000003", parsed.Entries[2].QuestionID)
	assert.Equal(t, 1, parsed.Entries[2].Violations, "first count line wins")
	assert.Equal(t, 2, parsed.Entries[3].Violations)

	undated := parsed.Entries[4]
	assert.Equal(t, "65b000000000000000000005", undated.QuestionID)
	assert.True(t, undated.Timestamp.IsZero())
	assert.Equal(t, "yesterday", undated.RawTimestamp)
}

func TestParseLedger_TimestampLayouts(t *testing.T) {
	want := time.Date(2026, 1, 27, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		want time.Time
	}{
		{raw: "2026-01-27T09:00:00Z", want: want},
		{raw: "2026-01-27T10:00:00+01:00", want: want},
		{raw: "2026-01-27T10:00:00.000+0100", want: want},
		{raw: "2026-01-27T10:00:00+01", want: want},
		{raw: "2026-01-27T10:00+01:00", want: want},
		{raw: "20260127T090000Z", want: want},
		{raw: "20260127T100000+0100", want: want},
		{raw: "2026-01-27T09:00:00", want: want},
		{raw: "2026-01-27", want: time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)},
		{raw: "20260127", want: time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			doc := "## " + tt.raw + " — 65b000000000000000000001\n- Violations: 0\n"
			parsed, err := ParseLedger(strings.NewReader(doc))
			require.NoError(t, err)
			require.Len(t, parsed.Entries, 1)
			assert.Zero(t, parsed.Undated)
			assert.True(t, parsed.Entries[0].Timestamp.Equal(tt.want), "got %s", parsed.Entries[0].Timestamp)
			assert.Equal(t, tt.raw, parsed.Entries[0].RawTimestamp)
		})
	}
}

func TestParseLedger_NewestEntryWinsWhateverItsTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		stamp   string
		undated int
	}{
		{name: "numeric offset", stamp: "2026-01-27T10:00:00.000+0100"},
		{name: "unparseable", stamp: "2026-01-27@10h", undated: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "## " + tt.stamp + " — 0123456789abcdef01234567\n- Violations: 0\n\n" +
				"## 2026-01-20T10:00:00Z — 0123456789abcdef01234567\n- Violations: 3\n"
			parsed, err := ParseLedger(strings.NewReader(doc))
			require.NoError(t, err)
			require.Len(t, parsed.Entries, 2)
			assert.Zero(t, parsed.Incomplete)
			assert.Equal(t, tt.undated, parsed.Undated)
			assert.Zero(t, parsed.OrderingViolations)

			q := newQuestion(1, courseA, "L1")
			q.ID = "0123456789abcdef01234567"
			triage := Reconcile([]models.Question{q}, LatestStatus(parsed.Entries))
			assert.Equal(t, 1, triage.Passed)
			assert.Zero(t, triage.Failing)
		})
	}
}

func TestParseLedger_Empty(t *testing.T) {
	parsed, err := ParseLedger(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, parsed.Entries)
	assert.Zero(t, parsed.Incomplete)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestParseLedger_ReadError(t *testing.T) {
	_, err := ParseLedger(failingReader{})
	require.Error(t, err)
}

func TestParseLedger_OrderingViolations(t *testing.T) {
	doc := `## 2024-03-02T00:00:00Z — 65b000000000000000000001
- Violations: 0
## 2024-03-01T00:00:00Z — 65b000000000000000000002
- Violations: 0
## 2024-03-05T00:00:00Z — 65b000000000000000000003
- Violations: 0
## 2024-03-01T12:00:00Z — 65b000000000000000000004
- Violations: 0
`
	parsed, err := ParseLedger(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, parsed.OrderingViolations)
}

func TestLatestStatus_FirstOccurrenceWins(t *testing.T) {
	parsed, err := ParseLedger(strings.NewReader(sampleLedger))
	require.NoError(t, err)

	latest := LatestStatus(parsed.Entries)
	require.Len(t, latest, 4)
	assert.Equal(t, models.LedgerPassed, latest["65b000000000000000000001"].Status())
	assert.Equal(t, models.LedgerFailing, latest["65b000000000000000000002"].Status())
}

func TestReconcile(t *testing.T) {
	latest := map[string]models.LedgerEntry{
		hexID(1): {QuestionID: hexID(1), Violations: 0},
		hexID(2): {QuestionID: hexID(2), Violations: 4},
		hexID(9): {QuestionID: hexID(9), Violations: 0},
	}
	q3 := newQuestion(3, courseA, "L1")
	inactive := newQuestion(4, courseA, "L1")
	inactive.IsActive = false
	general := newQuestion(5, "", "")
	questions := []models.Question{
		q3,
		newQuestion(2, courseA, "L1"),
		newQuestion(1, courseA, "L1"),
		inactive,
		general,
		newQuestion(1, courseA, "L1"),
	}

	triage := Reconcile(questions, latest)
	assert.Equal(t, 3, triage.Total)
	assert.Equal(t, []string{hexID(1)}, triage.PassedIDs)
	assert.Equal(t, []string{hexID(2)}, triage.FailingIDs)
	assert.Equal(t, []string{hexID(3)}, triage.UncheckedIDs)
	assert.Equal(t, 1, triage.Passed)
	assert.Equal(t, 1, triage.Failing)
	assert.Equal(t, 1, triage.Unchecked)
}

func TestRenderLedger_RoundTrip(t *testing.T) {
	entries := []models.LedgerEntry{
		{QuestionID: hexID(1), Timestamp: baseTime, Violations: 1},
		{QuestionID: hexID(2), Timestamp: baseTime.Add(2 * time.Hour), Violations: 0, Auditor: "bot"},
		{QuestionID: hexID(1), Timestamp: baseTime.Add(time.Hour), Violations: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderLedger(&buf, entries))
	assert.True(t, strings.HasPrefix(buf.String(), "# Quiz Quality Audit Ledger\n"))

	parsed, err := ParseLedger(&buf)
	require.NoError(t, err)
	require.Len(t, parsed.Entries, 3)
	assert.Zero(t, parsed.OrderingViolations)
	assert.Zero(t, parsed.Incomplete)
	assert.Equal(t, hexID(2), parsed.Entries[0].QuestionID)
	assert.Equal(t, "bot", parsed.Entries[0].Auditor)

	latest := LatestStatus(parsed.Entries)
	assert.Equal(t, models.LedgerPassed, latest[hexID(1)].Status())
}

func TestPrependLedgerEntry(t *testing.T) {
	entry := models.LedgerEntry{QuestionID: hexID(7), Timestamp: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC), Violations: 2}

	t.Run("empty document", func(t *testing.T) {
		doc := PrependLedgerEntry("", entry)
		parsed, err := ParseLedger(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, parsed.Entries, 1)
		assert.Equal(t, 2, parsed.Entries[0].Violations)
	})

	t.Run("inserted after preamble", func(t *testing.T) {
		doc := PrependLedgerEntry(sampleLedger, entry)
		assert.True(t, strings.HasPrefix(doc, "# Quiz Quality Audit Ledger\n\nEntries are newest first.\n\n## "))

		parsed, err := ParseLedger(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, parsed.Entries, 6)
		assert.Equal(t, hexID(7), parsed.Entries[0].QuestionID)
		assert.Zero(t, parsed.OrderingViolations)
	})

	t.Run("preamble only", func(t *testing.T) {
		doc := PrependLedgerEntry("# Ledger", entry)
		parsed, err := ParseLedger(strings.NewReader(doc))
		require.NoError(t, err)
		require.Len(t, parsed.Entries, 1)
	})
}
