package bankmine

import (
	"context"
	"fmt"
	"strings"
)

// Mismatch is one field disagreement between a stored ledger row and its
// re-extracted live counterpart.
type Mismatch struct {
	Index  int
	URL    string
	Field  string
	Stored string
	Live   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("row %d (%s) %s: stored %q, live %q", m.Index, m.URL, m.Field, m.Stored, m.Live)
}

// CheckError aggregates every mismatch of a failed consistency check.
// Any mismatch means the extractor no longer agrees with the live site
// and mining must not proceed.
type CheckError struct {
	Mismatches []Mismatch
}

func (e *CheckError) Error() string {
	lines := make([]string, 0, len(e.Mismatches)+1)
	lines = append(lines, fmt.Sprintf("consistency check failed with %d mismatch(es):", len(e.Mismatches)))
	for _, m := range e.Mismatches {
		lines = append(lines, "  "+m.String())
	}
	return strings.Join(lines, "\n")
}

// DefaultSampleIndices returns the canary rows for a ledger of n rows:
// the first, the middle and always the last. This is a cheap probe for
// layout drift, not exhaustive validation.
func DefaultSampleIndices(n int) []int {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []int{0}
	case n == 2:
		return []int{0, 1}
	default:
		return []int{0, n / 2, n - 1}
	}
}

// Check re-extracts the sampled ledger rows from their stored detail
// URLs and compares amount, timestamp, counterparty, category and tags
// field by field against the stored values. A nil return means the extractor still
// matches the live site; a *CheckError lists every disagreement. Rows
// without a stored URL cannot be re-opened and are skipped.
//
// Extractions run through the Syncer's per-run memo, so rows visited
// here (in particular the last row, the sync boundary) are not scraped
// again by a following Sync.
func (s *Syncer) Check(ctx context.Context, indices []int) error {
	rows := s.Ledger.Transactions()
	if indices == nil {
		indices = DefaultSampleIndices(len(rows))
	}

	var mismatches []Mismatch
	for _, index := range indices {
		if index < 0 || index >= len(rows) {
			continue
		}
		stored := rows[index]
		if stored.URL == "" {
			s.Log.Debug().Int("index", index).Msg("row has no stored URL, skipping canary")
			continue
		}

		live, err := s.extract(ctx, s.Log, stored.URL)
		if err != nil {
			return fmt.Errorf("consistency check: row %d: %w", index, err)
		}

		mismatches = append(mismatches, compareRow(index, stored, live)...)
	}

	if len(mismatches) > 0 {
		return &CheckError{Mismatches: mismatches}
	}
	s.Log.Info().Ints("indices", indices).Msg("consistency check passed")
	return nil
}

func compareRow(index int, stored, live *Transaction) []Mismatch {
	var mismatches []Mismatch
	add := func(field, storedVal, liveVal string) {
		if storedVal != liveVal {
			mismatches = append(mismatches, Mismatch{
				Index:  index,
				URL:    stored.URL,
				Field:  field,
				Stored: storedVal,
				Live:   liveVal,
			})
		}
	}

	if !stored.Amount.Equal(live.Amount) {
		add("amount", stored.Amount.String(), live.Amount.String())
	}
	if !stored.Date.Equal(live.Date) {
		add("date", stored.Date.Format(LedgerTimeLayout), live.Date.Format(LedgerTimeLayout))
	}
	// rows recorded before the counterparty selector existed hold ""
	if stored.Counterparty != "" {
		add("counterparty", stored.Counterparty, live.Counterparty)
	}
	add("category", stored.Category, live.Category)
	add("tags", stored.Tags, live.Tags)

	return mismatches
}
