package bankmine

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the ledger. The ledger holds transactions
// oldest-to-newest. Date carries the full timestamp shown on the detail
// view, Amount is signed (positive inflow, negative outflow), and Tags is
// the raw concatenation of tag chip texts exactly as scraped.
type Transaction struct {
	Date         time.Time
	URL          string
	Counterparty string
	Amount       decimal.Decimal
	Category     string
	Tags         string

	// DerivedTag is the single label resolved from Tags against a
	// Vocabulary, or Unresolved. Only written to ledgers that carry the
	// NewTags column.
	DerivedTag string
}

// SameAs reports whether t and o refer to the same source transaction.
// When both sides carry a detail URL, that is the authoritative identity;
// the site never reuses them. Without URLs identity falls back to value
// equality on (Date, Counterparty, Amount), which cannot distinguish two
// genuine same-day transactions of the same amount against the same
// counterparty.
func (t *Transaction) SameAs(o *Transaction) bool {
	if t.URL != "" && o.URL != "" {
		return t.URL == o.URL
	}
	return t.Date.Equal(o.Date) &&
		t.Counterparty == o.Counterparty &&
		t.Amount.Equal(o.Amount)
}
