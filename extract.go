package bankmine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrElementAbsent is what View implementations return (possibly
	// wrapped) when a selector matches nothing within the wait budget.
	ErrElementAbsent = errors.New("element not present within wait budget")

	// ErrUnknownLayout means no layout's marker probe matched; the site
	// has likely shipped markup the extractor was never taught.
	ErrUnknownLayout = errors.New("detail view matches no known layout")
)

// View is a focused transaction detail page. Implementations wait up to
// the given budget for the selector before reporting ErrElementAbsent.
type View interface {
	Text(ctx context.Context, selector string, wait time.Duration) (string, error)
	Texts(ctx context.Context, selector string, wait time.Duration) ([]string, error)
}

// Selectors is the per-layout selector set for one transaction's fields.
type Selectors struct {
	Amount       string
	Date         string
	Counterparty string
	Category     string
	Tags         string
}

// Layout is one known DOM structure of the detail view, recognized by a
// presence probe. A Layout with an empty Marker matches unconditionally
// and must come last. New site epochs are supported by appending a
// Layout, not by branching elsewhere.
type Layout struct {
	Name      string
	Marker    string
	Selectors Selectors
}

// N26Layouts returns the known detail-view layouts of the source site,
// newest first. The refreshed layout is recognized by its header block;
// the classic layout is the fallback.
func N26Layouts() []Layout {
	return []Layout{
		{
			Name:   "refresh",
			Marker: "//div[@data-testid='transaction-details-header']",
			Selectors: Selectors{
				Amount:       "//span[@data-testid='transaction-amount']",
				Date:         "//span[@data-testid='transaction-date']",
				Counterparty: "//h1[@data-testid='transaction-partner']",
				Category:     "//a[@data-testid='transaction-category']",
				Tags:         "//*[@id='tags_container']/div[*]/a",
			},
		},
		{
			Name: "classic",
			Selectors: Selectors{
				Amount:       "//div[contains(@class,'detail-amount')]/span",
				Date:         "//div[contains(@class,'detail-date')]",
				Counterparty: "//div[contains(@class,'detail-partner')]/h2",
				Category:     "//div[contains(@class,'detail-category')]/a",
				Tags:         "//*[@id='tags_container']/div[*]/a",
			},
		},
	}
}

// FieldError reports a failed extraction of a critical field. Optional
// fields never produce one; they degrade to empty values.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("unable to extract %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Extractor pulls one Transaction out of a detail view. The layout is
// detected once per view and every field read dispatches over that
// variant, so all fields of a transaction come from the same selector
// set.
type Extractor struct {
	Layouts []Layout
	Dates   *DateFormat

	// CriticalWait bounds amount and date reads; a miss fails the
	// transaction. OptionalWait bounds counterparty, category and tag
	// reads; a miss degrades to "". ProbeWait bounds each layout marker
	// probe.
	CriticalWait time.Duration
	OptionalWait time.Duration
	ProbeWait    time.Duration
}

// NewExtractor returns an Extractor with the wait budgets the source
// site is known to need.
func NewExtractor(layouts []Layout, dates *DateFormat) *Extractor {
	return &Extractor{
		Layouts:      layouts,
		Dates:        dates,
		CriticalWait: 10 * time.Second,
		OptionalWait: 2 * time.Second,
		ProbeWait:    1 * time.Second,
	}
}

// DetectLayout probes each layout's marker in order and returns the
// first that matches. Marker absence is non-fatal; only exhausting every
// layout is.
func (e *Extractor) DetectLayout(ctx context.Context, v View) (*Layout, error) {
	for i := range e.Layouts {
		layout := &e.Layouts[i]
		if layout.Marker == "" {
			return layout, nil
		}
		_, err := v.Text(ctx, layout.Marker, e.ProbeWait)
		if err == nil {
			return layout, nil
		}
		if !errors.Is(err, ErrElementAbsent) {
			return nil, err
		}
	}
	return nil, ErrUnknownLayout
}

// Extract returns a fully-populated Transaction, minus URL, which the
// caller already has.
func (e *Extractor) Extract(ctx context.Context, v View) (*Transaction, error) {
	layout, err := e.DetectLayout(ctx, v)
	if err != nil {
		return nil, err
	}

	trans := &Transaction{}

	amountText, err := v.Text(ctx, layout.Selectors.Amount, e.CriticalWait)
	if err != nil {
		return nil, &FieldError{Field: "amount", Err: err}
	}
	if trans.Amount, err = ParseAmount(amountText); err != nil {
		return nil, &FieldError{Field: "amount", Err: err}
	}

	dateText, err := v.Text(ctx, layout.Selectors.Date, e.CriticalWait)
	if err != nil {
		return nil, &FieldError{Field: "date", Err: err}
	}
	if trans.Date, err = e.Dates.ParseDetailDate(dateText); err != nil {
		return nil, &FieldError{Field: "date", Err: err}
	}

	if trans.Counterparty, err = e.optionalText(ctx, v, layout.Selectors.Counterparty); err != nil {
		return nil, err
	}
	if trans.Category, err = e.optionalText(ctx, v, layout.Selectors.Category); err != nil {
		return nil, err
	}

	tags, err := v.Texts(ctx, layout.Selectors.Tags, e.OptionalWait)
	if err != nil && !errors.Is(err, ErrElementAbsent) {
		return nil, err
	}
	// Chips joined with no separator, byte-compatible with existing
	// ledgers.
	trans.Tags = strings.Join(tags, "")

	return trans, nil
}

func (e *Extractor) optionalText(ctx context.Context, v View, selector string) (string, error) {
	text, err := v.Text(ctx, selector, e.OptionalWait)
	if errors.Is(err, ErrElementAbsent) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
