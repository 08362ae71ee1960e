package bankmine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeView serves scripted selector hits; anything unscripted is absent.
type fakeView struct {
	texts map[string]string
	lists map[string][]string
}

func (v *fakeView) Text(_ context.Context, selector string, _ time.Duration) (string, error) {
	if text, ok := v.texts[selector]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%s: %w", selector, ErrElementAbsent)
}

func (v *fakeView) Texts(_ context.Context, selector string, _ time.Duration) ([]string, error) {
	if list, ok := v.lists[selector]; ok {
		return list, nil
	}
	return nil, fmt.Errorf("%s: %w", selector, ErrElementAbsent)
}

func testLayouts() []Layout {
	return []Layout{
		{
			Name:   "new",
			Marker: "marker-new",
			Selectors: Selectors{
				Amount:       "new-amt",
				Date:         "new-date",
				Counterparty: "new-who",
				Category:     "new-cat",
				Tags:         "new-tags",
			},
		},
		{
			Name: "old",
			Selectors: Selectors{
				Amount:       "old-amt",
				Date:         "old-date",
				Counterparty: "old-who",
				Category:     "old-cat",
				Tags:         "old-tags",
			},
		},
	}
}

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	dates, err := NewDateFormat("it")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := NewExtractor(testLayouts(), dates)
	e.CriticalWait = time.Millisecond
	e.OptionalWait = time.Millisecond
	e.ProbeWait = time.Millisecond
	return e
}

func TestDetectLayout(t *testing.T) {
	e := testExtractor(t)
	ctx := context.Background()

	withMarker := &fakeView{texts: map[string]string{"marker-new": ""}}
	layout, err := e.DetectLayout(ctx, withMarker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layout.Name != "new" {
		t.Fatalf("expected layout new, got %s", layout.Name)
	}

	withoutMarker := &fakeView{}
	layout, err = e.DetectLayout(ctx, withoutMarker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if layout.Name != "old" {
		t.Fatalf("expected fallback layout old, got %s", layout.Name)
	}

	// no unconditional fallback registered
	e.Layouts = e.Layouts[:1]
	if _, err := e.DetectLayout(ctx, withoutMarker); !errors.Is(err, ErrUnknownLayout) {
		t.Fatalf("expected ErrUnknownLayout, got %v", err)
	}
}

func TestExtract(t *testing.T) {
	e := testExtractor(t)
	ctx := context.Background()

	view := &fakeView{
		texts: map[string]string{
			"marker-new": "",
			"new-amt":    "-1.234,56 €",
			"new-date":   "giovedì 12 marzo 2020, 18:30",
			"new-who":    "Supermercato ",
			"new-cat":    "Alimentari",
		},
		lists: map[string][]string{
			"new-tags": {"#INCO", "#ALTRO"},
		},
	}

	trans, err := e.Extract(ctx, view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trans.Amount.String() != "-1234.56" {
		t.Fatalf("expected amount -1234.56, got %s", trans.Amount.String())
	}
	want := time.Date(2020, time.March, 12, 18, 30, 0, 0, time.Local)
	if !trans.Date.Equal(want) {
		t.Fatalf("expected date %s, got %s", want, trans.Date)
	}
	if trans.Counterparty != "Supermercato" {
		t.Fatalf("expected trimmed counterparty, got %q", trans.Counterparty)
	}
	if trans.Category != "Alimentari" {
		t.Fatalf("expected category Alimentari, got %q", trans.Category)
	}
	if trans.Tags != "#INCO#ALTRO" {
		t.Fatalf("expected chips joined with no separator, got %q", trans.Tags)
	}
}

func TestExtractDegradesOptionalFields(t *testing.T) {
	e := testExtractor(t)

	// classic layout view with no counterparty, category or tags
	view := &fakeView{
		texts: map[string]string{
			"old-amt":  "-45,20",
			"old-date": "lunedì 1 gennaio 2024, 09:05",
		},
	}

	trans, err := e.Extract(context.Background(), view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trans.Counterparty != "" || trans.Category != "" || trans.Tags != "" {
		t.Fatalf("expected empty optional fields, got %+v", trans)
	}
}

func TestExtractCriticalFieldFailures(t *testing.T) {
	e := testExtractor(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		view  *fakeView
		field string
	}{
		{
			name: "amount absent",
			view: &fakeView{texts: map[string]string{
				"old-date": "lunedì 1 gennaio 2024, 09:05",
			}},
			field: "amount",
		},
		{
			name: "amount unparseable",
			view: &fakeView{texts: map[string]string{
				"old-amt":  "n/a",
				"old-date": "lunedì 1 gennaio 2024, 09:05",
			}},
			field: "amount",
		},
		{
			name: "date absent",
			view: &fakeView{texts: map[string]string{
				"old-amt": "-45,20",
			}},
			field: "date",
		},
		{
			name: "date format drift",
			view: &fakeView{texts: map[string]string{
				"old-amt":  "-45,20",
				"old-date": "Jan 1, 2024 9:05 AM",
			}},
			field: "date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(ctx, tt.view)
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tt.field {
				t.Fatalf("expected failure on %s, got %s", tt.field, fieldErr.Field)
			}
		})
	}
}
