package bankmine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tempLedger(t *testing.T, withDerivedTags bool, rows []*Transaction) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := CreateLedgerFile(path, withDerivedTags); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l, err := OpenLedgerFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.AppendTransactions(rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l
}

func mkTrans(day int, counterparty string, amount string) *Transaction {
	d, _ := decimal.NewFromString(amount)
	return &Transaction{
		Date:         time.Date(2024, time.June, day, 12, 0, 0, 0, time.Local),
		URL:          "https://app.example.com/transactions/" + counterparty,
		Counterparty: counterparty,
		Amount:       d,
		Category:     "Alimentari",
		Tags:         "#INCO",
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	rows := []*Transaction{
		mkTrans(1, "Supermercato", "-45.20"),
		mkTrans(2, "Azienda", "2800.00"),
	}
	l := tempLedger(t, false, rows)

	reopened, err := OpenLedgerFile(l.Path())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reopened.HasDerivedTags() {
		t.Fatal("base schema reported derived tags")
	}
	if reopened.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", reopened.Len())
	}
	for i, want := range rows {
		got := reopened.Transactions()[i]
		if !got.Date.Equal(want.Date) || got.URL != want.URL ||
			got.Counterparty != want.Counterparty || !got.Amount.Equal(want.Amount) ||
			got.Category != want.Category || got.Tags != want.Tags {
			t.Fatalf("row %d: expected %+v, got %+v", i, want, got)
		}
	}

	last, err := reopened.LastTransaction()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last.Counterparty != "Azienda" {
		t.Fatalf("expected last row Azienda, got %s", last.Counterparty)
	}
}

func TestLedgerDerivedTagsRoundTrip(t *testing.T) {
	trans := mkTrans(1, "Azienda", "2800.00")
	trans.DerivedTag = "INCO"
	l := tempLedger(t, true, []*Transaction{trans})

	reopened, err := OpenLedgerFile(l.Path())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reopened.HasDerivedTags() {
		t.Fatal("derived schema not detected")
	}
	if got := reopened.Transactions()[0].DerivedTag; got != "INCO" {
		t.Fatalf("expected derived tag INCO, got %q", got)
	}
}

func TestLedgerSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := os.WriteFile(path, []byte("Date,Payee,Amount\n"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := OpenLedgerFile(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}

	empty := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := OpenLedgerFile(empty); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for empty file, got %v", err)
	}
}

func TestLedgerEmpty(t *testing.T) {
	l := tempLedger(t, false, nil)
	if _, err := l.LastTransaction(); !errors.Is(err, ErrEmptyLedger) {
		t.Fatalf("expected ErrEmptyLedger, got %v", err)
	}
}

func TestCreateLedgerFileRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	if err := CreateLedgerFile(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CreateLedgerFile(path, false); err == nil {
		t.Fatal("expected error overwriting existing ledger")
	}
}

func TestLedgerHistoricDateLayout(t *testing.T) {
	// ledgers written by older revisions carry date-only Data values
	path := filepath.Join(t.TempDir(), "ledger.csv")
	content := "Data,URL,Beneficiario,Importo,Categoria,Tags\n" +
		"2024-01-05,https://t/1,Supermercato,-45.2,Alimentari,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l, err := OpenLedgerFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := l.Transactions()[0]
	if got.Date.Year() != 2024 || got.Date.Month() != time.January || got.Date.Day() != 5 {
		t.Fatalf("unexpected date %s", got.Date)
	}
}

func TestLedgerAppendOnly(t *testing.T) {
	l := tempLedger(t, false, []*Transaction{mkTrans(1, "Supermercato", "-45.20")})
	before, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := l.AppendTransactions([]*Transaction{mkTrans(2, "Azienda", "2800.00")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(after) <= len(before) || string(after[:len(before)]) != string(before) {
		t.Fatal("append rewrote existing bytes")
	}
}
