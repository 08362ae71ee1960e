package bankmine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
)

var (
	ErrEmptyLedger    = errors.New("ledger holds no transactions")
	ErrSchemaMismatch = errors.New("ledger header does not match any known column schema")
)

var (
	baseColumns    = []string{"Data", "URL", "Beneficiario", "Importo", "Categoria", "Tags"}
	derivedColumns = []string{"Data", "URL", "Beneficiario", "Importo", "Categoria", "Tags", "NewTags"}
)

// Ledger is the append-only CSV record of synced transactions, ordered
// oldest-to-newest. The column schema is fixed when the file is created;
// opening a file whose header matches neither known variant is a hard
// error, never a silent migration.
type Ledger struct {
	path        string
	derivedTags bool

	transactions []*Transaction
}

// CreateLedgerFile writes a new header-only ledger. It refuses to
// overwrite an existing file; ledgers are created once and then only
// appended to.
func CreateLedgerFile(path string, withDerivedTags bool) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	columns := baseColumns
	if withDerivedTags {
		columns = derivedColumns
	}
	w := csv.NewWriter(file)
	if err := w.Write(columns); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// OpenLedgerFile reads and validates a ledger. The header decides the
// schema variant for the lifetime of the value.
func OpenLedgerFile(path string) (*Ledger, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w: file is empty", path, ErrSchemaMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l := &Ledger{path: path}
	switch {
	case slices.Equal(header, baseColumns):
		l.derivedTags = false
	case slices.Equal(header, derivedColumns):
		l.derivedTags = true
	default:
		return nil, fmt.Errorf("%s: %w: got %v", path, ErrSchemaMismatch, header)
	}

	dates := newLedgerDates()
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		trans, err := l.parseRecord(record, dates)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: unable to parse transaction: %w", path, line, err)
		}
		l.transactions = append(l.transactions, trans)
	}

	return l, nil
}

func (l *Ledger) parseRecord(record []string, dates *ledgerDates) (*Transaction, error) {
	transDate, err := dates.parse(record[0])
	if err != nil {
		return nil, err
	}

	amount, err := parseLedgerAmount(record[3])
	if err != nil {
		return nil, err
	}

	trans := &Transaction{
		Date:         transDate,
		URL:          record[1],
		Counterparty: record[2],
		Amount:       amount,
		Category:     record[4],
		Tags:         record[5],
	}
	if l.derivedTags {
		trans.DerivedTag = record[6]
	}
	return trans, nil
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// HasDerivedTags reports whether this ledger carries the NewTags column.
func (l *Ledger) HasDerivedTags() bool { return l.derivedTags }

// Transactions returns the rows oldest-to-newest. The slice is shared;
// callers must not mutate it.
func (l *Ledger) Transactions() []*Transaction { return l.transactions }

// Len returns the number of transactions, excluding the header.
func (l *Ledger) Len() int { return len(l.transactions) }

// LastTransaction returns the newest recorded transaction, the sync
// boundary for the next mining run.
func (l *Ledger) LastTransaction() (*Transaction, error) {
	if len(l.transactions) == 0 {
		return nil, ErrEmptyLedger
	}
	return l.transactions[len(l.transactions)-1], nil
}

// AppendTransactions appends rows, oldest-first, in a single batch. The
// file is only ever opened in append mode; existing rows are never
// rewritten or reordered.
func (l *Ledger) AppendTransactions(rows []*Transaction) error {
	if len(rows) == 0 {
		return nil
	}

	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	for _, trans := range rows {
		if err := w.Write(l.record(trans)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	l.transactions = append(l.transactions, rows...)
	return nil
}

func (l *Ledger) record(trans *Transaction) []string {
	record := []string{
		trans.Date.Format(LedgerTimeLayout),
		trans.URL,
		trans.Counterparty,
		formatLedgerAmount(trans.Amount),
		trans.Category,
		trans.Tags,
	}
	if l.derivedTags {
		record = append(record, trans.DerivedTag)
	}
	return record
}
