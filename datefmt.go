package bankmine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	date "github.com/joyt/godate"
)

// LedgerTimeLayout is the canonical layout for the Data column. Ledgers
// written by older revisions may carry other layouts; reads tolerate
// those (see ledgerDates), writes always use this one.
const LedgerTimeLayout = "2006-01-02 15:04:05"

var ErrUnsupportedLocale = errors.New("unsupported locale")

type localeTable struct {
	weekdays map[string]bool
	months   map[string]time.Month
}

// The detail view spells dates out in the account's display language.
// Adding a language means adding a table here, nothing else.
var locales = map[string]localeTable{
	"it": {
		weekdays: weekdaySet("lunedì", "martedì", "mercoledì", "giovedì", "venerdì", "sabato", "domenica"),
		months: map[string]time.Month{
			"gennaio": time.January, "febbraio": time.February, "marzo": time.March,
			"aprile": time.April, "maggio": time.May, "giugno": time.June,
			"luglio": time.July, "agosto": time.August, "settembre": time.September,
			"ottobre": time.October, "novembre": time.November, "dicembre": time.December,
		},
	},
	"en": {
		weekdays: weekdaySet("monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"),
		months: map[string]time.Month{
			"january": time.January, "february": time.February, "march": time.March,
			"april": time.April, "may": time.May, "june": time.June,
			"july": time.July, "august": time.August, "september": time.September,
			"october": time.October, "november": time.November, "december": time.December,
		},
	},
}

func weekdaySet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// DateFormat parses the natural-language timestamps shown on transaction
// detail views, "<weekday> <day> <month-name> <year>, <HH:MM>". The
// locale is an explicit parameter of the value; there is no process-wide
// locale state and no fallback to a system default.
type DateFormat struct {
	locale string
	table  localeTable
	loc    *time.Location
}

// NewDateFormat returns a DateFormat for a registered locale code.
// Unregistered locales fail here, before any mining starts.
func NewDateFormat(locale string) (*DateFormat, error) {
	table, ok := locales[strings.ToLower(locale)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}
	return &DateFormat{locale: strings.ToLower(locale), table: table, loc: time.Local}, nil
}

// Locale returns the locale code the format was built for.
func (f *DateFormat) Locale() string { return f.locale }

// ParseDetailDate parses a detail-view date string, e.g. for locale "it"
// "giovedì 12 marzo 2020, 18:30". Anything after the time of day is
// dropped. Any drift from the expected shape is a loud, diagnosable
// error, never a guess.
func (f *DateFormat) ParseDetailDate(s string) (time.Time, error) {
	datePart, timePart, found := strings.Cut(s, ",")
	if !found {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): missing \",\" before time of day", s)
	}

	fields := strings.Fields(strings.ToLower(datePart))
	if len(fields) != 4 {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): want \"weekday day month year\", got %d fields", s, len(fields))
	}
	if !f.table.weekdays[fields[0]] {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): unknown %s weekday %q", s, f.locale, fields[0])
	}
	day, err := strconv.Atoi(fields[1])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): bad day of month %q", s, fields[1])
	}
	month, ok := f.table.months[fields[2]]
	if !ok {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): unknown %s month %q", s, f.locale, fields[2])
	}
	year, err := strconv.Atoi(fields[3])
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): bad year %q", s, fields[3])
	}

	hour, minute, err := parseTimeOfDay(timePart)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date(%s): %w", s, err)
	}

	return time.Date(year, month, day, hour, minute, 0, 0, f.loc), nil
}

// parseTimeOfDay reads the leading HH:MM of the segment after the comma,
// truncating any trailing separator or annotation the page author added.
func parseTimeOfDay(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] == ':' || (s[end] >= '0' && s[end] <= '9')) {
		end++
	}
	hh, mm, found := strings.Cut(s[:end], ":")
	if !found {
		return 0, 0, fmt.Errorf("bad time of day %q", s)
	}
	hour, herr := strconv.Atoi(hh)
	minute, merr := strconv.Atoi(mm)
	if herr != nil || merr != nil || hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("bad time of day %q", s)
	}
	return hour, minute, nil
}

// ledgerDates parses Data column values, tolerating the date layouts of
// older ledger revisions. The discovered layout and last value are
// memoized since consecutive rows almost always share both.
type ledgerDates struct {
	layout string

	strPrevDate string
	prevDateErr error
	prevDate    time.Time
}

func newLedgerDates() *ledgerDates {
	return &ledgerDates{layout: LedgerTimeLayout}
}

func (ld *ledgerDates) parse(dateString string) (transDate time.Time, err error) {
	// seen before, skip parse
	if ld.strPrevDate == dateString {
		return ld.prevDate, ld.prevDateErr
	}

	// try current date layout
	transDate, err = time.Parse(ld.layout, dateString)
	if err != nil {
		// try to find new date layout
		transDate, ld.layout, err = date.ParseAndGetLayout(dateString)
		if err != nil {
			err = fmt.Errorf("unable to parse date(%s): %w", dateString, err)
		}
	}

	ld.strPrevDate = dateString
	ld.prevDate = transDate
	ld.prevDateErr = err

	return
}
