package bankmine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a currency string as rendered by the source site:
// thousands separated by "." and decimals by "," ("1.234,56", "-45,20"),
// possibly padded with a currency sign and non-breaking spaces. The sign
// is taken only from the string itself, never inferred.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '€', ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("unable to parse amount(%s): empty after normalization", s)
	}

	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount(%s): %w", s, err)
	}
	return d, nil
}

// parseLedgerAmount reads an Importo cell. The column holds plain
// dot-decimal strings; older revisions wrote float reprs like "100.0",
// which decimal accepts unchanged.
func parseLedgerAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount(%s): %w", s, err)
	}
	return d, nil
}

func formatLedgerAmount(d decimal.Decimal) string {
	return d.StringFixedBank(2)
}
