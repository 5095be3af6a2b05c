package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// nonAmountChars strips currency symbols, letters and whitespace
	nonAmountChars = regexp.MustCompile(`[^\d,.\-]`)
	commaDecimal   = regexp.MustCompile(`\d,\d{2}$`)
	periodDecimal  = regexp.MustCompile(`\d\.\d{2}$`)
)

// ParseAmount parses a locale-tolerant money field ("R$ 1.234,56", "-1,234.56", "12,5").
// It never fails: unparseable input yields decimal.Zero, which callers treat as "discard".
//
// "1.234,56" is comma-decimal and "1,234.56" is period-decimal. When neither
// pattern matches the tail, every comma is read as a decimal point.
func ParseAmount(raw string) decimal.Decimal {
	s := nonAmountChars.ReplaceAllString(raw, "")
	if s == "" {
		return decimal.Zero
	}

	switch {
	case commaDecimal.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case periodDecimal.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return amount
}
