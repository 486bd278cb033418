package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT FORMATTING
// =============================================================================

// FormatAmount renders a minor-unit amount for display, e.g.
// FormatAmount(5000, "IQD", 0) -> "5,000 IQD" and
// FormatAmount(123456, "USD", 2) -> "1,234.56 USD".
//
// The exponent is the number of minor-unit digits in one major unit.
func FormatAmount(minor int64, currency string, exponent int32) string {
	d := decimal.New(minor, -exponent)

	var fixed string
	if exponent > 0 {
		fixed = d.StringFixed(exponent)
	} else {
		fixed = d.StringFixed(0)
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	grouped := groupThousands(intPart)
	if neg {
		grouped = "-" + grouped
	}
	if fracPart != "" {
		grouped += "." + fracPart
	}
	if currency != "" {
		grouped += " " + currency
	}
	return grouped
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
