package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountOutcome is an Outcome carrying the parsed decimal value.
type AmountOutcome struct {
	Outcome
	Amount decimal.Decimal
}

// AmountScale is the number of fractional digits kept for amounts.
const AmountScale = 2

var (
	groupedComma = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	groupedDot   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	plainNumber  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	digitsOnly   = regexp.MustCompile(`[0-9]`)
)

// Amount parses raw into a fixed-precision decimal and detects its currency.
// Handles thousands separators in either convention, parentheses and
// trailing minus for negatives, and CR/DR suffixes. When the value carries
// no currency, the document currency from ctx is used.
func Amount(raw string, ctx *Context) AmountOutcome {
	s := strings.TrimSpace(raw)
	if s == "" {
		return AmountOutcome{Outcome: failed(raw, "empty amount")}
	}

	negative := false
	upper := strings.ToUpper(s)
	switch {
	case hasMarker(upper, "DR"):
		negative = true
		s = strings.TrimSpace(s[:len(s)-2])
	case hasMarker(upper, "CR"):
		s = strings.TrimSpace(s[:len(s)-2])
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	code, rest := detectCurrency(s)
	s = strings.TrimSpace(rest)

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[:len(s)-1])
	}
	s = strings.TrimPrefix(s, "+")

	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "", "\u2019", "").Replace(s)
	if !digitsOnly.MatchString(s) {
		return AmountOutcome{Outcome: failed(raw, "no digits in amount")}
	}

	cleaned, ok := canonicalNumber(s)
	if !ok {
		return AmountOutcome{Outcome: failed(raw, "unparseable amount")}
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return AmountOutcome{Outcome: failed(raw, "unparseable amount")}
	}
	if negative {
		d = d.Neg()
	}
	d = d.Round(AmountScale)

	if code == "" {
		code = ctx.Currency()
	} else {
		ctx.SetCurrency(code)
	}
	return AmountOutcome{
		Outcome: Outcome{
			Original: raw,
			Value:    d.StringFixed(AmountScale),
			OK:       true,
			Currency: code,
		},
		Amount: d,
	}
}

// hasMarker reports whether s ends with a standalone CR/DR marker, so that
// codes like IDR are left alone.
func hasMarker(s, marker string) bool {
	if !strings.HasSuffix(s, marker) {
		return false
	}
	n := len(s) - len(marker)
	return n == 0 || !isLetter(s[n-1])
}

// canonicalNumber rewrites a digit string with separators into the
// dot-decimal form decimal.NewFromString accepts.
func canonicalNumber(s string) (string, bool) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,50
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.50
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if groupedComma.MatchString(s) {
			s = strings.ReplaceAll(s, ",", "")
		} else if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 && groupedDot.MatchString(s) {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	if !plainNumber.MatchString(s) {
		return "", false
	}
	return s, true
}

// FormatAmount renders an amount the way statements print it: currency
// symbol, thousands grouping, two decimals. Codes without a symbol are
// printed as a suffix. Amount(FormatAmount(v, c)) yields v and c.
func FormatAmount(v decimal.Decimal, currency string) string {
	neg := v.IsNegative()
	digits := v.Abs().StringFixed(AmountScale)
	intPart, frac := digits, ""
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		intPart, frac = digits[:i], digits[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	number := b.String() + frac

	sign := ""
	if neg {
		sign = "-"
	}
	if sym, ok := primarySymbols[currency]; ok {
		return sign + sym + number
	}
	if currency == "" {
		return sign + number
	}
	return sign + number + " " + currency
}
