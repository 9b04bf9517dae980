package normalize

import (
	"regexp"
	"strings"

	"ledgerscan/internal/domain"
)

var amountTokens = []string{
	"amount", "price", "total", "subtotal", "balance", "debit", "credit",
	"tax", "vat", "gst", "fee", "charge", "deposit", "withdrawal",
	"discount", "tip",
}

// InferSemanticType guesses the semantic type of a field from its name.
// Only the last path segment is considered.
func InferSemanticType(name string) domain.SemanticType {
	key := lastSegment(name)
	switch {
	case strings.Contains(key, "date") || key == "period_start" || key == "period_end":
		return domain.SemanticDate
	case strings.Contains(key, "currency"):
		return domain.SemanticCurrency
	case strings.Contains(key, "email"):
		return domain.SemanticEmail
	case strings.Contains(key, "phone") || strings.Contains(key, "mobile") || key == "tel":
		return domain.SemanticPhone
	case IsPIIField(key):
		return domain.SemanticAccountNumber
	}
	for _, tok := range strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' }) {
		for _, a := range amountTokens {
			if tok == a {
				return domain.SemanticAmount
			}
		}
	}
	return domain.SemanticText
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneStrip   = regexp.MustCompile(`[\s\-().]`)
	phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// Field normalizes raw according to its semantic type.
func Field(raw string, t domain.SemanticType, ctx *Context) Outcome {
	switch t {
	case domain.SemanticDate:
		return Date(raw, ctx)
	case domain.SemanticAmount:
		return Amount(raw, ctx).Outcome
	case domain.SemanticCurrency:
		out := Currency(raw)
		if out.OK {
			ctx.SetCurrency(out.Value)
		}
		return out
	case domain.SemanticAccountNumber:
		return Mask(raw, ctx)
	case domain.SemanticEmail:
		s := strings.ToLower(strings.TrimSpace(raw))
		if !emailPattern.MatchString(s) {
			return failed(raw, "invalid email")
		}
		return Outcome{Original: raw, Value: s, OK: true}
	case domain.SemanticPhone:
		s := phoneStrip.ReplaceAllString(strings.TrimSpace(raw), "")
		if !phonePattern.MatchString(s) {
			return failed(raw, "invalid phone number")
		}
		return Outcome{Original: raw, Value: s, OK: true}
	default:
		s := spaceRun.ReplaceAllString(strings.TrimSpace(raw), " ")
		if s == "" {
			return failed(raw, "empty value")
		}
		return Outcome{Original: raw, Value: s, OK: true}
	}
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// ValidPhone reports whether s holds 10 to 15 digits once formatting is removed.
func ValidPhone(s string) bool {
	d := phoneStrip.ReplaceAllString(strings.TrimSpace(s), "")
	d = strings.TrimPrefix(d, "+")
	if len(d) < 10 || len(d) > 15 {
		return false
	}
	for _, r := range d {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
