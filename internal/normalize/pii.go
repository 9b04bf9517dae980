package normalize

import (
	"strings"
	"unicode"
)

// MaskPII masks all but the last showLast characters of an identifier.
// Spaces and dashes are dropped first. Values no longer than showLast keep
// only their final character.
func MaskPII(value string, showLast int, maskChar rune) string {
	cleaned := make([]rune, 0, len(value))
	for _, r := range strings.TrimSpace(value) {
		if r == ' ' || r == '-' {
			continue
		}
		cleaned = append(cleaned, r)
	}
	if len(cleaned) == 0 {
		return ""
	}
	if showLast <= 0 {
		showLast = 4
	}
	keep := showLast
	if len(cleaned) <= showLast {
		keep = 1
	}
	masked := make([]rune, len(cleaned))
	for i := range cleaned {
		if i < len(cleaned)-keep {
			masked[i] = maskChar
		} else {
			masked[i] = cleaned[i]
		}
	}
	return string(masked)
}

// Mask applies the context's masking options to value.
func Mask(value string, ctx *Context) Outcome {
	if strings.TrimSpace(value) == "" {
		return failed(value, "empty identifier")
	}
	opts := ctx.Options()
	if !opts.MaskPII {
		return Outcome{Original: value, Value: strings.TrimSpace(value), OK: true}
	}
	return Outcome{
		Original: value,
		Value:    MaskPII(value, opts.ShowLast, opts.MaskChar),
		OK:       true,
		Masked:   true,
	}
}

// IsMasked reports whether value already looks masked with maskChar.
func IsMasked(value string, maskChar rune) bool {
	return strings.ContainsRune(value, maskChar) &&
		strings.IndexFunc(value, unicode.IsDigit) > strings.IndexRune(value, maskChar)
}

var piiExact = map[string]bool{
	"iban": true, "ssn": true, "passport": true, "swift": true, "bic": true,
	"account": true, "acct": true, "tax_id": true, "taxid": true, "pan": true,
	"social_security": true, "social_security_number": true,
}

// IsPIIField reports whether a field name denotes an account-number-like
// identifier that must be masked before it leaves the pipeline.
func IsPIIField(name string) bool {
	key := lastSegment(name)
	if piiExact[key] {
		return true
	}
	tokens := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' })
	var subject, number bool
	for _, t := range tokens {
		switch t {
		case "account", "acct", "card", "routing", "iban", "passport", "ssn":
			subject = true
		case "number", "no", "num", "nr":
			number = true
		}
	}
	return subject && number
}

func lastSegment(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndexAny(name, ".]"); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return name
}
