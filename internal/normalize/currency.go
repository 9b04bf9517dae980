package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// currencySymbols maps printed symbols to ISO 4217 codes. Multi-character
// symbols are matched before the single characters they contain.
var currencySymbols = map[string]string{
	"$":   "USD",
	"US$": "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"CN¥": "CNY",
	"₹":   "INR",
	"৳":   "BDT",
	"A$":  "AUD",
	"C$":  "CAD",
	"R$":  "BRL",
	"S$":  "SGD",
	"HK$": "HKD",
	"NZ$": "NZD",
	"₽":   "RUB",
	"₨":   "PKR",
	"₩":   "KRW",
	"₱":   "PHP",
	"₺":   "TRY",
	"₦":   "NGN",
	"₫":   "VND",
	"₪":   "ILS",
}

// primarySymbols is the symbol FormatAmount prints for a code.
var primarySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CNY": "CN¥",
	"INR": "₹",
	"BDT": "৳",
	"AUD": "A$",
	"CAD": "C$",
	"BRL": "R$",
	"SGD": "S$",
	"HKD": "HK$",
	"NZD": "NZ$",
	"RUB": "₽",
	"PKR": "₨",
	"KRW": "₩",
	"PHP": "₱",
	"TRY": "₺",
	"NGN": "₦",
	"VND": "₫",
	"ILS": "₪",
}

var currencyCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CNY": true, "INR": true,
	"BDT": true, "AUD": true, "CAD": true, "BRL": true, "RUB": true, "PKR": true,
	"SGD": true, "HKD": true, "KRW": true, "MXN": true, "ZAR": true, "NZD": true,
	"CHF": true, "SEK": true, "NOK": true, "DKK": true, "AED": true, "SAR": true,
	"PHP": true, "TRY": true, "NGN": true, "VND": true, "ILS": true, "THB": true,
	"MYR": true, "IDR": true, "LKR": true, "NPR": true, "KES": true, "EGP": true,
}

var symbolsByLength []string

func init() {
	for sym := range currencySymbols {
		symbolsByLength = append(symbolsByLength, sym)
	}
	sort.Slice(symbolsByLength, func(i, j int) bool {
		if len(symbolsByLength[i]) != len(symbolsByLength[j]) {
			return len(symbolsByLength[i]) > len(symbolsByLength[j])
		}
		return symbolsByLength[i] < symbolsByLength[j]
	})
}

var codePattern = regexp.MustCompile(`[A-Za-z]{3}`)

// IsCurrencyCode reports whether code is a supported ISO 4217 code.
func IsCurrencyCode(code string) bool {
	return currencyCodes[strings.ToUpper(strings.TrimSpace(code))]
}

// SupportedCurrencies returns the supported ISO codes in sorted order.
func SupportedCurrencies() []string {
	out := make([]string, 0, len(currencyCodes))
	for c := range currencyCodes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// detectCurrency finds a currency symbol or code in s. It returns the ISO
// code and s with the matched token removed.
func detectCurrency(s string) (string, string) {
	for _, sym := range symbolsByLength {
		if idx := strings.Index(s, sym); idx >= 0 {
			if sym == "$" && idx > 0 && isLetter(s[idx-1]) {
				continue
			}
			return currencySymbols[sym], s[:idx] + s[idx+len(sym):]
		}
	}
	for _, loc := range codePattern.FindAllStringIndex(s, -1) {
		if loc[0] > 0 && isLetter(s[loc[0]-1]) || loc[1] < len(s) && isLetter(s[loc[1]]) {
			continue
		}
		code := strings.ToUpper(s[loc[0]:loc[1]])
		if currencyCodes[code] {
			return code, s[:loc[0]] + s[loc[1]:]
		}
	}
	return "", s
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// Currency normalizes a symbol or code to an ISO 4217 code.
func Currency(raw string) Outcome {
	s := strings.TrimSpace(raw)
	if s == "" {
		return failed(raw, "empty currency")
	}
	if IsCurrencyCode(s) {
		code := strings.ToUpper(s)
		return Outcome{Original: raw, Value: code, Currency: code, OK: true}
	}
	if code, rest := detectCurrency(s); code != "" && strings.TrimSpace(rest) == "" {
		return Outcome{Original: raw, Value: code, Currency: code, OK: true}
	}
	return failed(raw, "unknown currency")
}
