package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

// Layouts with an explicit year-first or named month; never ambiguous.
var unambiguousLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
	"02 Jan 2006",
	"2 Jan 2006",
	"02/Jan/2006",
	"2 January 2006",
	"02 January 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"Mon, 02 Jan 2006",
}

var numericDate = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4}|\d{2})$`)

type numericParts struct {
	a, b, year int
}

func splitNumeric(raw string) (numericParts, bool) {
	m := numericDate.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return numericParts{}, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		if y < 70 {
			y += 2000
		} else {
			y += 1900
		}
	}
	return numericParts{a: a, b: b, year: y}, true
}

// evidenceOrder returns the order implied by a numeric date on its own,
// or OrderUnknown when both readings remain possible.
func evidenceOrder(raw string) DateOrder {
	p, ok := splitNumeric(raw)
	if !ok {
		return OrderUnknown
	}
	switch {
	case p.a > 12 && p.b <= 12:
		return OrderDayFirst
	case p.b > 12 && p.a <= 12:
		return OrderMonthFirst
	default:
		return OrderUnknown
	}
}

// Date normalizes raw to YYYY-MM-DD. Ambiguous numeric forms such as
// 03/04/2024 follow the order already established for the document; when the
// document has given no evidence the configured default is used and the
// outcome is marked Guessed. Unambiguous numeric dates seen here become
// evidence for later calls on the same context.
func Date(raw string, ctx *Context) Outcome {
	s := strings.TrimSpace(raw)
	if s == "" {
		return failed(raw, "empty date")
	}

	for _, layout := range unambiguousLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Outcome{Original: raw, Value: t.Format(isoLayout), OK: true}
		}
	}

	p, ok := splitNumeric(s)
	if !ok {
		return failed(raw, "unrecognized date format")
	}

	implied := evidenceOrder(s)
	order := implied
	guessed := false
	if order == OrderUnknown {
		if p.a > 12 && p.b > 12 {
			return failed(raw, "no valid day/month reading")
		}
		if p.a == p.b {
			order = OrderDayFirst
		} else {
			var resolved bool
			order, resolved = ctx.DateOrder()
			guessed = !resolved
		}
	} else {
		ctx.ObserveDate(s)
	}

	day, month := p.a, p.b
	if order == OrderMonthFirst {
		day, month = p.b, p.a
	}
	t, valid := buildDate(p.year, month, day)
	if !valid {
		return failed(raw, "day out of range for month")
	}
	return Outcome{Original: raw, Value: t.Format(isoLayout), OK: true, Guessed: guessed}
}

func buildDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// IsISODate reports whether s is a valid YYYY-MM-DD date.
func IsISODate(s string) bool {
	_, err := time.Parse(isoLayout, s)
	return err == nil
}
