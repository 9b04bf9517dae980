// Package normalize turns raw extracted strings into canonical values:
// ISO-8601 dates, fixed-precision amounts with ISO currency codes, and
// masked account identifiers.
//
// Functions in this package never panic on malformed input. They return an
// Outcome whose OK field is false, carrying the original value and a reason.
package normalize

import (
	"fmt"

	"ledgerscan/internal/domain"
)

// DateOrder says how a numeric date like 03/04/2024 is read.
type DateOrder int

const (
	OrderUnknown DateOrder = iota
	OrderDayFirst
	OrderMonthFirst
)

func (o DateOrder) String() string {
	switch o {
	case OrderDayFirst:
		return "day_first"
	case OrderMonthFirst:
		return "month_first"
	default:
		return "unknown"
	}
}

// ParseDateOrder maps a config string onto a DateOrder.
func ParseDateOrder(s string) (DateOrder, error) {
	switch s {
	case "day_first", "dmy", "":
		return OrderDayFirst, nil
	case "month_first", "mdy":
		return OrderMonthFirst, nil
	default:
		return OrderUnknown, fmt.Errorf("unknown date order %q", s)
	}
}

// Options configures normalization. It is copied into every Context and
// never mutated.
type Options struct {
	// DefaultDateOrder applies when a document gives no evidence either way.
	DefaultDateOrder DateOrder
	// DefaultCurrency is used when neither the value nor the document names one.
	DefaultCurrency string
	MaskPII         bool
	MaskChar        rune
	ShowLast        int
}

// DefaultOptions returns day-first dates, masking on, last 4 visible.
func DefaultOptions() Options {
	return Options{
		DefaultDateOrder: OrderDayFirst,
		MaskPII:          true,
		MaskChar:         'X',
		ShowLast:         4,
	}
}

// Outcome is the result of normalizing a single value.
type Outcome struct {
	Original string
	Value    string
	OK       bool
	// Guessed is set when the value was resolved by a default rather than
	// by evidence in the value or the document.
	Guessed bool
	Masked  bool
	// Currency is set for amounts and currency codes.
	Currency string
	Reason   string
}

// Err returns nil for successful outcomes and an ErrNormalization wrap otherwise.
func (o Outcome) Err() error {
	if o.OK {
		return nil
	}
	return fmt.Errorf("%w: %q: %s", domain.ErrNormalization, o.Original, o.Reason)
}

func failed(original, reason string) Outcome {
	return Outcome{Original: original, Reason: reason}
}

// Context carries per-document state: the established date order and the
// document currency. A Context must not be shared between documents.
type Context struct {
	opts     Options
	order    DateOrder
	currency string
}

// NewContext creates a Context for one document.
func NewContext(opts Options) *Context {
	if opts.MaskChar == 0 {
		opts.MaskChar = 'X'
	}
	if opts.ShowLast <= 0 {
		opts.ShowLast = 4
	}
	return &Context{opts: opts}
}

// Options returns the options the context was built with.
func (c *Context) Options() Options {
	return c.opts
}

// DateOrder returns the order established by document evidence and whether
// any evidence has been seen.
func (c *Context) DateOrder() (DateOrder, bool) {
	if c.order == OrderUnknown {
		return c.opts.DefaultDateOrder, false
	}
	return c.order, true
}

// Currency returns the document currency, falling back to the default.
func (c *Context) Currency() string {
	if c.currency != "" {
		return c.currency
	}
	return c.opts.DefaultCurrency
}

// SetCurrency fixes the document currency if not already known.
func (c *Context) SetCurrency(code string) {
	if c.currency == "" && IsCurrencyCode(code) {
		c.currency = code
	}
}

// ObserveDate feeds a raw date into the context. The first unambiguous
// numeric date fixes the document's order.
func (c *Context) ObserveDate(raw string) {
	if c.order != OrderUnknown {
		return
	}
	if order := evidenceOrder(raw); order != OrderUnknown {
		c.order = order
	}
}

// ObserveCurrency feeds a currency-bearing raw value into the context.
func (c *Context) ObserveCurrency(raw string) {
	if c.currency != "" {
		return
	}
	if code, _ := detectCurrency(raw); code != "" {
		c.currency = code
	}
}
