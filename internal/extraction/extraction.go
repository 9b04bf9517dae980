// Package extraction decodes a provider's extraction answer into extracted
// fields and ledger transactions.
//
// An answer is a JSON object of sections. Each section maps field names to
// field objects ({"value", "confidence", "page", "bbox"}) or bare scalars.
// Arrays of objects are row groups. A "transactions" array at any depth,
// including one nested inside page groups, becomes domain.Transaction records
// numbered in document order. Fields that fail validation are kept with
// confidence 0 and flagged rather than dropped.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/normalize"
	"ledgerscan/internal/provider"
	"ledgerscan/internal/provider/prompt"
)

// Status tags the outcome of decoding one answer.
type Status int

const (
	// Success means every field in the answer was readable.
	Success Status = iota
	// PartialSuccess means some fields were unreadable and flagged.
	PartialSuccess
	// Failure means nothing usable came back.
	Failure
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case PartialSuccess:
		return "partial_success"
	default:
		return "failure"
	}
}

// Result is the decoded answer. Err is set only for Failure.
type Result struct {
	Status       Status
	Fields       []domain.ExtractedField
	Transactions []domain.Transaction
	Invalid      int
	Err          error
}

const fieldSchema = `{
  "oneOf": [
    {"type": ["string", "number", "boolean", "null"]},
    {
      "type": "object",
      "properties": {
        "value": {"type": ["string", "number", "boolean", "null"]},
        "confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
        "page": {"type": ["number", "null"], "minimum": 1},
        "bbox": {
          "oneOf": [
            {"type": "null"},
            {"type": "array", "items": {"type": "number"}, "minItems": 4, "maxItems": 4}
          ]
        }
      },
      "required": ["value"]
    }
  ]
}`

var fieldValidator = jsonschema.MustCompileString("field.json", fieldSchema)

// Decode parses text as an extraction answer for a document of type t.
func Decode(t domain.DocumentType, text string) Result {
	raw, err := provider.ExtractJSON(text)
	if err != nil {
		return Result{Status: Failure, Err: err}
	}

	var root map[string]any
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return Result{Status: Failure, Err: fmt.Errorf("%w: %v", domain.ErrProviderMalformedOutput, err)}
	}
	// A second decode keeps numbers as written for field values.
	var exact map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&exact); err != nil {
		return Result{Status: Failure, Err: fmt.Errorf("%w: %v", domain.ErrProviderMalformedOutput, err)}
	}

	d := &decoder{}
	layout := prompt.LayoutFor(t)
	for _, key := range orderedKeys(root, sectionOrder(layout)) {
		d.node(key, key, nil, root[key], exact[key], layout)
	}

	res := Result{Fields: d.fields, Transactions: d.txns, Invalid: d.invalid}
	switch {
	case len(d.fields) == 0:
		res.Status = Failure
		res.Err = fmt.Errorf("%w: answer contained no fields", domain.ErrProviderMalformedOutput)
	case d.invalid == len(d.fields):
		res.Status = Failure
		res.Err = fmt.Errorf("%w: none of %d fields could be read", domain.ErrProviderMalformedOutput, d.invalid)
	case d.invalid > 0:
		res.Status = PartialSuccess
	default:
		res.Status = Success
	}
	return res
}

type decoder struct {
	fields  []domain.ExtractedField
	txns    []domain.Transaction
	invalid int
	// page is the page number of the enclosing row group, if it has one.
	page *int
}

// node handles a section, a nested group or a leaf. group is the top-level
// section name and row is non-nil inside a row group.
func (d *decoder) node(group, path string, row *int, plain, exact any, layout prompt.Layout) {
	switch v := plain.(type) {
	case map[string]any:
		if _, isField := v["value"]; isField {
			d.leaf(group, path, row, plain, exact)
			return
		}
		ex, _ := exact.(map[string]any)
		for _, key := range orderedKeys(v, fieldOrder(layout, group, path, row != nil)) {
			d.node(group, path+"."+key, row, v[key], ex[key], layout)
		}
	case []any:
		ex, _ := exact.([]any)
		txnRows := lastSegment(path) == prompt.TransactionRows
		for i, item := range v {
			var exItem any
			if i < len(ex) {
				exItem = ex[i]
			}
			obj, ok := item.(map[string]any)
			switch {
			case !ok:
				d.leaf(group, path, row, item, exItem)
			case txnRows:
				d.row(prompt.TransactionRows, prompt.TransactionRows, len(d.txns), obj, exItem, layout)
			case row != nil:
				d.node(group, path, row, obj, exItem, layout)
			default:
				d.row(group, path, i, obj, exItem, layout)
			}
		}
	default:
		d.leaf(group, path, row, plain, exact)
	}
}

func (d *decoder) row(group, path string, idx int, obj map[string]any, exact any, layout prompt.Layout) {
	if path != prompt.TransactionRows {
		outer := d.page
		if p, ok := pageNumber(obj); ok {
			d.page = &p
		}
		d.node(group, path, &idx, obj, exact, layout)
		d.page = outer
		return
	}

	start := len(d.fields)
	d.node(group, path, &idx, obj, exact, layout)
	rawRow, _ := json.Marshal(obj)
	txn := domain.Transaction{Position: idx, RawRow: rawRow}
	for i := start; i < len(d.fields); i++ {
		f := &d.fields[i]
		if f.Key == "description" {
			txn.Description = f.RawValue
		}
		if txn.Page == nil && f.Page != nil {
			p := *f.Page
			txn.Page = &p
		}
	}
	if txn.Page == nil && d.page != nil {
		p := *d.page
		txn.Page = &p
	}
	d.txns = append(d.txns, txn)
}

// pageNumber reads a page group's "page_number" or "page", either bare or
// as a field object.
func pageNumber(obj map[string]any) (int, bool) {
	for _, key := range []string{"page_number", "page"} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if f, isField := v.(map[string]any); isField {
			v = f["value"]
		}
		switch n := v.(type) {
		case float64:
			if n >= 1 {
				return int(n), true
			}
		case string:
			if p, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && p >= 1 {
				return p, true
			}
		}
	}
	return 0, false
}

func (d *decoder) leaf(group, path string, row *int, plain, exact any) {
	if plain == nil {
		return
	}
	if obj, ok := plain.(map[string]any); ok && obj["value"] == nil {
		return
	}

	f := domain.ExtractedField{
		Position:     len(d.fields),
		Name:         path,
		Group:        group,
		SemanticType: normalize.InferSemanticType(path),
	}
	if row != nil {
		r := *row
		f.RowIndex = &r
		f.Name = group + "." + strings.TrimPrefix(path, group+".")
		f.Key = strings.TrimPrefix(path, group+".")
	} else {
		f.Key = lastSegment(path)
	}

	if err := fieldValidator.Validate(plain); err != nil {
		f.RawValue = compact(plain)
		f.Confidence = 0
		f.Flag(domain.ReviewExtractionFailed)
		d.invalid++
		d.fields = append(d.fields, f)
		return
	}

	switch v := plain.(type) {
	case map[string]any:
		ex, _ := exact.(map[string]any)
		f.RawValue = scalarString(ex["value"])
		if c, ok := v["confidence"].(float64); ok {
			f.ProviderConfidence = &c
		}
		if p, ok := v["page"].(float64); ok {
			page := int(p)
			f.Page = &page
		}
		if box, ok := v["bbox"].([]any); ok {
			f.BBox = make(domain.JSONFloats, 0, len(box))
			for _, b := range box {
				n, _ := b.(float64)
				f.BBox = append(f.BBox, n)
			}
		}
	default:
		f.RawValue = scalarString(exact)
	}
	d.fields = append(d.fields, f)
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(s)
	}
}

func compact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sectionOrder(l prompt.Layout) []string {
	order := make([]string, 0, len(l.Sections)+1)
	for _, s := range l.Sections {
		order = append(order, s.Name)
	}
	if l.Rows != "" {
		order = append(order, l.Rows)
	}
	return order
}

func fieldOrder(l prompt.Layout, group, path string, inRow bool) []string {
	if inRow {
		if group == l.Rows && path == group {
			return l.RowKeys
		}
		return nil
	}
	for _, s := range l.Sections {
		if s.Name == path {
			return s.Fields
		}
	}
	return nil
}

// orderedKeys lists known keys in catalog order first, then the rest sorted.
func orderedKeys(m map[string]any, known []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range known {
		if _, ok := m[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
