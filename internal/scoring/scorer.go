// Package scoring turns provider confidences and normalization results into
// per-field and per-document confidence scores with review flags.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"ledgerscan/internal/domain"
	"ledgerscan/internal/normalize"
)

// FieldScore is the scoring result for one field.
type FieldScore struct {
	Score       float64
	Provider    float64
	Validity    float64
	Consistency float64
	Mandatory   bool
	NeedsReview bool
	Reasons     []string
}

// RowScore aggregates the fields of one transaction row.
type RowScore struct {
	Confidence  float64
	NeedsReview bool
	Reasons     []string
	Fields      map[string]float64
}

// Result is the outcome of scoring one document. Fields is aligned with the
// slice passed to Score; Rows is keyed by transaction position.
type Result struct {
	Fields      []FieldScore
	Rows        map[int]RowScore
	Document    float64
	NeedsReview bool
	Reasons     []string
}

// Scorer computes confidence scores. It is safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New validates cfg and returns a Scorer holding a private copy of it.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring.New: %w", err)
	}
	return &Scorer{cfg: cfg.clone()}, nil
}

// Config returns a copy of the scorer's configuration.
func (s *Scorer) Config() Config {
	return s.cfg.clone()
}

// Score rates every field of a document of type docType. The same input
// always produces the same result.
func (s *Scorer) Score(docType domain.DocumentType, fields []domain.ExtractedField) Result {
	res := Result{
		Fields: make([]FieldScore, len(fields)),
		Rows:   make(map[int]RowScore),
	}

	mandatory := make(map[string]bool)
	for _, name := range s.cfg.MandatoryFields[docType] {
		mandatory[name] = true
	}

	currency := documentCurrency(fields)
	outOfOrder := outOfOrderRows(fields)

	var weighted, totalWeight float64
	seen := make(map[string]bool)
	for i := range fields {
		f := &fields[i]
		fs := s.scoreField(f, currency, outOfOrder)
		fs.Mandatory = mandatory[f.Name]
		if fs.Mandatory {
			seen[f.Name] = true
			if fs.Score < s.cfg.MandatoryThreshold {
				fs.NeedsReview = true
				fs.Reasons = appendReason(fs.Reasons, domain.ReviewMandatoryLow)
				res.Reasons = appendReason(res.Reasons, domain.ReviewMandatoryLow)
			}
		}
		res.Fields[i] = fs

		w := 1.0
		if fs.Mandatory {
			w = s.cfg.MandatoryWeight
		}
		weighted += w * fs.Score
		totalWeight += w
	}

	if totalWeight > 0 {
		res.Document = clamp(weighted / totalWeight)
	}
	for _, name := range s.cfg.MandatoryFields[docType] {
		if !seen[name] {
			res.Reasons = appendReason(res.Reasons, domain.ReviewMandatoryMissing)
		}
	}
	if res.Document < s.cfg.DocumentThreshold {
		res.Reasons = appendReason(res.Reasons, domain.ReviewDocumentLow)
	}
	res.NeedsReview = len(res.Reasons) > 0

	s.aggregateRows(fields, &res)
	return res
}

func (s *Scorer) scoreField(f *domain.ExtractedField, currency string, outOfOrder map[int]bool) FieldScore {
	if f.HasReason(domain.ReviewExtractionFailed) {
		return FieldScore{
			NeedsReview: true,
			Reasons:     []string{domain.ReviewExtractionFailed, domain.ReviewLowConfidence},
		}
	}

	fs := FieldScore{Provider: s.cfg.MissingProviderConfidence}
	if f.ProviderConfidence != nil {
		fs.Provider = clamp(*f.ProviderConfidence)
	}

	if f.NormalizedValue == nil {
		fs.Reasons = appendReason(fs.Reasons, domain.ReviewNormalizationFailed)
	} else {
		fs.Validity = validity(f)
		fs.Consistency = 1
		switch f.SemanticType {
		case domain.SemanticDate:
			if f.HasReason(domain.ReviewDateGuessed) {
				fs.Consistency = 0.5
				fs.Reasons = appendReason(fs.Reasons, domain.ReviewDateGuessed)
			}
			if f.RowIndex != nil && outOfOrder[*f.RowIndex] {
				fs.Consistency = 0.5
				fs.Reasons = appendReason(fs.Reasons, domain.ReviewOutOfOrder)
			}
		case domain.SemanticAmount, domain.SemanticCurrency:
			c := f.Currency
			if f.SemanticType == domain.SemanticCurrency {
				c = *f.NormalizedValue
			}
			if c != "" && currency != "" && c != currency {
				fs.Consistency = 0.4
				fs.Reasons = appendReason(fs.Reasons, domain.ReviewCurrencyMismatch)
			}
		}
	}

	w := s.cfg.weightsFor(f.SemanticType)
	fs.Score = clamp(w.Provider*fs.Provider + w.Validity*fs.Validity + w.Consistency*fs.Consistency)
	if fs.Score < s.cfg.FieldThreshold {
		fs.Reasons = appendReason(fs.Reasons, domain.ReviewLowConfidence)
	}
	fs.NeedsReview = len(fs.Reasons) > 0
	return fs
}

func validity(f *domain.ExtractedField) float64 {
	v := *f.NormalizedValue
	switch f.SemanticType {
	case domain.SemanticDate:
		if !normalize.IsISODate(v) {
			return 0
		}
		if f.HasReason(domain.ReviewDateGuessed) {
			return 0.6
		}
		return 1
	case domain.SemanticAmount:
		return 1
	case domain.SemanticCurrency:
		if normalize.IsCurrencyCode(v) {
			return 1
		}
		return 0
	case domain.SemanticAccountNumber:
		n := len([]rune(strings.NewReplacer(" ", "", "-", "").Replace(v)))
		if n >= 8 && n <= 20 {
			return 1
		}
		return 0.5
	case domain.SemanticEmail:
		if normalize.ValidEmail(v) {
			return 1
		}
		return 0
	case domain.SemanticPhone:
		if normalize.ValidPhone(v) {
			return 1
		}
		return 0.5
	default:
		if strings.TrimSpace(v) == "" {
			return 0
		}
		return 1
	}
}

func (s *Scorer) aggregateRows(fields []domain.ExtractedField, res *Result) {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i := range fields {
		f := &fields[i]
		if f.RowIndex == nil {
			continue
		}
		idx := *f.RowIndex
		fs := res.Fields[i]
		row, ok := res.Rows[idx]
		if !ok {
			row = RowScore{Fields: make(map[string]float64)}
		}
		row.Fields[f.Key] = fs.Score
		for _, r := range fs.Reasons {
			row.Reasons = appendReason(row.Reasons, r)
		}
		row.NeedsReview = row.NeedsReview || fs.NeedsReview
		res.Rows[idx] = row
		sums[idx] += fs.Score
		counts[idx]++
	}
	for idx, row := range res.Rows {
		row.Confidence = clamp(sums[idx] / float64(counts[idx]))
		sort.Strings(row.Reasons)
		res.Rows[idx] = row
	}
}

// Apply copies the result onto the fields and transactions it was computed
// from. Transactions are matched to rows by Position.
func (r Result) Apply(fields []domain.ExtractedField, txns []domain.Transaction) {
	for i := range fields {
		if i >= len(r.Fields) {
			break
		}
		fs := r.Fields[i]
		fields[i].Confidence = fs.Score
		for _, reason := range fs.Reasons {
			if !fields[i].HasReason(reason) {
				fields[i].Flag(reason)
			}
		}
		fields[i].NeedsReview = fields[i].NeedsReview || fs.NeedsReview
	}
	for i := range txns {
		row, ok := r.Rows[txns[i].Position]
		if !ok {
			continue
		}
		txns[i].Confidence = row.Confidence
		txns[i].FieldConfidence = domain.JSONFloatMap(row.Fields)
		txns[i].NeedsReview = row.NeedsReview
		txns[i].ReviewReasons = append(domain.JSONStrings(nil), row.Reasons...)
	}
}

// documentCurrency is the most frequent currency across amount and currency
// fields; ties go to the alphabetically first code.
func documentCurrency(fields []domain.ExtractedField) string {
	counts := make(map[string]int)
	for i := range fields {
		f := &fields[i]
		switch {
		case f.SemanticType == domain.SemanticCurrency && f.NormalizedValue != nil:
			counts[*f.NormalizedValue]++
		case f.SemanticType == domain.SemanticAmount && f.Currency != "":
			counts[f.Currency]++
		}
	}
	best, bestN := "", 0
	for code, n := range counts {
		if n > bestN || (n == bestN && code < best) {
			best, bestN = code, n
		}
	}
	return best
}

// outOfOrderRows returns the transaction rows whose date breaks the ledger's
// chronological direction. The direction is taken from the first and last
// dated rows so statements listed newest-first are accepted.
func outOfOrderRows(fields []domain.ExtractedField) map[int]bool {
	type dated struct {
		row  int
		date string
	}
	var rows []dated
	for i := range fields {
		f := &fields[i]
		if f.RowIndex == nil || f.SemanticType != domain.SemanticDate || f.NormalizedValue == nil {
			continue
		}
		if !normalize.IsISODate(*f.NormalizedValue) {
			continue
		}
		rows = append(rows, dated{row: *f.RowIndex, date: *f.NormalizedValue})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].row < rows[j].row })

	bad := make(map[int]bool)
	if len(rows) < 2 {
		return bad
	}
	ascending := rows[0].date <= rows[len(rows)-1].date
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1].date, rows[i].date
		if (ascending && cur < prev) || (!ascending && cur > prev) {
			bad[rows[i].row] = true
		}
	}
	return bad
}

func appendReason(reasons []string, reason string) []string {
	for _, r := range reasons {
		if r == reason {
			return reasons
		}
	}
	return append(reasons, reason)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
