package extraction

import (
	"strings"

	"ledgerscan/internal/domain"
)

// Rebuild reassembles the nested answer from stored fields. Row groups
// become arrays ordered by row index; unreadable fields are left out.
func Rebuild(fields []domain.ExtractedField) map[string]any {
	root := make(map[string]any)
	rows := make(map[string][]map[string]any)
	var groups []string

	for _, f := range fields {
		if f.RawValue == "" || f.HasReason(domain.ReviewExtractionFailed) {
			continue
		}
		if f.RowIndex == nil {
			setPath(root, strings.Split(f.Name, "."), f.RawValue)
			continue
		}
		group, seen := rows[f.Group]
		if !seen {
			groups = append(groups, f.Group)
		}
		for len(group) <= *f.RowIndex {
			group = append(group, make(map[string]any))
		}
		setPath(group[*f.RowIndex], strings.Split(f.Key, "."), f.RawValue)
		rows[f.Group] = group
	}

	for _, name := range groups {
		items := make([]any, len(rows[name]))
		for i, r := range rows[name] {
			items[i] = r
		}
		root[name] = items
	}
	return root
}

func setPath(m map[string]any, keys []string, v string) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			if _, taken := m[k]; taken {
				return
			}
			next = make(map[string]any)
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}
