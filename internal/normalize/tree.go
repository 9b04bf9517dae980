package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"ledgerscan/internal/domain"
)

// PathFailure records a leaf that could not be normalized.
type PathFailure struct {
	Path    string
	Outcome Outcome
}

// Prime walks node and feeds every date and currency leaf into ctx so that
// the document's date order and currency are known before any value is
// normalized.
func Prime(node any, ctx *Context) {
	walkLeaves(node, "", "", func(path, key string, raw string) {
		switch InferSemanticType(key) {
		case domain.SemanticDate:
			ctx.ObserveDate(raw)
		case domain.SemanticCurrency:
			if out := Currency(raw); out.OK {
				ctx.SetCurrency(out.Value)
			}
		case domain.SemanticAmount:
			ctx.ObserveCurrency(raw)
		}
	})
}

// Tree normalizes every leaf of an arbitrarily nested structure made of
// map[string]any and []any, as produced by encoding/json. The semantic type
// of a leaf is inferred from the nearest map key. Objects of the form
// {"value": ..., "confidence": ...} are treated as a single leaf named after
// their key. The returned tree has the same shape as node; leaves that fail
// keep their raw value and are reported in the failure list.
func Tree(node any, ctx *Context) (any, []PathFailure) {
	Prime(node, ctx)
	var failures []PathFailure
	out := normalizeNode(node, "", "", ctx, &failures)
	return out, failures
}

func normalizeNode(node any, path, key string, ctx *Context, failures *[]PathFailure) any {
	switch v := node.(type) {
	case map[string]any:
		if raw, ok := v["value"]; ok && isLeaf(raw) {
			cp := make(map[string]any, len(v))
			for k, val := range v {
				cp[k] = val
			}
			cp["value"] = normalizeLeaf(raw, path, key, ctx, failures)
			return cp
		}
		cp := make(map[string]any, len(v))
		for _, k := range sortedKeys(v) {
			cp[k] = normalizeNode(v[k], joinPath(path, k), k, ctx, failures)
		}
		return cp
	case []any:
		cp := make([]any, len(v))
		for i, val := range v {
			cp[i] = normalizeNode(val, fmt.Sprintf("%s[%d]", path, i), key, ctx, failures)
		}
		return cp
	default:
		return normalizeLeaf(v, path, key, ctx, failures)
	}
}

func normalizeLeaf(raw any, path, key string, ctx *Context, failures *[]PathFailure) any {
	s, ok := LeafString(raw)
	if !ok {
		return raw
	}
	t := InferSemanticType(key)
	if t == domain.SemanticText {
		return raw
	}
	out := Field(s, t, ctx)
	if !out.OK {
		*failures = append(*failures, PathFailure{Path: path, Outcome: out})
		return raw
	}
	return out.Value
}

// MaskTree returns a copy of node with every PII leaf masked. Used for raw
// payloads that are persisted alongside normalized values.
func MaskTree(node any, ctx *Context) any {
	switch v := node.(type) {
	case map[string]any:
		cp := make(map[string]any, len(v))
		for k, val := range v {
			if IsPIIField(k) {
				if s, ok := LeafString(val); ok && s != "" {
					cp[k] = Mask(s, ctx).Value
					continue
				}
				if m, ok := val.(map[string]any); ok {
					if s, ok := LeafString(m["value"]); ok && s != "" {
						inner := make(map[string]any, len(m))
						for ik, iv := range m {
							inner[ik] = iv
						}
						inner["value"] = Mask(s, ctx).Value
						cp[k] = inner
						continue
					}
				}
			}
			cp[k] = MaskTree(val, ctx)
		}
		return cp
	case []any:
		cp := make([]any, len(v))
		for i, val := range v {
			cp[i] = MaskTree(val, ctx)
		}
		return cp
	default:
		return node
	}
}

func walkLeaves(node any, path, key string, fn func(path, key, raw string)) {
	switch v := node.(type) {
	case map[string]any:
		if raw, ok := v["value"]; ok && isLeaf(raw) {
			if s, ok := LeafString(raw); ok {
				fn(path, key, s)
			}
			return
		}
		for _, k := range sortedKeys(v) {
			walkLeaves(v[k], joinPath(path, k), k, fn)
		}
	case []any:
		for i, val := range v {
			walkLeaves(val, fmt.Sprintf("%s[%d]", path, i), key, fn)
		}
	default:
		if s, ok := LeafString(v); ok {
			fn(path, key, s)
		}
	}
}

func isLeaf(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return false
	default:
		return true
	}
}

// LeafString renders a scalar JSON value as a string.
func LeafString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return "", false
	}
}

// sortedKeys keeps traversal, and therefore the evidence order fed into a
// Context, deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
