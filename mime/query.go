package mime

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Stringify encodes m as a query string. Nested maps use bracket keys
// (a[b]=c), slices repeat the key, and keys are emitted in sorted order.
func Stringify(m map[string]any) string {
	var pairs []string
	appendPairs(&pairs, "", m)
	return strings.Join(pairs, "&")
}

func appendPairs(pairs *[]string, key string, v any) {
	switch v := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(v) {
			sub := k
			if key != "" {
				sub = key + "[" + k + "]"
			}
			appendPairs(pairs, sub, v[k])
		}
	case []any:
		for _, e := range v {
			appendPairs(pairs, key, e)
		}
	case []string:
		for _, e := range v {
			appendPairs(pairs, key, e)
		}
	case nil:
		*pairs = append(*pairs, url.QueryEscape(key)+"=")
	default:
		*pairs = append(*pairs, url.QueryEscape(key)+"="+url.QueryEscape(fmt.Sprint(v)))
	}
}

// Parse decodes a query string. A leading "?" is ignored. Keys seen once map
// to a string, repeated keys map to a []string, and bracket keys build nested
// maps.
func Parse(s string) (map[string]any, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(s, "?"))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(values))
	for _, k := range keys {
		vs := values[k]
		var leaf any = vs[0]
		if len(vs) > 1 {
			leaf = append([]string(nil), vs...)
		}
		assign(out, splitKey(k), leaf)
	}
	return out, nil
}

// Merge deep-merges src into dst and returns dst. Values from src win on
// conflict unless both sides hold maps, in which case they are merged.
// A nil dst is allocated.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		sm, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		dm, _ := dst[k].(map[string]any)
		dst[k] = Merge(dm, sm)
	}
	return dst
}

func splitKey(key string) []string {
	i := strings.IndexByte(key, '[')
	if i <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}
	parts := []string{key[:i]}
	rest := key[i:]
	for rest != "" {
		j := strings.IndexByte(rest, ']')
		if rest[0] != '[' || j < 0 {
			return []string{key}
		}
		parts = append(parts, rest[1:j])
		rest = rest[j+1:]
	}
	return parts
}

func assign(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
