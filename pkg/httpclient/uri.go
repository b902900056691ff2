package httpclient

import (
	"net/url"
	"strings"
)

// Params maps query parameter names to values. Empty values are dropped, so
// an explicit empty filter cannot be told apart from no filter.
type Params map[string]string

// ComputeURI joins path segments and appends the non-empty params, sorted by
// name. Slashes inside a segment are kept so that path-like key names map to
// path-like URIs.
func ComputeURI(segments []string, params Params) string {
	var b strings.Builder
	for _, segment := range segments {
		segment = strings.TrimPrefix(segment, "/")
		b.WriteByte('/')
		b.WriteString(escapePath(segment))
	}
	if b.Len() == 0 {
		b.WriteByte('/')
	}

	query := url.Values{}
	for name, value := range params {
		if value == "" {
			continue
		}
		query.Set(name, value)
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}

	return b.String()
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
