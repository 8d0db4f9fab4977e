package request

import (
	"net/url"
	"strings"
)

// ParseKVText parses newline-separated key=value lines into ordered pairs.
// Blank lines and lines starting with # are skipped. A line without = becomes
// a key with an empty value.
func ParseKVText(text string) []Pair {
	var out []Pair
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, found := strings.Cut(line, "="); found {
			out = append(out, Pair{Key: strings.TrimSpace(k), Value: strings.TrimSpace(v)})
		} else {
			out = append(out, Pair{Key: line})
		}
	}
	return out
}

// ParseHeaderText parses newline-separated "Name: value" lines into a header
// map. Names keep their casing; the last line for a given name wins. Lines
// without a colon are skipped.
func ParseHeaderText(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

// ParseQueryPairs decodes a raw query string into ordered pairs, keeping blank
// values. Malformed percent-escapes are kept verbatim rather than dropped.
func ParseQueryPairs(rawQuery string) []Pair {
	var out []Pair
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		out = append(out, Pair{Key: unescape(k), Value: unescape(v)})
	}
	return out
}

func unescape(s string) string {
	u, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return u
}

// EncodeQueryPairs renders pairs back into a query string, preserving order.
func EncodeQueryPairs(pairs []Pair) string {
	var sb strings.Builder
	for i, p := range pairs {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(p.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p.Value))
	}
	return sb.String()
}

// SplitURLQuery strips the query string from rawURL and returns the bare URL
// plus the decoded pairs, so existing pairs compose with pairs added later.
func SplitURLQuery(rawURL string) (string, []Pair, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", nil, err
	}
	pairs := ParseQueryPairs(u.RawQuery)
	u.RawQuery = ""
	return u.String(), pairs, nil
}

// MergeQuery appends extra pairs to the URL's existing query string. Original
// pairs come first, then the extras, re-encoded as needed.
func MergeQuery(rawURL string, extra []Pair) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	pairs := ParseQueryPairs(u.RawQuery)
	pairs = append(pairs, extra...)
	u.RawQuery = EncodeQueryPairs(pairs)
	return u.String(), nil
}
