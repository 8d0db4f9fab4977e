package dispatch

import (
	"mime"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// previewText renders a best-effort text preview of raw response bytes. The
// declared charset is honored when the payload decodes; anything else falls
// back to UTF-8 with replacement characters. JSON payloads that parse are
// pretty-printed.
func previewText(raw []byte, contentTypeHeader string) string {
	if strings.Contains(strings.ToLower(contentTypeHeader), "application/json") && gjson.ValidBytes(raw) {
		return string(pretty.Pretty(raw))
	}

	if text, ok := decodeCharset(raw, charsetOf(contentTypeHeader)); ok {
		return text
	}
	return strings.ToValidUTF8(string(raw), "�")
}

func charsetOf(header string) string {
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func decodeCharset(raw []byte, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		return "", false
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", false
	}
	return strings.ToValidUTF8(string(out), "�"), true
}
