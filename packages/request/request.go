package request

// BodyMode selects how Descriptor.BodyText is interpreted when the request is
// dispatched.
type BodyMode string

const (
	BodyNone      BodyMode = "none"
	BodyJSON      BodyMode = "json"
	BodyForm      BodyMode = "form-urlencoded"
	BodyMultipart BodyMode = "multipart"
	BodyRaw       BodyMode = "raw"
)

// Valid reports whether m is one of the recognized body modes.
func (m BodyMode) Valid() bool {
	switch m {
	case BodyNone, BodyJSON, BodyForm, BodyMultipart, BodyRaw:
		return true
	}
	return false
}

const (
	// MinTimeoutSeconds and MaxTimeoutSeconds bound the per-request timeout.
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 120
	// DefaultTimeoutSeconds is used when no timeout was given.
	DefaultTimeoutSeconds = 20
)

// ClampTimeout forces a timeout in seconds into the allowed range.
func ClampTimeout(seconds int) int {
	if seconds < MinTimeoutSeconds {
		return MinTimeoutSeconds
	}
	if seconds > MaxTimeoutSeconds {
		return MaxTimeoutSeconds
	}
	return seconds
}

// Pair is one query-string key/value pair. Order and duplicates are
// significant, so query strings are carried as slices rather than maps.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Descriptor is the normalized, user-editable representation of one HTTP call.
type Descriptor struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	QueryPairs      []Pair            `json:"query_pairs"`
	Headers         map[string]string `json:"headers"`
	Cookies         string            `json:"cookies"`
	AuthUser        string            `json:"auth_user"`
	Proxy           string            `json:"proxy"`
	FollowRedirects bool              `json:"follow_redirects"`
	Insecure        bool              `json:"insecure"`
	Timeout         int               `json:"timeout"`
	BodyMode        BodyMode          `json:"body_mode"`
	BodyText        string            `json:"body_text"`
}

// Record is the outcome of one dispatch. Raw response bytes are never carried
// here; they live in the response cache and are referenced by DownloadID.
type Record struct {
	Ok          bool   `json:"ok"`
	StatusCode  int    `json:"status_code"`
	Reason      string `json:"reason"`
	FinalURL    string `json:"final_url"`
	ElapsedMS   int64  `json:"elapsed_ms"`
	BodyLen     int64  `json:"body_len"`
	ContentType string `json:"content_type"`
	HeadersText string `json:"headers_text"`
	BodyText    string `json:"body_text"`
	Truncated   bool   `json:"truncated"`
	DownloadID  string `json:"download_id,omitempty"`
}
