package dispatch

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/p4cket/reqpad/packages/request"
	"github.com/p4cket/reqpad/packages/respcache"
)

// Validator screens outbound URLs. Both the pre-dispatch target and, when
// redirects were followed, the final landing URL pass through it.
type Validator interface {
	Validate(ctx context.Context, rawURL string) error
}

const (
	// DefaultPreviewCap is the hard limit on response bytes read into memory.
	DefaultPreviewCap = 2 << 20 // 2 MiB

	readChunkSize = 64 * 1024
	maxRedirects  = 10
)

// Dispatcher executes request descriptors. It is stateless per call except
// for the shared response cache and metrics, so dispatches may run
// concurrently.
type Dispatcher struct {
	guard      Validator
	cache      *respcache.Cache
	previewCap int64
	stats      *Stats
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPreviewCap overrides the response byte cap.
func WithPreviewCap(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.previewCap = n
		}
	}
}

// New builds a Dispatcher around an SSRF guard and a response cache.
func New(g Validator, cache *respcache.Cache, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		guard:      g,
		cache:      cache,
		previewCap: DefaultPreviewCap,
		stats:      newStats(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats exposes dispatch metrics.
func (d *Dispatcher) Stats() *Stats { return d.stats }

// Dispatch validates, builds, and executes one HTTP call. Raw response bytes
// go to the response cache; the returned record references them by
// DownloadID only. No retries happen on any failure.
func (d *Dispatcher) Dispatch(ctx context.Context, desc *request.Descriptor, files FileProvider) (rec *request.Record, err error) {
	start := time.Now()
	defer func() {
		d.stats.record(time.Since(start), err)
	}()
	if files == nil {
		files = NoFiles
	}

	// The configured timeout bounds the whole dispatch, including DNS
	// lookups inside the guard, not just the HTTP call.
	ctx, cancel := context.WithTimeout(ctx, time.Duration(request.ClampTimeout(desc.Timeout))*time.Second)
	defer cancel()

	if gerr := d.guard.Validate(ctx, desc.URL); gerr != nil {
		return nil, newError(CodeValidation, gerr.Error(), gerr)
	}

	target, err := request.MergeQuery(desc.URL, desc.QueryPairs)
	if err != nil {
		return nil, newError(CodeValidation, "invalid URL", err)
	}

	headers := make(map[string]string, len(desc.Headers)+1)
	for k, v := range desc.Headers {
		headers[k] = v
	}
	if cookies := strings.TrimSpace(desc.Cookies); cookies != "" {
		if _, exists := headers["Cookie"]; !exists {
			headers["Cookie"] = cookies
		}
	}

	body, contentType, forceContentType, err := buildBody(desc, files)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(desc.Method))
	if method == "" {
		method = http.MethodGet
	}

	client, err := newClient(desc)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, newError(CodeValidation, "building request", err)
	}

	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" {
		if forceContentType {
			// Multipart boundary must win over any explicit header.
			httpReq.Header.Set("Content-Type", contentType)
		} else if httpReq.Header.Get("Content-Type") == "" {
			httpReq.Header.Set("Content-Type", contentType)
		}
	}

	if user, pass, found := strings.Cut(strings.TrimSpace(desc.AuthUser), ":"); found && user != "" {
		httpReq.SetBasicAuth(user, pass)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, newError(CodeTransport, "request failed", err)
	}
	defer httpResp.Body.Close()

	finalURL := httpResp.Request.URL.String()
	if desc.FollowRedirects {
		// A redirect chain must not pivot to an internal address. On
		// failure the response is discarded, not returned.
		if gerr := d.guard.Validate(ctx, finalURL); gerr != nil {
			return nil, newError(CodeValidation, "final redirect target blocked: "+gerr.Error(), gerr)
		}
	}

	raw, truncated, err := readCapped(httpResp.Body, d.previewCap)
	if err != nil {
		return nil, newError(CodeTransport, "reading response body", err)
	}

	contentTypeHeader := httpResp.Header.Get("Content-Type")

	bodyLen := int64(len(raw))
	if httpResp.ContentLength >= 0 {
		bodyLen = httpResp.ContentLength
	}

	record := &request.Record{
		Ok:          httpResp.StatusCode < 400,
		StatusCode:  httpResp.StatusCode,
		Reason:      reasonPhrase(httpResp),
		FinalURL:    finalURL,
		ElapsedMS:   time.Since(start).Milliseconds(),
		BodyLen:     bodyLen,
		ContentType: primaryMIME(contentTypeHeader),
		HeadersText: renderHeaders(httpResp.Header),
		BodyText:    previewText(raw, contentTypeHeader),
		Truncated:   truncated,
	}
	record.DownloadID = d.cache.Put(raw, record.ContentType)

	return record, nil
}

func newClient(desc *request.Descriptor) (*http.Client, error) {
	transport := &http.Transport{
		ForceAttemptHTTP2: true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: desc.Insecure,
		},
	}
	if proxy := strings.TrimSpace(desc.Proxy); proxy != "" {
		proxyURL, err := neturl.Parse(proxy)
		if err != nil {
			return nil, newError(CodeValidation, "invalid proxy URL", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !desc.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	return &http.Client{
		Transport:     transport,
		Timeout:       time.Duration(request.ClampTimeout(desc.Timeout)) * time.Second,
		CheckRedirect: redirectPolicy,
	}, nil
}

// readCapped reads up to cap bytes in chunks. Hitting the cap is not an
// error; the partial body is returned with truncated set. The cap may be
// exceeded by at most one chunk.
func readCapped(r io.Reader, limit int64) ([]byte, bool, error) {
	buf := make([]byte, readChunkSize)
	var out []byte
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			if int64(len(out)) >= limit {
				return out, true, nil
			}
		}
		if rerr == io.EOF {
			return out, false, nil
		}
		if rerr != nil {
			return out, false, rerr
		}
	}
}

// primaryMIME strips parameters from a Content-Type header, keeping only the
// primary token.
func primaryMIME(header string) string {
	primary, _, _ := strings.Cut(header, ";")
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return "application/octet-stream"
	}
	return primary
}

// renderHeaders formats response headers one per line, sorted by name for
// stable output. Repeated headers collapse onto one line.
func renderHeaders(h http.Header) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, name+": "+strings.Join(h[name], ", "))
	}
	return strings.Join(lines, "\n")
}

func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
