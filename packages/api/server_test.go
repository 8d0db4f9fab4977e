package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p4cket/reqpad/packages/dispatch"
	"github.com/p4cket/reqpad/packages/respcache"
)

// openValidator admits every URL so tests can reach httptest backends.
type openValidator struct{}

func (openValidator) Validate(ctx context.Context, rawURL string) error { return nil }

// closedValidator rejects everything, standing in for the egress guard.
type closedValidator struct{}

func (closedValidator) Validate(ctx context.Context, rawURL string) error {
	return errors.New("access to private or reserved IP ranges is blocked")
}

func newTestServer(t *testing.T, v dispatch.Validator, opts Options) (http.Handler, *respcache.Cache) {
	t.Helper()
	cache := respcache.New()
	d := dispatch.New(v, cache)
	return NewServer(d, cache, opts), cache
}

func TestHealth(t *testing.T) {
	handler, _ := newTestServer(t, openValidator{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestParseCurl(t *testing.T) {
	handler, _ := newTestServer(t, openValidator{}, Options{})

	body := `{"curl": "curl -X POST -H 'Accept: application/json' -d '{\"a\":1}' https://api.example.com/items?page=2"}`
	req := httptest.NewRequest("POST", "/api/v1/parse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Method     string            `json:"method"`
		URL        string            `json:"url"`
		Headers    map[string]string `json:"headers"`
		BodyMode   string            `json:"body_mode"`
		QueryPairs []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"query_pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "POST", out.Method)
	assert.Equal(t, "https://api.example.com/items", out.URL)
	assert.Equal(t, "application/json", out.Headers["Accept"])
	assert.Equal(t, "json", out.BodyMode)
	require.Len(t, out.QueryPairs, 1)
	assert.Equal(t, "page", out.QueryPairs[0].Key)
}

func TestParseCurl_BadInput(t *testing.T) {
	handler, _ := newTestServer(t, openValidator{}, Options{})

	req := httptest.NewRequest("POST", "/api/v1/parse", strings.NewReader(`{"curl": "echo hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no curl command")
}

func TestSend_FormEncoded(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		b, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(b), "a=1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":true}`))
	}))
	defer backend.Close()

	handler, _ := newTestServer(t, openValidator{}, Options{})

	form := url.Values{}
	form.Set("method", "POST")
	form.Set("url", backend.URL)
	form.Set("body_mode", "form-urlencoded")
	form.Set("body_text", "a=1")

	req := httptest.NewRequest("POST", "/api/v1/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Ok         bool   `json:"ok"`
		StatusCode int    `json:"status_code"`
		BodyText   string `json:"body_text"`
		DownloadID string `json:"download_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.Ok)
	assert.Equal(t, 200, out.StatusCode)
	assert.Contains(t, out.BodyText, "created")
	assert.NotEmpty(t, out.DownloadID)
}

func TestSend_BlockedTarget(t *testing.T) {
	handler, _ := newTestServer(t, closedValidator{}, Options{})

	form := url.Values{}
	form.Set("url", "http://169.254.169.254/latest/meta-data/")

	req := httptest.NewRequest("POST", "/api/v1/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "blocked")
}

func TestSend_MultipartUpload(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, fh, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "notes.txt", fh.Filename)
		content, _ := io.ReadAll(f)
		assert.Equal(t, "attached", string(content))
	}))
	defer backend.Close()

	handler, _ := newTestServer(t, openValidator{}, Options{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("method", "POST"))
	require.NoError(t, w.WriteField("url", backend.URL))
	require.NoError(t, w.WriteField("body_mode", "multipart"))
	require.NoError(t, w.WriteField("body_text", "file=@notes.txt"))
	part, err := w.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("attached"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/send", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSend_RateLimited(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	handler, _ := newTestServer(t, openValidator{}, Options{SendRPS: 0.001})

	send := func() int {
		form := url.Values{}
		form.Set("url", backend.URL)
		req := httptest.NewRequest("POST", "/api/v1/send", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestDownload(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer backend.Close()

	handler, _ := newTestServer(t, openValidator{}, Options{})

	form := url.Values{}
	form.Set("url", backend.URL)
	req := httptest.NewRequest("POST", "/api/v1/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		DownloadID string `json:"download_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.NotEmpty(t, out.DownloadID)

	dl := httptest.NewRecorder()
	handler.ServeHTTP(dl, httptest.NewRequest("GET", "/api/v1/download/"+out.DownloadID, nil))

	assert.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "application/pdf", dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "%PDF-1.7 fake", dl.Body.String())
}

func TestDownload_Miss(t *testing.T) {
	handler, _ := newTestServer(t, openValidator{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/download/does-not-exist", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired or not found")
}

func TestStats(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer backend.Close()

	handler, _ := newTestServer(t, openValidator{}, Options{})

	form := url.Values{}
	form.Set("url", backend.URL)
	req := httptest.NewRequest("POST", "/api/v1/send", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Dispatch struct {
			Total   int64 `json:"total"`
			Success int64 `json:"success"`
		} `json:"dispatch"`
		CacheEntries int `json:"cache_entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, int64(1), out.Dispatch.Total)
	assert.Equal(t, int64(1), out.Dispatch.Success)
	assert.Equal(t, 1, out.CacheEntries)
}
