package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/p4cket/reqpad/packages/dispatch"
	"github.com/p4cket/reqpad/packages/history"
	"github.com/p4cket/reqpad/packages/request"
)

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			writeJSONError(w, http.StatusBadRequest, "malformed form: "+err.Error())
			return
		}
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed form: "+err.Error())
			return
		}
	}

	desc := descriptorFromForm(r)
	files, closeFiles, err := uploadsFromForm(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "bad upload: "+err.Error())
		return
	}
	defer closeFiles()

	rec, err := s.dispatcher.Dispatch(r.Context(), desc, files)
	s.recordHistory(r, desc, rec, err)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	raw, contentType, ok := s.cache.Get(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "download expired or not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "response_"+id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// descriptorFromForm maps the editor form fields onto a Descriptor. Missing
// fields fall back to the same defaults the curl importer produces.
func descriptorFromForm(r *http.Request) *request.Descriptor {
	timeout := request.DefaultTimeoutSeconds
	if v := strings.TrimSpace(r.FormValue("timeout")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			timeout = int(f)
		}
	}

	method := strings.ToUpper(strings.TrimSpace(r.FormValue("method")))
	if method == "" {
		method = http.MethodGet
	}
	mode := request.BodyMode(strings.TrimSpace(r.FormValue("body_mode")))
	if mode == "" {
		mode = request.BodyNone
	}

	return &request.Descriptor{
		Method:          method,
		URL:             strings.TrimSpace(r.FormValue("url")),
		QueryPairs:      request.ParseKVText(r.FormValue("query_params")),
		Headers:         request.ParseHeaderText(r.FormValue("headers")),
		Cookies:         strings.TrimSpace(r.FormValue("cookies")),
		AuthUser:        strings.TrimSpace(r.FormValue("auth_user")),
		Proxy:           strings.TrimSpace(r.FormValue("proxy")),
		FollowRedirects: parseBool(r.FormValue("allow_redirects"), true),
		Insecure:        !parseBool(r.FormValue("verify_ssl"), true),
		Timeout:         request.ClampTimeout(timeout),
		BodyMode:        mode,
		BodyText:        r.FormValue("body_text"),
	}
}

// uploadsFromForm collects multipart file parts keyed by form field. The
// returned closer releases every opened part.
func uploadsFromForm(r *http.Request) (dispatch.FileProvider, func(), error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File) == 0 {
		return dispatch.NoFiles, func() {}, nil
	}

	files := dispatch.UploadMap{}
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 || headers[0].Filename == "" {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, f)
		files[field] = &dispatch.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Reader:      f,
		}
	}
	return files, closeAll, nil
}

func (s *server) recordHistory(r *http.Request, desc *request.Descriptor, rec *request.Record, derr error) {
	if s.hist == nil {
		return
	}
	entry := history.Entry{
		Method: desc.Method,
		URL:    desc.URL,
	}
	if rec != nil {
		entry.StatusCode = rec.StatusCode
		entry.Ok = rec.Ok
		entry.ElapsedMS = rec.ElapsedMS
	}
	if derr != nil {
		entry.Error = derr.Error()
	}
	if err := s.hist.Record(r.Context(), entry); err != nil {
		slog.Warn("history record failed", "error", err)
	}
}

func statusForError(err error) int {
	var derr *dispatch.Error
	if errors.As(err, &derr) {
		switch derr.Code {
		case dispatch.CodeValidation, dispatch.CodeBody:
			return http.StatusBadRequest
		case dispatch.CodeTransport:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func parseBool(v string, fallback bool) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("response encode failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
