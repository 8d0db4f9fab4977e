// Package api exposes the reqpad operations over HTTP: importing a captured
// curl command, dispatching an edited request, and downloading the raw
// response bytes by cache identifier.
package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/p4cket/reqpad/packages/curl"
	"github.com/p4cket/reqpad/packages/dispatch"
	"github.com/p4cket/reqpad/packages/history"
	"github.com/p4cket/reqpad/packages/request"
	"github.com/p4cket/reqpad/packages/respcache"
)

const defaultMaxUploadBytes = 50 << 20

// Options tune the API surface.
type Options struct {
	// History enables the dispatch log endpoints when non-nil.
	History *history.Log
	// SendRPS rate-limits the send endpoint. Zero disables limiting.
	SendRPS float64
	// MaxUploadBytes bounds the incoming multipart payload.
	MaxUploadBytes int64
}

type server struct {
	dispatcher *dispatch.Dispatcher
	cache      *respcache.Cache
	hist       *history.Log
	limiter    *rate.Limiter
	maxUpload  int64
}

// NewServer wires the core services into an http.Handler.
func NewServer(d *dispatch.Dispatcher, cache *respcache.Cache, opts Options) http.Handler {
	s := &server{
		dispatcher: d,
		cache:      cache,
		hist:       opts.History,
		maxUpload:  opts.MaxUploadBytes,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUploadBytes
	}
	if opts.SendRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.SendRPS), 1)
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("reqpad API", "1.0.0")
	api := humachi.New(router, cfg)

	registerParse(api)
	registerHealth(api)
	s.registerStats(api)
	if s.hist != nil {
		s.registerHistory(api)
	}

	// The send and download operations speak multipart forms and raw bytes,
	// so they are plain chi handlers next to the huma operations.
	router.Post("/api/v1/send", s.handleSend)
	router.Get("/api/v1/download/{id}", s.handleDownload)

	return router
}

func registerParse(api huma.API) {
	type parseCurlOutput struct {
		Body request.Descriptor
	}
	huma.Register(api, huma.Operation{
		OperationID: "parse-curl",
		Method:      http.MethodPost,
		Path:        "/api/v1/parse",
		Summary:     "Parse a captured curl command into a request descriptor",
		Tags:        []string{"Import"},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Curl string `json:"curl" doc:"Captured curl command text, e.g. DevTools Copy as cURL (bash)"`
		}
	}) (*parseCurlOutput, error) {
		desc, err := curl.Parse(input.Body.Curl)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		out := &parseCurlOutput{}
		out.Body = *desc
		if out.Body.QueryPairs == nil {
			out.Body.QueryPairs = []request.Pair{}
		}
		return out, nil
	})
}

func registerHealth(api huma.API) {
	type healthOutput struct {
		Body struct {
			Status string `json:"status"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

func (s *server) registerStats(api huma.API) {
	type statsOutput struct {
		Body struct {
			Dispatch     dispatch.StatsSnapshot `json:"dispatch"`
			CacheEntries int                    `json:"cache_entries"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Dispatch counters and latency percentiles",
		Tags:        []string{"Stats"},
	}, func(ctx context.Context, input *struct{}) (*statsOutput, error) {
		out := &statsOutput{}
		out.Body.Dispatch = s.dispatcher.Stats().Snapshot()
		out.Body.CacheEntries = s.cache.Len()
		return out, nil
	})
}

func (s *server) registerHistory(api huma.API) {
	type historyOutput struct {
		Body struct {
			Entries []history.Entry `json:"entries"`
		}
	}
	huma.Register(api, huma.Operation{
		OperationID: "history",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "Recently dispatched requests",
		Tags:        []string{"History"},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" doc:"Maximum number of entries to return"`
	}) (*historyOutput, error) {
		entries, err := s.hist.Recent(ctx, input.Limit)
		if err != nil {
			return nil, huma.Error500InternalServerError(err.Error())
		}
		out := &historyOutput{}
		out.Body.Entries = entries
		if out.Body.Entries == nil {
			out.Body.Entries = []history.Entry{}
		}
		return out, nil
	})
}
