package docpipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/speakdown/kit"
	"github.com/hazyhaar/speakdown/shield"
)

// Routes returns the HTTP API:
//
//	POST   /v1/ssml         convert a document (JSON Request body)
//	POST   /v1/validate     validate SSML ({"ssml", "platform"})
//	POST   /v1/detect       detect format and document type
//	GET    /v1/cache/stats  cache statistics
//	POST   /v1/cache/cleanup
//	DELETE /v1/cache        clear the cache
//	GET    /v1/runs?limit=N recent conversions
//	DELETE /v1/runs?older_than=D
//	GET    /metrics         Prometheus metrics
//	GET    /health
func (p *Pipeline) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	for _, mw := range shield.Stack(shield.Config{
		MaxBodyBytes:  int64(p.cfg.HTTP.MaxBodyMB) << 20,
		RatePerMinute: p.cfg.HTTP.RatePerMinute,
		Exclude:       []string{"/health", "/metrics"},
	}) {
		r.Use(mw)
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := kit.WithRequestID(req.Context(), middleware.GetReqID(req.Context()))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", p.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ssml", kit.HTTPHandler(
			p.endpoint("convert", func(ctx context.Context, req any) (any, error) {
				return p.Convert(ctx, *req.(*Request))
			}),
			decodeBody[Request], statusFor))
		r.Post("/validate", kit.HTTPHandler(
			p.endpoint("validate", func(_ context.Context, req any) (any, error) {
				v := req.(*validateReq)
				return p.Validate(v.SSML, v.Platform)
			}),
			decodeBody[validateReq], statusFor))
		r.Post("/detect", kit.HTTPHandler(
			p.endpoint("detect", func(_ context.Context, req any) (any, error) {
				d := req.(*detectReq)
				return p.Detect(d.Content, d.Filename)
			}),
			decodeBody[detectReq], statusFor))

		r.Get("/cache/stats", func(w http.ResponseWriter, _ *http.Request) {
			kit.WriteJSON(w, http.StatusOK, p.CacheStats())
		})
		r.Post("/cache/cleanup", func(w http.ResponseWriter, _ *http.Request) {
			kit.WriteJSON(w, http.StatusOK, map[string]int{"removed": p.CleanupCache()})
		})
		r.Delete("/cache", func(w http.ResponseWriter, _ *http.Request) {
			kit.WriteJSON(w, http.StatusOK, map[string]int{"removed": p.ClearCache()})
		})
		r.Get("/runs", p.handleRuns)
		r.Delete("/runs", p.handlePruneRuns)
	})
	return r
}

func (p *Pipeline) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			kit.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	runs, err := p.Recent(r.Context(), limit)
	if err != nil {
		kit.WriteError(w, statusFor(err), err.Error())
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (p *Pipeline) handlePruneRuns(w http.ResponseWriter, r *http.Request) {
	retention, err := time.ParseDuration(r.URL.Query().Get("older_than"))
	if err != nil || retention <= 0 {
		kit.WriteError(w, http.StatusBadRequest, "older_than must be a positive duration such as 720h")
		return
	}
	n, err := p.PruneRuns(r.Context(), retention)
	if err != nil {
		kit.WriteError(w, statusFor(err), err.Error())
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func decodeBody[T any](r *http.Request) (any, error) {
	var v T
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return &v, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrJournalDisabled):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrInvalidEncoding),
		errors.Is(err, ErrUnknownPlatform), errors.Is(err, ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
