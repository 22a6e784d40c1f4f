// Package server exposes rename checks and the record cache over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rename-cli/internal/model"
	"github.com/sells-group/rename-cli/internal/pipeline"
)

// Checker runs a batch of companies. *pipeline.Pipeline implements it.
type Checker interface {
	Batch(ctx context.Context, names []string) ([]pipeline.Outcome, pipeline.Summary)
}

// Records reads and invalidates cached records. *cache.Owner implements it.
type Records interface {
	Get(ctx context.Context, key string) (*model.CompanyRecord, error)
	Delete(ctx context.Context, key string) error
}

// Options configure the HTTP API.
type Options struct {
	AllowedOrigins []string
	// MaxNames caps the names accepted by one check request.
	MaxNames       int
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if o.MaxNames <= 0 {
		o.MaxNames = 100
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Minute
	}
	return o
}

// Server serves the HTTP API.
type Server struct {
	check   Checker
	records Records
	key     func(name string) string
	opts    Options
}

// New creates a Server. key maps a company name to its cache key, normally
// normalize.Normalizer.Normalize.
func New(check Checker, records Records, key func(string) string, opts Options) *Server {
	return &Server{check: check, records: records, key: key, opts: opts.withDefaults()}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/records/{name}", s.getRecord)
		r.Delete("/records/{name}", s.deleteRecord)
		r.With(middleware.Timeout(s.opts.RequestTimeout)).Post("/check", s.checkNames)
	})
	return r
}

func (s *Server) recordKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company name")
		return "", false
	}
	key := s.key(name)
	if key == "" {
		writeError(w, http.StatusBadRequest, "company name is empty after normalization")
		return "", false
	}
	return key, true
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordKey(w, r)
	if !ok {
		return
	}
	rec, err := s.records.Get(r.Context(), key)
	if err != nil {
		zap.L().Error("server: get record", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no record for "+key)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Key: key, Record: *rec})
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordKey(w, r)
	if !ok {
		return
	}
	if err := s.records.Delete(r.Context(), key); err != nil {
		zap.L().Error("server: delete record", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkRequest struct {
	Names []string `json:"names"`
}

type checkResult struct {
	Query    model.CompanyQuery  `json:"query"`
	Record   model.CompanyRecord `json:"record"`
	State    pipeline.State      `json:"state"`
	CacheHit bool                `json:"cache_hit"`
	Error    string              `json:"error,omitempty"`
}

type checkResponse struct {
	Summary pipeline.Summary `json:"summary"`
	Results []checkResult    `json:"results"`
}

type recordResponse struct {
	Key    string              `json:"key"`
	Record model.CompanyRecord `json:"record"`
}

func (s *Server) checkNames(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Names) == 0 {
		writeError(w, http.StatusBadRequest, "names is required")
		return
	}
	if len(req.Names) > s.opts.MaxNames {
		writeError(w, http.StatusRequestEntityTooLarge, "too many names")
		return
	}

	outcomes, sum := s.check.Batch(r.Context(), req.Names)
	resp := checkResponse{Summary: sum, Results: make([]checkResult, len(outcomes))}
	for i, o := range outcomes {
		resp.Results[i] = checkResult{Query: o.Query, Record: o.Record, State: o.State, CacheHit: o.CacheHit}
		if o.Err != nil {
			resp.Results[i].Error = o.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}
