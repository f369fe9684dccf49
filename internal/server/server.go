// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"testops/internal/complexity"
	"testops/internal/generator"
	"testops/internal/logging"
	"testops/internal/pipeline"
	"testops/internal/store"
	"testops/internal/validator"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"
)

// History is the read side of the run store.
type History interface {
	Get(ctx context.Context, id string) (*store.Run, error)
	Recent(ctx context.Context, limit int) ([]*store.Run, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Options configures the listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	MaxConns     int // concurrent connections, zero means unlimited
}

// Server serves the testops HTTP API.
type Server struct {
	opts    Options
	pipe    *pipeline.Pipeline
	history History
	handler http.Handler
}

// New creates a Server. history may be nil, in which case /history is not routed.
func New(opts Options, pipe *pipeline.Pipeline, history History) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	s := &Server{opts: opts, pipe: pipe, history: history}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /generate-test", s.handleGenerate)
	mux.HandleFunc("POST /validate", s.handleValidate)
	if history != nil {
		mux.HandleFunc("GET /history", s.handleHistory)
		mux.HandleFunc("GET /history/{id}", s.handleRun)
	}
	s.handler = withRequestID(mux)
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.opts.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.opts.MaxConns)
	}
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		logging.Server("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logging.Server("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

type ctxKey struct{}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logging.WithRequestID(logging.CategoryServer, id).Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestLogger(r *http.Request) *logging.Logger {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return logging.WithRequestID(logging.CategoryServer, id)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backend is running"})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := r.ParseMultipartForm(s.opts.MaxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "malformed form: "+err.Error())
		return
	}
	req, ok := r.PostForm["req"]
	if !ok || len(req) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "field required: req")
		return
	}

	res, err := s.pipe.GenerateAndValidate(r.Context(), req[0])
	if err != nil {
		requestLogger(r).Warn("generate-test failed: %v", err)
		if errors.Is(err, generator.ErrNoRequirements) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type validateResponse struct {
	Validation validator.Report  `json:"validation"`
	Complexity complexity.Result `json:"complexity"`
	RunID      string            `json:"run_id,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}

	code := string(data)
	report, id, err := s.pipe.ValidateSource(r.Context(), r.URL.Query().Get("name"), code)
	if err != nil {
		requestLogger(r).Warn("validate failed: %v", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Validation: report,
		Complexity: complexity.Estimate(code),
		RunID:      id,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs, "stats": stats})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.history.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Get(logging.CategoryServer).Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
