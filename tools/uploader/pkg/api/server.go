package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/log"
	"github.com/TrevorEdris/transfer-utils/pkg/telemetry"
	"github.com/TrevorEdris/transfer-utils/pkg/transfer"
	"github.com/TrevorEdris/transfer-utils/tools/uploader/pkg/uploader"
)

const StatusRunning = "running"

type Server struct {
	uploader uploader.Uploader
	port     int
	limiters *rateLimiterMap
	server   *http.Server

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	id        string
	cancel    context.CancelFunc
	done      chan struct{}
	status    string
	startTime time.Time
	endTime   time.Time
	results   []uploader.Result
	err       error
}

type JobResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Results   []uploader.Result `json:"results,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewServer serves u on port. A requestsPerMinute of zero disables rate
// limiting.
func NewServer(port, requestsPerMinute int, u uploader.Uploader) *Server {
	s := &Server{
		uploader: u,
		port:     port,
		jobs:     make(map[string]*job),
	}
	if requestsPerMinute > 0 {
		s.limiters = newRateLimiterMap(requestsPerMinute)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/health", s.withTelemetry("/health", s.handleHealth))
	r.Route("/v1/uploads", func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)
		r.Post("/", s.withTelemetry("/v1/uploads", s.handleCreateUpload))
		r.Get("/{id}", s.withTelemetry("/v1/uploads/{id}", s.handleGetUpload))
		r.Delete("/{id}", s.withTelemetry("/v1/uploads/{id}", s.handleCancelUpload))
	})
	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if s.limiters != nil {
		go s.sweepLimiters(ctx)
	}

	log.FromCtx(ctx).Info("Starting API server", zap.Int("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then cancels running uploads and waits
// for them to wind down or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	s.mu.Lock()
	running := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if j.status == StatusRunning {
			j.cancel()
			running = append(running, j)
		}
	}
	s.mu.Unlock()

	for _, j := range running {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Server) sweepLimiters(ctx context.Context) {
	ticker := time.NewTicker(rateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.limiters.sweep()
		}
	}
}

// withTelemetry wraps an HTTP handler with telemetry instrumentation
func (s *Server) withTelemetry(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ctx, span := telemetry.Tracer().Start(r.Context(), "uploader.api.request")
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", endpoint),
			attribute.String("http.url", r.URL.Path),
		)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(rw, r.WithContext(ctx))

		duration := time.Since(startTime).Seconds()
		statusStr := strconv.Itoa(rw.statusCode)
		telemetry.RecordAPIRequest(endpoint, r.Method, statusStr)
		telemetry.RecordAPIRequestDuration(duration, endpoint, r.Method, statusStr)

		if rw.statusCode >= 400 {
			telemetry.RecordAPIRequestError(endpoint, r.Method, fmt.Sprintf("http_%d", rw.statusCode))
			span.RecordError(fmt.Errorf("HTTP error: %d", rw.statusCode))
		}
		span.SetAttributes(
			attribute.Int("http.status_code", rw.statusCode),
			attribute.Float64("http.duration", duration),
		)
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreateUpload(w http.ResponseWriter, r *http.Request) {
	var req uploader.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// The upload outlives the request; keep only its logger.
	jobCtx, cancel := context.WithCancel(log.ToCtx(context.Background(), log.FromCtx(r.Context())))

	s.mu.Lock()
	j := &job{
		id:        uuid.NewString(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    StatusRunning,
		startTime: time.Now(),
	}
	s.jobs[j.id] = j
	resp := j.response()
	s.mu.Unlock()

	telemetry.RecordAPIJobs(1)
	go s.run(jobCtx, j, req)

	w.Header().Set("Location", "/v1/uploads/"+j.id)
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) run(ctx context.Context, j *job, req uploader.Request) {
	defer close(j.done)
	defer telemetry.RecordAPIJobs(-1)
	defer j.cancel()

	ctx = log.With(ctx, zap.String("jobId", j.id))
	results, err := s.uploader.Upload(ctx, req)
	if err != nil {
		log.FromCtx(ctx).Error("Upload job failed", zap.Error(err))
	} else {
		log.FromCtx(ctx).Info("Upload job completed", zap.Int("files", len(results)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j.results = results
	j.err = err
	j.status = transfer.Status(err)
	j.endTime = time.Now()
}

func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobs[chi.URLParam(r, "id")]
	var resp JobResponse
	if ok {
		resp = j.response()
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "upload not found"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	j, ok := s.jobs[chi.URLParam(r, "id")]
	running := ok && j.status == StatusRunning
	s.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "upload not found"})
		return
	case !running:
		writeJSON(w, http.StatusConflict, errorResponse{Error: "upload already finished"})
		return
	}

	j.cancel()
	select {
	case <-j.done:
	case <-r.Context().Done():
		return
	}

	s.mu.Lock()
	resp := j.response()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// response must be called with s.mu held.
func (j *job) response() JobResponse {
	resp := JobResponse{
		ID:        j.id,
		Status:    j.status,
		StartTime: j.startTime,
		Results:   j.results,
	}
	if !j.endTime.IsZero() {
		end := j.endTime
		resp.EndTime = &end
	}
	if j.err != nil {
		resp.Error = j.err.Error()
	}
	return resp
}
