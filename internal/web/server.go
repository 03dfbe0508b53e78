package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wastewatch/internal/domain"
	"wastewatch/internal/service"
	"wastewatch/internal/vision"
)

type Server struct {
	service        *service.WasteService
	mux            *http.ServeMux
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewServer builds the API server. maxUploadBytes caps the ingest request
// body; values <= 0 select the default.
func NewServer(svc *service.WasteService, logger *slog.Logger, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		service:        svc,
		mux:            http.NewServeMux(),
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/entries", s.handleIngest)
	s.mux.HandleFunc("GET /api/entries", s.handleHistory)
	s.mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	s.mux.HandleFunc("GET /api/entries/{id}/image", s.handleGetImage)
	s.mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	s.mux.HandleFunc("DELETE /api/entries", s.handleClearAll)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)
	s.mux.HandleFunc("GET /api/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("GET /api/suggestions/recent", s.handleRecentSuggestions)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps the error taxonomy onto HTTP statuses and a stable error
// code, so clients can tell waiting, reconfiguring, and retrying apart.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	message := "internal error"

	var (
		verr *domain.ValidationError
		nf   *domain.NotFoundError
		pe   *domain.PersistenceError
		cerr *vision.Error
	)
	switch {
	case errors.As(err, &verr):
		status, code, message = http.StatusBadRequest, "validation", verr.Msg
	case errors.As(err, &nf):
		status, code, message = http.StatusNotFound, "not_found", nf.Error()
	case errors.As(err, &cerr):
		status = collaboratorStatus(cerr.Kind)
		code = string(cerr.Kind)
		message = cerr.Message
		if message == "" {
			message = "vision analysis failed"
		}
	case errors.As(err, &pe):
		status, code, message = http.StatusInternalServerError, "persistence", "failed to persist data"
	}

	s.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"code", code,
		"error", err,
	)
	s.writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func collaboratorStatus(kind vision.ErrorKind) int {
	switch kind {
	case vision.KindMissingCredential:
		return http.StatusServiceUnavailable
	case vision.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case vision.KindRateLimited:
		return http.StatusTooManyRequests
	case vision.KindAccessDenied:
		return http.StatusForbidden
	case vision.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case vision.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
