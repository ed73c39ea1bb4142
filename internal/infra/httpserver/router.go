package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appchat "github.com/bryanwahyu/signaware/internal/application/chat"
	appdocs "github.com/bryanwahyu/signaware/internal/application/documents"
	appmask "github.com/bryanwahyu/signaware/internal/application/masking"
	appusers "github.com/bryanwahyu/signaware/internal/application/users"
	"github.com/bryanwahyu/signaware/internal/domain/ai"
	"github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/domain/users"
	"github.com/bryanwahyu/signaware/internal/logger"
	"github.com/bryanwahyu/signaware/internal/middleware"
)

const (
	serviceName    = "SignAware AI"
	serviceVersion = "1.0.0"

	defaultMaxUpload = 20 << 20
)

// Deps dirakit di cmd/api. Limiter nil berarti rate limit mati.
type Deps struct {
	Users     *appusers.Service
	Documents *appdocs.Service
	Chat      *appchat.Service
	Masking   *appmask.Service

	Limiter    middleware.Limiter
	RateWindow time.Duration

	// Ready gates /readyz; Checkers are all reported on /health.
	Ready    middleware.HealthChecker
	Checkers map[string]middleware.HealthChecker

	CORSOrigins    []string
	MaxUploadBytes int64
	Log            *zap.Logger
}

type Router struct {
	users     *appusers.Service
	docs      *appdocs.Service
	chat      *appchat.Service
	masking   *appmask.Service
	maxUpload int64
	log       *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	r := &Router{
		users:     d.Users,
		docs:      d.Documents,
		chat:      d.Chat,
		masking:   d.Masking,
		maxUpload: maxUpload,
		log:       log,
	}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestLogger(log))
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/", r.handleRoot)
	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/healthz", middleware.LivenessHandler)
	if d.Ready != nil {
		mux.Get("/readyz", middleware.ReadinessHandler(d.Ready))
	}
	mux.Get("/metrics", middleware.MetricsHandler)

	// rute yang memanggil model dibatasi rate limit
	limited := func(rt chi.Router) chi.Router {
		if d.Limiter == nil {
			return rt
		}
		window := d.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		return rt.With(middleware.RateLimit(d.Limiter, window, log))
	}

	mux.Route("/api/v1", func(api chi.Router) {
		api.Route("/users", func(rt chi.Router) {
			rt.Post("/", r.wrap(r.handleCreateUser))
			rt.Get("/email/{email}", r.wrap(r.handleGetUserByEmail))
			rt.Get("/{id}", r.wrap(r.handleGetUser))
			rt.Put("/{id}", r.wrap(r.handleUpdateUser))
			rt.Delete("/{id}", r.wrap(r.handleDeleteUser))
		})

		api.Route("/documents", func(rt chi.Router) {
			rt.Post("/", r.wrap(r.handleCreateDocument))
			rt.Post("/upload", r.wrap(r.handleUploadDocument))
			rt.Get("/", r.wrap(r.handleListDocuments))
			rt.Get("/{id}", r.wrap(r.handleGetDocument))
			rt.Delete("/{id}", r.wrap(r.handleDeleteDocument))
			limited(rt).Post("/{id}/analyze", r.wrap(r.handleAnalyze))
			rt.Get("/{id}/analysis", r.wrap(r.handleGetAnalysis))
		})

		api.Route("/pii", func(rt chi.Router) {
			limited(rt).Post("/mask", r.wrap(r.handleMaskText))
			limited(rt).Post("/mask/document/{id}", r.wrap(r.handleMaskDocument))
			rt.Get("/masked/{id}", r.wrap(r.handleMaskedContent))
		})

		api.Route("/chat", func(rt chi.Router) {
			limited(rt).Post("/stream", r.wrap(r.handleChatStream))
			limited(rt).Post("/message", r.wrap(r.handleChatMessage))
			rt.Get("/history/{session_id}", r.wrap(r.handleChatHistory))
			rt.Get("/sessions/{document_id}", r.wrap(r.handleChatSessions))
			rt.Delete("/sessions/{session_id}", r.wrap(r.handleDeleteChatSession))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// errBadRequest marks request-shape problems detected in the handlers themselves.
var errBadRequest = errors.New("bad request")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			logger.FromContext(req.Context(), r.log).Error("request failed", zap.Error(err))
		}
		writeError(w, code, err.Error())
	}
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, documents.ErrNotFound),
		errors.Is(err, documents.ErrNotMasked),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, documents.ErrAnalysisInProgress),
		errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, documents.ErrInvalidInput),
		errors.Is(err, users.ErrInvalidInput),
		errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	_ = writeJSON(w, code, map[string]string{"error": msg})
}

// decodeJSON rejects unknown fields; a malformed body is a 400.
func decodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Welcome to " + serviceName,
		"description": "AI-powered legal document analysis and PII masking service",
		"version":     serviceVersion,
		"features": []string{
			"Document analysis with risk scoring",
			"PII masking with a local model",
			"Chat grounded in the document analysis",
			"Chat history and sessions",
		},
	})
}
