// Package server exposes the datasheet engine over HTTP. All routes live
// under /api/v1 and speak JSON; errors carry a machine-readable kind and a
// human-readable message.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pipespec/valve-datasheet/pkg/engine"
)

// requestTimeout bounds every request, including batch generation.
const requestTimeout = 30 * time.Second

// Server handles the HTTP API on top of a loaded engine.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// New creates a Server. A nil logger falls back to slog.Default.
func New(eng *engine.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, logger: logger.With("component", "http")}
}

// Routes builds the API router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", s.handleHealth)

		r.Route("/vds", func(r chi.Router) {
			r.Get("/", s.handleListVDS)
			r.Get("/{vdsNo}/decode", s.handleDecode)
			r.Get("/{vdsNo}/validate", s.handleValidate)
		})

		r.Route("/datasheets", func(r chi.Router) {
			r.Get("/{vdsNo}", s.handleDatasheet)
			r.Get("/{vdsNo}/flat", s.handleFlatDatasheet)
			r.Post("/generate", s.handleGenerate)
			r.Post("/batch", s.handleBatch)
		})

		r.Route("/metadata", func(r chi.Router) {
			r.Get("/", s.handleMetadata)
			r.Get("/valve-types", s.handleValveTypes)
			r.Get("/piping-classes", s.handlePipingClasses)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NotFound", "no such route: "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed",
			r.Method+" is not allowed on "+r.URL.Path)
	})

	return r
}

// responseCapture records the status code written by downstream handlers.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rc, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rc.statusCode,
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}
