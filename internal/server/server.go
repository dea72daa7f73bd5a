package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/opencode-ai/toolrun/internal/executor"
	"github.com/opencode-ai/toolrun/internal/logging"
	"github.com/opencode-ai/toolrun/pkg/types"
)

// Config is the listener configuration of the API server.
type Config struct {
	Hostname   string
	Port       int
	EnableCORS bool

	// ReadTimeout bounds reading a request. WriteTimeout stays zero by
	// default so that /event streams are not cut off.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig listens on :8080 with CORS enabled.
func DefaultConfig() *Config {
	return &Config{Port: 8080, EnableCORS: true, ReadTimeout: 30 * time.Second}
}

// ConfigFrom overlays the server section of cfg on DefaultConfig.
func ConfigFrom(cfg *types.Config) *Config {
	out := DefaultConfig()
	if cfg == nil || cfg.Server == nil {
		return out
	}
	sc := cfg.Server
	out.Hostname = sc.Hostname
	if sc.Port != 0 {
		out.Port = sc.Port
	}
	if sc.CORS != nil {
		out.EnableCORS = *sc.CORS
	}
	return out
}

// Server exposes a Runtime over HTTP. It holds no state of its own; every
// handler delegates to the runtime.
type Server struct {
	config   *Config
	router   *chi.Mux
	httpSrv  *http.Server
	runtime  *executor.Runtime
	validate *validator.Validate
}

// New builds the router for rt. A nil cfg uses DefaultConfig.
func New(cfg *Config, rt *executor.Runtime) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		runtime:  rt,
		validate: validator.New(),
	}

	s.router.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	if cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}
	s.setupRoutes()

	return s
}

// requestLogger writes one debug line per request through the runtime's
// zerolog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		logging.Debug().
			Str("requestID", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Hostname, strconv.Itoa(s.config.Port))
}

// Start blocks serving requests until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the handler, mainly for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}
