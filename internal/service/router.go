package service

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/workaholic/internal/auth"
	"github.com/mmynk/workaholic/internal/middleware"
	"github.com/mmynk/workaholic/internal/storage"
	"github.com/mmynk/workaholic/pkg/api"
)

// Deps are the collaborators the RPC services need.
type Deps struct {
	Store         storage.Store
	Authenticator auth.Authenticator
	JWT           *auth.JWTManager
	Logger        *slog.Logger

	// Stop, when closed, ends open Watch streams so the server can shut down.
	Stop <-chan struct{}
}

// NewRouter mounts the document and auth services, a health check and the
// Prometheus endpoint on one chi router.
func NewRouter(d Deps) chi.Router {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(d.Logger))
	r.Use(corsMiddleware)

	// Auth runs first so the inner interceptors see the user ID.
	interceptors := connect.WithInterceptors(
		middleware.NewAuthInterceptor(d.JWT, api.PublicProcedures),
		middleware.NewLoggingInterceptor(d.Logger),
		middleware.MetricsInterceptor{},
	)

	docPath, docHandler := api.NewDocumentServiceHandler(
		NewDocumentService(d.Store, d.Stop, d.Logger),
		api.WithCodec(),
		interceptors,
	)
	r.Mount(docPath, docHandler)

	authPath, authHandler := api.NewAuthServiceHandler(
		NewAuthService(d.Authenticator, d.JWT, d.Logger),
		api.WithCodec(),
		interceptors,
	)
	r.Mount(authPath, authHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogger logs every HTTP request at debug level. RPC outcomes are
// logged by the Connect interceptors.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("Request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"request_id", chimw.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
