package server

import (
	"fmt"
	"net/http"
	"time"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riandyrn/otelchi"

	"github.com/ticobot/ticobot/internal"
	"github.com/ticobot/ticobot/pkg/models"
	"github.com/ticobot/ticobot/pkg/rag"
)

var log = internal.GetLogger()

const ReadHeaderTimeout = 5 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) *http.Server {
	host := appState.Config.Server.Host
	port := appState.Config.Server.Port
	router := setupRouter(appState)
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

// @title						TicoBot REST API
// @version					0.x
// @license.name				Apache 2.0
// @license.url				http://www.apache.org/licenses/LICENSE-2.0.html
// @BasePath					/api/v1
// @schemes					http https
func setupRouter(appState *models.AppState) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))
	if appState.Config.Server.MaxContentLength > 0 {
		router.Use(LimitContentLength(appState.Config.Server.MaxContentLength))
	}
	if appState.Config.OpenTelemetry.Enabled {
		router.Use(otelchi.Middleware("ticobot", otelchi.WithChiRoutes(router)))
	}

	router.Handle("/metrics", promhttp.Handler())

	ragService := rag.NewService(appState)

	router.Route("/api/v1", func(r chi.Router) {
		// Chat routes carry the per-client rate limit; everything else is
		// cheap enough to leave open.
		r.Group(func(r chi.Router) {
			if appState.Config.RateLimit.Enabled {
				r.Use(RateLimit(appState.Config))
			}
			r.Post("/chat", ChatHandler(appState, ragService))
			r.Post("/chat/stream", ChatStreamHandler(appState, ragService))
		})

		r.Post("/search", SearchHandler(appState, ragService))

		// Document-related routes
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", GetDocumentListHandler(appState))
			r.Post("/", CreateDocumentHandler(appState))
			// Single document routes (by UUID)
			r.Route("/{documentUUID}", func(r chi.Router) {
				r.Get("/", GetDocumentHandler(appState))
				r.Patch("/", UpdateDocumentHandler(appState))
				r.Delete("/", DeleteDocumentHandler(appState))
			})
		})

		r.Get("/stats", GetStatsHandler(appState))
	})

	return router
}
