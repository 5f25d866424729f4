package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Routes builds the complete HTTP surface: the JSON API under /api, the
// terminal WebSocket and static UI at the root, docs and metrics.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", tokenHeader},
		ExposedHeaders:   []string{"Content-Disposition", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/connect", s.ConnectHandler)
		r.Get("/health", s.HealthCheckHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.SessionMiddleware)

			r.Post("/disconnect", s.DisconnectHandler)
			r.Get("/session", s.SessionInfoHandler)
			r.Get("/events", s.GetEventsHandler)

			r.Get("/list", s.ListHandler)
			r.Get("/stat", s.StatHandler)
			r.Post("/mkdir", s.MkdirHandler)
			r.Post("/rename", s.RenameHandler)
			r.Post("/delete", s.DeleteHandler)
			r.Post("/chmod", s.ChmodHandler)
			r.Get("/read", s.ReadHandler)
			r.Post("/write", s.WriteHandler)
			r.Post("/touch", s.TouchHandler)
			r.Get("/download", s.DownloadHandler)
			r.Post("/upload", s.UploadHandler)

			r.Post("/exec", s.ExecHandler)
			r.Get("/du", s.DiskUsageHandler)
			r.Get("/duplicates", s.DuplicatesHandler)
			r.Post("/compress", s.CompressHandler)
			r.Post("/extract", s.ExtractHandler)
		})
	})

	static := http.FileServer(http.Dir(s.config.Server.StaticDir))
	r.Get("/", s.RootHandler(static))
	r.NotFound(static.ServeHTTP)

	return r
}
