package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"formu/internal/http/handlers"
	"formu/internal/middleware"
)

// Options tunes router-level middleware.
type Options struct {
	AllowedOrigins  []string
	RateLimitPerMin int
	UploadDir       string
	UploadBaseURL   string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/styles", app.Styles)

	r.Post("/api/register", app.Register)
	r.Post("/api/token", app.Token)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.JWTSecret))

		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", app.Me)
			r.Put("/", app.UpdateMe)
		})

		r.Route("/api/usage", func(r chi.Router) {
			r.Get("/", app.UsageSummary)
			r.Post("/increment", app.UsageIncrement)
		})

		r.Post("/upload", app.Upload)

		r.Post("/v1/prompt-generation", app.PromptGeneration)
		r.Post("/v1/prompt-generation/url", app.PromptGenerationURL)

		r.Route("/v1/3d-generation", func(r chi.Router) {
			r.Post("/submit", app.ThreeDSubmit)
			r.Get("/tasks/{id}", app.ThreeDStatus)
		})

		r.Route("/v1/sora", func(r chi.Router) {
			r.Post("/image-to-image", app.SoraSubmit)
			r.Get("/tasks/{id}", app.SoraStatus)
		})

		r.Route("/api/projects", func(r chi.Router) {
			r.Post("/", app.ProjectCreate)
			r.Get("/", app.ProjectList)
			r.Get("/{id}", app.ProjectGet)
			r.Put("/{id}", app.ProjectUpdate)
			r.Delete("/{id}", app.ProjectDelete)
			r.Get("/{id}/export", app.ProjectExport)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/assign", app.AdminAssignTier)
			r.Get("/users", app.AdminListUsers)
			r.Get("/config", app.AdminGetConfig)
			r.Put("/config", app.AdminSetConfig)
		})

		r.Route("/api/files", func(r chi.Router) {
			r.Get("/stats", app.AdminStorageStats)
			r.Post("/cleanup", app.AdminStorageCleanup)
		})
	})

	if opts.UploadDir != "" && opts.UploadBaseURL != "" {
		fs := http.StripPrefix(opts.UploadBaseURL+"/", http.FileServer(http.Dir(opts.UploadDir)))
		r.Get(opts.UploadBaseURL+"/*", fs.ServeHTTP)
	}

	return r
}
