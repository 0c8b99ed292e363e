package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"spendlens/src/db"
	"spendlens/src/handlers"
	"spendlens/src/middleware"
	"spendlens/src/storage"
)

type Options struct {
	Dir            storage.Dir
	Cache          *db.ReportCache
	PasswordHash   []byte
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         zerolog.Logger
}

func NewRouter(opts Options) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.Recovery)
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.ReadOnlyMiddleware("/api/login", "/api/cache/clear"))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", handlers.Login(opts.PasswordHash, opts.JWTSecret))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware(opts.JWTSecret)).Group(func(r chi.Router) {
			r.Get("/summary", handlers.GetSummary(opts.Dir, opts.Cache))
			r.Get("/expenses", handlers.GetExpenses(opts.Dir, opts.Cache))
			r.Get("/daily", handlers.GetDailyTotals(opts.Dir, opts.Cache))
			r.Get("/charts/{name}", handlers.GetChart(opts.Dir, opts.Cache))
			r.Post("/cache/clear", handlers.ClearCache(opts.Cache))
		})
	})

	return r
}
