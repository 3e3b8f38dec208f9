package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/football-investment/practice-booking-system-sub003/docs"
	"github.com/football-investment/practice-booking-system-sub003/handlers"
	"github.com/football-investment/practice-booking-system-sub003/middleware"
)

type Handlers struct {
	Competitions *handlers.CompetitionHandler
	Matches      *handlers.MatchHandler
	Standings    *handlers.StandingsHandler
	WebSocket    *handlers.WebSocketHandler
}

type Options struct {
	Auth           *middleware.Authenticator
	Limiter        *middleware.RateLimiter // nil disables throttling
	AllowedOrigins []string
	Health         func(ctx context.Context) error
	Logger         *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Health(ctx); err != nil {
				opts.Logger.Warn("health check failed", slog.Any("error", err))
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.OpenAPI)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/competitions/{competitionID}", h.WebSocket.ServeWs)

	// mutations run authenticated and throttled per principal
	protected := func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
	}
	organizer := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleOrganizer)

	router.Route("/competitions", func(r chi.Router) {
		r.Get("/", h.Competitions.ListHandler)

		r.Group(func(r chi.Router) {
			protected(r)
			r.With(organizer).Post("/", h.Competitions.CreateHandler)
		})

		r.Route("/{competitionID}", func(r chi.Router) {
			r.Get("/", h.Competitions.GetByIDHandler)
			r.Get("/enrollments", h.Competitions.ListEnrollmentsHandler)
			r.Get("/matches", h.Matches.ListMatchesHandler)
			r.Get("/generation", h.Matches.GenerationStatusHandler)
			r.Get("/generation/{taskID}", h.Matches.GenerationStatusHandler)
			r.Get("/rankings", h.Standings.GetRankingsHandler)
			r.Get("/rewards", h.Standings.ListRewardsHandler)

			r.Group(func(r chi.Router) {
				protected(r)

				r.Post("/enrollments", h.Competitions.EnrollHandler)
				r.Delete("/enrollments/{participantID}", h.Competitions.WithdrawHandler)

				r.Group(func(r chi.Router) {
					r.Use(organizer)
					r.Post("/open", h.Competitions.OpenEnrollmentHandler)
					r.Post("/sessions", h.Matches.GenerateHandler)
					r.Post("/rankings", h.Standings.CalculateRankingsHandler)
					r.Post("/rewards", h.Standings.DistributeRewardsHandler)
					r.Post("/archive", h.Competitions.ArchiveHandler)
				})
			})
		})
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		r.Get("/", h.Matches.GetMatchHandler)
		r.Group(func(r chi.Router) {
			protected(r)
			r.With(organizer).Put("/result", h.Matches.SubmitResultHandler)
		})
	})
}
