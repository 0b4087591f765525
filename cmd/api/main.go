package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/meridianarts/meridian-bookings/internal/http/handlers"
	httpmw "github.com/meridianarts/meridian-bookings/internal/http/middleware"
	"github.com/meridianarts/meridian-bookings/internal/repo/postgres"
	"github.com/meridianarts/meridian-bookings/internal/service"
	"github.com/meridianarts/meridian-bookings/pkg/config"
	"github.com/meridianarts/meridian-bookings/pkg/database"
	"github.com/meridianarts/meridian-bookings/pkg/events"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
	mw "github.com/meridianarts/meridian-bookings/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, cfg.Database.URL); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	redisClient := newRedisClient(cfg.Redis)
	defer redisClient.Close()

	// Repositories
	bookingRepo := postgres.NewGroupBookingRepo(pool)
	invitationRepo := postgres.NewInvitationRepo(pool)
	waitlistRepo := postgres.NewWaitlistRepo(pool)
	conflictRepo := postgres.NewConflictRepo(pool)
	magicLinkRepo := postgres.NewMagicLinkRepo(pool)

	// Services
	bookingService := service.NewGroupBookingService(bookingRepo, invitationRepo, waitlistRepo, eventBus, cfg)
	conflictService := service.NewConflictService(conflictRepo, bookingRepo, eventBus)
	magicLinkService := service.NewMagicLinkService(magicLinkRepo, eventBus, cfg)

	h := handlers.New(bookingService, conflictService, magicLinkService, cfg)

	// Rate limiters
	magicLinkLimiter := httpmw.NewRateLimiter(redisClient, httpmw.RateLimitConfig{
		Requests: 30,
		Window:   time.Minute,
	})
	invitationLimiter := httpmw.NewRateLimiter(redisClient, httpmw.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})

	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings-api"))
	r.Use(mw.Logging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000", "*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.With(h.RequireStaff).Post("/", h.CreateBooking)

			r.Route("/{id}", func(r chi.Router) {
				r.With(h.RequireAuth).Get("/", h.GetBookingDetails)
				r.With(h.RequireStaff).Delete("/", h.CancelBooking)

				r.With(h.RequireAuth).Post("/join", h.JoinBooking)

				r.Route("/invitations", func(r chi.Router) {
					r.Use(h.RequireAuth)
					r.With(invitationLimiter.Middleware()).Post("/", h.SendInvitation)
					r.Post("/{invitationID}/respond", h.RespondToInvitation)
				})

				r.Route("/waitlist", func(r chi.Router) {
					r.Use(h.RequireStaff)
					r.Post("/promote", h.PromoteWaitlistEntry)
					r.Delete("/{entryID}", h.RemoveWaitlistEntry)
				})
			})
		})

		r.Route("/conflicts", func(r chi.Router) {
			r.Use(h.RequireStaff)
			r.Post("/detect", h.DetectConflicts)
			r.Get("/", h.ListConflicts)
			r.Post("/{id}/resolve", h.ResolveConflict)
		})

		r.Route("/magic-links", func(r chi.Router) {
			r.Use(magicLinkLimiter.Middleware())
			r.With(h.RequireStaff).Post("/", h.CreateMagicLink)
			r.Get("/validate", h.ValidateMagicLink)
			r.Post("/track", h.TrackMagicLink)
		})

		r.With(h.RequireStaff).Post("/admin/sweeps", h.RunSweeps)
	})

	r.Post("/webhooks/stripe", h.StripeWebhook)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down bookings API...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Bookings API shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Bookings API error", "error", err)
		os.Exit(1)
	}
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Error("Invalid Redis URL, using defaults", "error", err)
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return redis.NewClient(opts)
}
