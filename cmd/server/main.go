// @title           SPX Studio API
// @version         1.0
// @description     Website builder backend: file storage, websites, AI generation and billing.
// @host            localhost:8080
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spx-studio/internal/ai"
	"spx-studio/internal/api"
	"spx-studio/internal/billing"
	"spx-studio/internal/config"
	"spx-studio/internal/database"
	"spx-studio/internal/logging"
	"spx-studio/internal/metrics"
	"spx-studio/internal/storage"
	"spx-studio/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	_ "spx-studio/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

const sessionSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cannot load configuration: " + err.Error())
	}

	if err := logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, OutputPath: cfg.Log.Output}); err != nil {
		panic("cannot initialise logger: " + err.Error())
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		logging.Fatal("cannot connect to database", logging.Err(err))
	}
	defer dbpool.Close()

	if err := dbpool.Ping(ctx); err != nil {
		logging.Fatal("cannot ping database", logging.Err(err))
	}
	logging.Info("connected to database")

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		logging.Fatal("cannot initialise blob storage", logging.Err(err))
	}
	logging.Info("blob storage ready", logging.String("backend", cfg.Storage.Backend))

	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	store := database.NewStore(dbpool)
	server, err := api.NewServer(cfg, store, blobs, wsHub, ai.NewGenerator(cfg.AI), billing.NewStripe(cfg.Stripe.SecretKey, nil))
	if err != nil {
		logging.Fatal("cannot create server", logging.Err(err))
	}

	go sweepSessions(ctx, store)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)
	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("SPX Studio API is running. Documentation: /swagger/index.html"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", server.RegisterHandler)
		r.Post("/auth/login", server.LoginHandler)
		r.Post("/auth/refresh", server.RefreshTokenHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.AuthMiddleware)

			r.Post("/auth/logout", server.LogoutHandler)
			r.Get("/me", server.GetCurrentUserHandler)

			r.Get("/sessions", server.ListSessionsHandler)
			r.Delete("/sessions/{sessionId}", server.DeleteSessionHandler)
			r.Post("/sessions/terminate_all", server.TerminateAllSessionsHandler)

			r.Get("/storage/items", server.ListItemsHandler)
			r.Post("/storage/folders", server.CreateFolderHandler)
			r.Post("/storage/upload", server.UploadFileHandler)
			r.Get("/storage/items/{itemId}/download", server.DownloadFileHandler)
			r.Delete("/storage/items/{itemId}", server.DeleteItemHandler)
			r.Get("/storage/usage", server.StorageUsageHandler)

			r.Get("/websites", server.ListWebsitesHandler)
			r.Post("/websites", server.CreateWebsiteHandler)
			r.Get("/websites/{websiteId}", server.GetWebsiteHandler)
			r.Put("/websites/{websiteId}", server.UpdateWebsiteHandler)
			r.Delete("/websites/{websiteId}", server.DeleteWebsiteHandler)

			r.Post("/ai/generate-website", server.GenerateWebsiteHandler)
			r.Post("/ai/analyze-canva", server.AnalyzeDesignHandler)

			r.Post("/billing/checkout", server.CreateCheckoutHandler)
			r.Post("/billing/subscription/success", server.SubscriptionSuccessHandler)
			r.Post("/billing/subscription/cancel", server.CancelSubscriptionHandler)

			r.Get("/events", server.GetEventsHandler)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error("graceful shutdown failed", logging.Err(err))
		}
	}()

	logging.Info("starting server", logging.String("addr", cfg.HTTP.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal("server stopped", logging.Err(err))
	}
	logging.Info("server stopped")
}

// sweepSessions removes expired refresh sessions until ctx is cancelled.
func sweepSessions(ctx context.Context, store *database.Store) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.DeleteExpiredSessions(ctx)
			if err != nil {
				logging.Warn("failed to delete expired sessions", logging.Err(err))
				continue
			}
			if removed > 0 {
				logging.Info("expired sessions removed", logging.Int64("count", removed))
			}
		}
	}
}
