// @title           LifeTrace API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/zhouzhouyin/lifetrace/internal/api"
	"github.com/zhouzhouyin/lifetrace/internal/archive"
	"github.com/zhouzhouyin/lifetrace/internal/config"
	"github.com/zhouzhouyin/lifetrace/internal/database"
	"github.com/zhouzhouyin/lifetrace/internal/storage"
	"github.com/zhouzhouyin/lifetrace/internal/websocket"

	_ "github.com/zhouzhouyin/lifetrace/docs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Failed to connect to the database: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Failed to ping the database: %v", err)
	}
	log.Println("Connected to the database")

	mediaStorage, err := storage.NewLocalStorage(cfg.Media.Path)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}
	log.Printf("Media payloads will be stored in: %s", cfg.Media.Path)

	archiver, err := archive.NewPresigner(context.Background(), cfg.Archive)
	if err != nil {
		log.Fatalf("Failed to initialize the archive presigner: %v", err)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool, wsHub)
	server := api.NewServer(cfg, store, mediaStorage, archiver, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(api.MetricsMiddleware)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://localhost/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)
	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", server.RegisterHandler)
		r.Post("/auth/login", server.LoginHandler)
		r.Post("/auth/refresh", server.RefreshTokenHandler)

		// The square feed is readable without a session.
		r.Get("/square", server.GetSquareFeedHandler)

		// Public records are readable without a session; a token, when
		// supplied, additionally opens the caller's own private records.
		r.Group(func(r chi.Router) {
			r.Use(server.OptionalAuthMiddleware)

			r.Get("/records/{recordId}", server.GetRecordHandler)
			r.Get("/records/{recordId}/media", server.DownloadMediaHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(server.AuthMiddleware)

			r.Post("/auth/logout", server.LogoutHandler)
			r.Get("/me", server.GetCurrentUserHandler)

			r.Post("/records", server.CreateRecordHandler)
			r.Post("/records/upload", server.UploadRecordHandler)
			r.Get("/records", server.ListRecordsHandler)
			r.Patch("/records/{recordId}", server.UpdateRecordHandler)
			r.Delete("/records/{recordId}", server.DeleteRecordHandler)
			r.Put("/records/{recordId}/visibility", server.SetVisibilityHandler)

			r.Post("/records/{recordId}/archive", server.BeginArchiveHandler)
			r.Post("/records/{recordId}/archive/complete", server.CompleteArchiveHandler)
			r.Post("/records/{recordId}/archive/fail", server.FailArchiveHandler)
			r.Get("/records/{recordId}/archive", server.GetArchiveHandler)

			r.Post("/square/{entryId}/like", server.LikeEntryHandler)

			r.Get("/sessions", server.ListSessionsHandler)
			r.Delete("/sessions/{sessionId}", server.DeleteSessionHandler)
			r.Post("/sessions/terminate_all", server.TerminateAllSessionsHandler)

			r.Get("/events", server.GetEventsHandler)
		})
	})

	log.Println("Starting server on port :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
