package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/zhouzhouyin/lifetrace/internal/archive"
	"github.com/zhouzhouyin/lifetrace/internal/auth"
	"github.com/zhouzhouyin/lifetrace/internal/config"
	"github.com/zhouzhouyin/lifetrace/internal/database"
	"github.com/zhouzhouyin/lifetrace/internal/storage"
)

var (
	testServer *Server
	testRouter http.Handler
	testStore  *database.PostgresStore
	testConfig *config.Config
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:14-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %s", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Fatalf("failed to terminate postgres container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %s", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("failed to connect to test database: %s", err)
	}

	schema, err := os.ReadFile("../../db/init.sql")
	if err != nil {
		log.Fatalf("failed to read schema file: %s", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("failed to apply schema: %s", err)
	}

	mediaPath, err := os.MkdirTemp("", "lifetrace-media-*")
	if err != nil {
		log.Fatalf("failed to create media dir: %s", err)
	}
	defer os.RemoveAll(mediaPath)

	media, err := storage.NewLocalStorage(mediaPath)
	if err != nil {
		log.Fatalf("failed to init media storage: %s", err)
	}

	testConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "api-test-secret"},
		Archive: config.ArchiveConfig{
			Endpoint:     "http://localhost:9000",
			Region:       "us-east-1",
			Bucket:       "lifetrace-test",
			AccessKey:    "testkey",
			SecretKey:    "testsecret",
			UsePathStyle: true,
		},
	}

	// Presigning only signs locally, no bucket needs to be reachable.
	archiver, err := archive.NewPresigner(ctx, testConfig.Archive)
	if err != nil {
		log.Fatalf("failed to init presigner: %s", err)
	}

	testStore = database.NewStore(pool, nil)
	testServer = NewServer(testConfig, testStore, media, archiver, nil)
	testRouter = newTestRouter(testServer)

	os.Exit(m.Run())
}

func newTestRouter(server *Server) http.Handler {
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", server.RegisterHandler)
		r.Post("/auth/login", server.LoginHandler)
		r.Post("/auth/refresh", server.RefreshTokenHandler)

		r.Get("/square", server.GetSquareFeedHandler)

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

	return r
}

var userSeq int

// registerTestUser creates an account directly in the store and mints a
// token for it, bypassing the HTTP register flow.
func registerTestUser(t *testing.T) (int64, string) {
	userSeq++
	username := fmt.Sprintf("api_user_%d", userSeq)

	hash, err := auth.HashPassword("password123")
	require.NoError(t, err)

	user, err := testStore.CreateUser(context.Background(), username, hash, nil)
	require.NoError(t, err)

	token, err := auth.GenerateJWT(user, testConfig.JWT.Secret)
	require.NoError(t, err)

	return user.ID, token
}

func doRequest(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	testRouter.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}
