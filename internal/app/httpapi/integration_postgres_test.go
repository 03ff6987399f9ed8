//go:build integration && postgres

package httpapi

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/joho/godotenv"

	app "github.com/openquill/platform/internal/app"
	"github.com/openquill/platform/internal/app/storage/postgres"
	"github.com/openquill/platform/internal/platform/database"
	"github.com/openquill/platform/internal/platform/migrations"
)

// Integration test against Postgres to ensure migrations plus the core
// publish, clap and comment flows work with real persistence.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load() // allow .env for local runs
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration")
	}

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := postgres.New(db)
	application, err := app.New(app.Stores{
		Users:      store,
		Articles:   store,
		Comments:   store,
		Engagement: store,
		Tags:       store,
		Donations:  store,
		Sessions:   store,
		Reconciler: store,
	}, app.Options{JWTSecret: "integration-secret"}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}

	srv := newServerFor(t, application)
	author := signup(t, srv.URL, "pg-author")
	reader := signup(t, srv.URL, "pg-reader")

	var created struct {
		ID string `json:"id"`
	}
	author.doJSON(http.MethodPost, "/api/articles", map[string]string{
		"title":   "Persistence",
		"content": "written straight to postgres",
	}, http.StatusCreated, &created)
	author.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/publish", nil, http.StatusOK, nil)

	resp, _ := reader.do(http.MethodPost, "/api/articles/"+created.ID+"/clap", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clap: status %d want 204", resp.StatusCode)
	}
	resp, _ = reader.do(http.MethodPost, "/api/articles/"+created.ID+"/clap", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate clap: status %d want 409", resp.StatusCode)
	}

	reader.doJSON(http.MethodPost, "/api/articles/"+created.ID+"/comments", map[string]string{
		"content": "stored for good",
	}, http.StatusCreated, nil)

	var fetched struct {
		ClapsCount    int `json:"clapsCount"`
		CommentsCount int `json:"commentsCount"`
	}
	reader.doJSON(http.MethodGet, "/api/articles/"+created.ID, nil, http.StatusOK, &fetched)
	if fetched.ClapsCount != 1 || fetched.CommentsCount != 1 {
		t.Fatalf("counters: got claps=%d comments=%d want 1/1", fetched.ClapsCount, fetched.CommentsCount)
	}

	var out map[string]int64
	reader.doJSON(http.MethodPost, "/api/admin/reconcile", nil, http.StatusOK, &out)
	if out["corrected"] != 0 {
		t.Fatalf("reconcile on consistent data: corrected=%d want 0", out["corrected"])
	}
}
