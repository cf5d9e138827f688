package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/campuskit/schoolhub/internal/config"
	apphttp "github.com/campuskit/schoolhub/internal/http"
	mailx "github.com/campuskit/schoolhub/internal/mail"
	"github.com/campuskit/schoolhub/internal/observability"
	"github.com/campuskit/schoolhub/migrations"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func testConfig() config.Config {
	return config.Config{
		Env:                  "test",
		JWTSecret:            "test-secret-at-least-32-bytes-long",
		JWTExpireDays:        1,
		BcryptCost:           4,
		ResetTokenTTLMinutes: 10,
		CookieExpireDays:     1,
		AuthRateLimit:        1000,
		AuthRateWindow:       time.Minute,
	}
}

// setupRouter stands up the real router against a throwaway database.
// Skipped unless TEST_DB_DSN points at one.
func setupRouter(t *testing.T) (*gin.Engine, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set; skipping integration tests")
	}

	gin.SetMode(gin.TestMode)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrations.Run(dsn); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := testConfig()
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	router := apphttp.NewRouter(cfg, logger, pool, mailx.NewLogMailer(), nil, prom, reg)

	return router, pool
}

func resetDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(), `
		TRUNCATE attendance, students, classes, users, schools
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

func doRequest(router http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != "" {
		buf = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, buf)

	if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
		req.Header.Set("Content-Type", "application/json")
	}

	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func mustReadJSON[T any](t *testing.T, w *httptest.ResponseRecorder, out *T) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to unmarshal json: %v, body=%s", err, w.Body.String())
	}
}

type tokenResponse struct {
	Token string `json:"token"`
	Data  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"data"`
}

func TestAuthIntegration_Register_Login_Me_UpdatePassword(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	// register
	registerBody := `{"name":"Sam Doe","email":"sam@school.test","password":"password123"}`

	w := doRequest(router, http.MethodPost, "/api/v1/auth/register", registerBody, "")

	if w.Code != http.StatusCreated {
		t.Fatalf("register got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	var registered tokenResponse
	mustReadJSON(t, w, &registered)

	if strings.TrimSpace(registered.Token) == "" {
		t.Fatalf("register expected token, got empty")
	}
	if registered.Data.Role != "teacher" {
		t.Fatalf("register expected default role teacher, got %q", registered.Data.Role)
	}

	// login
	w2 := doRequest(router, http.MethodPost, "/api/v1/auth/login",
		`{"email":"sam@school.test","password":"password123"}`, "")

	if w2.Code != http.StatusOK {
		t.Fatalf("login got status %d, want %d, body=%s", w2.Code, http.StatusOK, w2.Body.String())
	}

	var logged tokenResponse
	mustReadJSON(t, w2, &logged)

	// me
	w3 := doRequest(router, http.MethodGet, "/api/v1/auth/me", "", logged.Token)

	if w3.Code != http.StatusOK {
		t.Fatalf("me got status %d, want %d, body=%s", w3.Code, http.StatusOK, w3.Body.String())
	}

	var me struct {
		Data struct {
			Email        string `json:"email"`
			PasswordHash string `json:"passwordHash"`
		} `json:"data"`
	}
	mustReadJSON(t, w3, &me)

	if me.Data.Email != "sam@school.test" {
		t.Fatalf("me returned wrong user: %+v", me.Data)
	}
	if me.Data.PasswordHash != "" {
		t.Fatalf("password hash must never leave the API, body=%s", w3.Body.String())
	}

	// change password; the previous token keeps working until expiry
	w4 := doRequest(router, http.MethodPut, "/api/v1/auth/updatepassword",
		`{"currentPassword":"password123","newPassword":"password456"}`, logged.Token)

	if w4.Code != http.StatusOK {
		t.Fatalf("updatepassword got status %d, want %d, body=%s", w4.Code, http.StatusOK, w4.Body.String())
	}

	w5 := doRequest(router, http.MethodGet, "/api/v1/auth/me", "", logged.Token)
	if w5.Code != http.StatusOK {
		t.Fatalf("me(old token after password change) got status %d, want %d", w5.Code, http.StatusOK)
	}

	// old password no longer logs in
	w6 := doRequest(router, http.MethodPost, "/api/v1/auth/login",
		`{"email":"sam@school.test","password":"password123"}`, "")
	if w6.Code != http.StatusUnauthorized {
		t.Fatalf("login(old password) got status %d, want %d", w6.Code, http.StatusUnauthorized)
	}

	w7 := doRequest(router, http.MethodPost, "/api/v1/auth/login",
		`{"email":"sam@school.test","password":"password456"}`, "")
	if w7.Code != http.StatusOK {
		t.Fatalf("login(new password) got status %d, want %d, body=%s", w7.Code, http.StatusOK, w7.Body.String())
	}
}

func TestAuthIntegration_Login_InvalidCredentials(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	// no user created
	w := doRequest(router, http.MethodPost, "/api/v1/auth/login",
		`{"email":"nope@school.test","password":"wrongpass"}`, "")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login(invalid creds) got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestAuthIntegration_ProtectedRoutesRejectAnonymous(t *testing.T) {
	router, pool := setupRouter(t)
	resetDB(t, pool)
	defer resetDB(t, pool)

	for _, probe := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodGet, "/api/v1/students"},
		{http.MethodGet, "/api/v1/classes"},
		{http.MethodGet, "/api/v1/staff"},
	} {
		w := doRequest(router, probe.method, probe.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s got status %d, want %d, body=%s",
				probe.method, probe.path, w.Code, http.StatusUnauthorized, w.Body.String())
		}
	}
}
