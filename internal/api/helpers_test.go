package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smartgarage/garage-core/internal/accesslog"
	"github.com/smartgarage/garage-core/internal/auth"
	"github.com/smartgarage/garage-core/internal/garage"
	"github.com/smartgarage/garage-core/internal/infrastructure/config"
	"github.com/smartgarage/garage-core/internal/infrastructure/logging"
	"github.com/smartgarage/garage-core/internal/relay"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// testEnv bundles a wired server with direct handles on its collaborators
// so tests can reach behind the HTTP surface.
type testEnv struct {
	server      *Server
	http        *httptest.Server
	db          *sql.DB
	registry    *relay.Registry
	broadcaster *relay.Broadcaster
	garages     garage.Repository
	users       auth.UserRepository
	accessLog   accesslog.Repository
}

// newTestEnv builds a fully wired server backed by a throwaway SQLite
// database and returns it running behind an httptest listener.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)

	registry := relay.NewRegistry()
	broadcaster := relay.NewBroadcaster()
	registry.SetSink(broadcaster)
	commandRelay := relay.NewRelay(registry)

	garages := garage.NewSQLiteRepository(db)
	users := auth.NewUserRepository(db)
	logs := accesslog.NewSQLiteRepository(db)

	server, err := New(Deps{
		Config: config.APIConfig{Port: 8080},
		WS: config.WebSocketConfig{
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    60,
			WriteTimeout:   10,
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret, AccessTokenTTL: 15},
		},
		Logger:      logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"),
		Registry:    registry,
		Relay:       commandRelay,
		Broadcaster: broadcaster,
		Garages:     garages,
		Users:       users,
		AccessLog:   logs,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(server.buildRouter())
	t.Cleanup(func() {
		ts.Close()
		registry.CloseAll()
		broadcaster.CloseAll()
		db.Close()
	})

	return &testEnv{
		server:      server,
		http:        ts,
		db:          db,
		registry:    registry,
		broadcaster: broadcaster,
		garages:     garages,
		users:       users,
		accessLog:   logs,
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "api_test.db")
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	schema := `
		CREATE TABLE garages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			device_id TEXT NOT NULL UNIQUE,
			approved INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE access_logs (
			id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			garage_id TEXT,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}

	return db
}

// createUser inserts a user with the given credentials and returns it.
func (e *testEnv) createUser(t *testing.T, username, password string, role auth.Role) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &auth.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user %q: %v", username, err)
	}
	return user
}

// login performs POST /auth/login and returns the access token.
func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	resp := e.postJSON(t, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body loginResponse
	decodeBody(t, resp, &body)
	if body.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return body.AccessToken
}

// wsTicket requests an observer ticket with the given access token.
func (e *testEnv) wsTicket(t *testing.T, token string) string {
	t.Helper()

	resp := e.postJSON(t, "/api/v1/auth/ws-ticket", token, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ws-ticket status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		Ticket string `json:"ticket"`
	}
	decodeBody(t, resp, &body)
	return body.Ticket
}

// get performs an authenticated GET against the test server.
func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	return e.do(t, http.MethodGet, path, token, nil)
}

// postJSON performs a POST with a JSON body against the test server.
func (e *testEnv) postJSON(t *testing.T, path, token string, body any) *http.Response {
	t.Helper()
	return e.do(t, http.MethodPost, path, token, body)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshalling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.http.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// wsBase rewrites the test server URL into a ws:// base.
func (e *testEnv) wsBase() string {
	return "ws" + strings.TrimPrefix(e.http.URL, "http")
}

// decodeBody decodes a JSON response body into v.
func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}
