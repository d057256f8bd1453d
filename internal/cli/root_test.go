package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcenter/authctl/internal/cli/config"
	"github.com/authcenter/authctl/internal/cli/userconfig"
)

// backend is a minimal AuthCenter used to drive the CLI end to end
type backend struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	loggedOut    bool
	refreshes    int
}

// expireAccess invalidates the current access token, leaving the refresh token usable
func (b *backend) expireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken = "expired"
}

// revoke invalidates both tokens
func (b *backend) revoke() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessToken, b.refreshToken = "", ""
}

func (b *backend) refreshCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, data any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": http.StatusText(status), "data": data})
	}
	authorized := func(r *http.Request) bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.accessToken != "" && r.Header.Get("Authorization") == "Bearer "+b.accessToken
	}

	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "admin@example.com" || body["password"] != "secret" {
			reply(w, http.StatusUnauthorized, nil)
			return
		}
		b.mu.Lock()
		b.accessToken, b.refreshToken = "AT1", "RT1"
		b.mu.Unlock()
		reply(w, http.StatusOK, map[string]string{"access_token": "AT1", "refresh_token": "RT1", "user_id": "U1"})
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		if b.refreshToken == "" || body["refresh_token"] != b.refreshToken {
			b.mu.Unlock()
			reply(w, http.StatusUnauthorized, nil)
			return
		}
		b.refreshes++
		b.accessToken = fmt.Sprintf("AT%d", b.refreshes+1)
		b.refreshToken = fmt.Sprintf("RT%d", b.refreshes+1)
		tokens := map[string]string{"access_token": b.accessToken, "refresh_token": b.refreshToken, "user_id": "U1"}
		b.mu.Unlock()

		reply(w, http.StatusOK, tokens)
	})
	mux.HandleFunc("POST /api/v1/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			reply(w, http.StatusUnauthorized, nil)
			return
		}
		reply(w, http.StatusOK, map[string]bool{"valid": true})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.loggedOut = true
		b.accessToken = ""
		b.mu.Unlock()
		reply(w, http.StatusOK, nil)
	})
	mux.HandleFunc("GET /api/v1/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			reply(w, http.StatusUnauthorized, nil)
			return
		}
		reply(w, http.StatusOK, map[string]string{"id": r.PathValue("id"), "username": "admin"})
	})
	return mux
}

// setupWorkspace creates a project directory with authctl.json pointing at
// serverURL and SQLite session storage, and isolates the user config dir.
func setupWorkspace(t *testing.T, serverURL string) string {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(userconfig.ConfigDirEnv, filepath.Join(dir, "userconfig"))
	t.Setenv(envLogLevel, "")

	cfg := &config.Config{
		Servers: []config.Server{{URL: serverURL, Alias: "local"}},
		Storage: config.Storage{
			Durable:    config.StorageSQLite,
			SQLitePath: filepath.Join(dir, "sessions.db"),
		},
	}
	require.NoError(t, config.Save(filepath.Join(dir, config.ConfigFileName), cfg))
	return dir
}

// syncBuffer is written to by scheduled jobs while the command runs
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runContext(t, context.Background(), args...)
}

func runContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var out, errOut syncBuffer
	cmd := NewRootCmd("test")
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "authctl version test\n", out)
}

func TestSessionLifecycle(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)
	setupWorkspace(t, server.URL)

	out, err := run(t, "token", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated": false`)

	_, err = run(t, "login", "--identifier", "admin@example.com", "--password", "wrong")
	require.Error(t, err)

	out, err = run(t, "login", "--identifier", "admin@example.com", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")
	assert.Contains(t, out, "U1")

	// A fresh process sees the session persisted in SQLite
	out, err = run(t, "token", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated": true`)
	assert.Contains(t, out, `"user_id": "U1"`)
	assert.NotContains(t, out, "AT1")

	out, err = run(t, "users", "get", "U1", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "username: admin")

	out, err = run(t, "token", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Session is valid")

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
	assert.True(t, b.loggedOut)

	out, err = run(t, "token", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated": false`)

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestUnreachableServerReportsTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	setupWorkspace(t, url)

	out, err := run(t, "login", "--identifier", "admin@example.com", "--password", "secret")
	require.Error(t, err)
	assert.Contains(t, out, `"status": 500`)
	assert.Contains(t, out, "request error")
}

func TestInitCreatesConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(userconfig.ConfigDirEnv, filepath.Join(dir, "userconfig"))

	out, err := run(t, "init", "http://localhost:8080/")
	require.NoError(t, err)
	assert.Contains(t, out, "Created ./authctl.json")

	_, err = run(t, "init", "https://auth.example.com", "--alias", "local")
	require.Error(t, err, "duplicate alias")

	out, err = run(t, "init", "https://auth.example.com", "--alias", "prod", "--api-prefix", "/v2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added server")

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "http://localhost:8080", cfg.Servers[0].URL)
	assert.Equal(t, "local", cfg.Servers[0].Alias)
	assert.Equal(t, "/v2", cfg.Servers[1].Prefix())

	_, err = run(t, "init", "ftp://example.com")
	require.Error(t, err)
}

func TestSelectServer(t *testing.T) {
	dir := setupWorkspace(t, "http://localhost:8080")

	cfgPath := filepath.Join(dir, config.ConfigFileName)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Servers = append(cfg.Servers, config.Server{URL: "https://auth.example.com", Alias: "prod"})
	require.NoError(t, config.Save(cfgPath, cfg))

	out, err := run(t, "select-server", "prod")
	require.NoError(t, err)
	assert.Equal(t, "Selected server: prod (https://auth.example.com)\n", out)

	selected, err := userconfig.GetSelectedServer()
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", selected)

	_, err = run(t, "select-server", "missing")
	require.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(userconfig.ConfigDirEnv, filepath.Join(dir, "userconfig"))

	_, err := os.Stat(filepath.Join(dir, config.ConfigFileName))
	require.True(t, os.IsNotExist(err))

	_, err = run(t, "token", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authctl init")
}

func TestInvalidOutputFormat(t *testing.T) {
	setupWorkspace(t, "http://localhost:8080")

	_, err := run(t, "token", "status", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func loggedInWorkspace(t *testing.T) *backend {
	t.Helper()

	b := &backend{}
	server := httptest.NewServer(b.handler())
	t.Cleanup(server.Close)
	setupWorkspace(t, server.URL)

	_, err := run(t, "login", "--identifier", "admin@example.com", "--password", "secret")
	require.NoError(t, err)
	return b
}

func TestKeepaliveRefreshesUntilSessionIsRevoked(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for scheduled checks")
	}
	b := loggedInWorkspace(t)
	b.expireAccess()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := runContext(t, ctx, "keepalive", "--schedule", "@every 1s")
		done <- result{out, err}
	}()

	// The first check runs immediately and refreshes the expired access token
	require.Eventually(t, func() bool { return b.refreshCount() >= 1 }, 5*time.Second, 20*time.Millisecond)

	b.revoke()

	select {
	case res := <-done:
		require.Error(t, res.err)
		assert.Contains(t, res.err.Error(), "session expired")
		assert.Contains(t, res.out, "Keeping session alive")
	case <-ctx.Done():
		t.Fatal("keepalive did not stop after the session was revoked")
	}

	out, err := run(t, "token", "status")
	require.NoError(t, err)
	assert.Contains(t, out, `"authenticated": false`)
}

func TestKeepaliveStopsOnCancel(t *testing.T) {
	b := loggedInWorkspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var out string
	go func() {
		var err error
		out, err = runContext(t, ctx, "keepalive", "--schedule", "@every 1h")
		done <- err
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("keepalive did not stop after cancellation")
	}
	assert.Contains(t, out, "Stopped")
	assert.Equal(t, 0, b.refreshCount(), "a valid session is not refreshed")
}

func TestKeepaliveRejectsInvalidSchedule(t *testing.T) {
	loggedInWorkspace(t)

	_, err := run(t, "keepalive", "--schedule", "every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestKeepaliveRequiresLogin(t *testing.T) {
	setupWorkspace(t, "http://localhost:8080")

	_, err := run(t, "keepalive")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}
