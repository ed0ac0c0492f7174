//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/myopinion/apiserver/config"
	"github.com/myopinion/apiserver/internal/server"
	"github.com/sirupsen/logrus"
)

const (
	serverPort = 18080
	password   = "testpass123!"
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestModerationLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()
	adminName := fmt.Sprintf("admin_%d", suffix)
	userName := fmt.Sprintf("user_%d", suffix)

	adminEmail := adminName + "@example.com"
	if _, _, err := registerUser(t, baseURL, adminName, adminEmail); err != nil {
		t.Fatalf("register admin: %v", err)
	}
	if err := promoteUserToAdmin(adminEmail); err != nil {
		t.Fatalf("promote admin: %v", err)
	}

	// Log in again so the token carries the admin role claim.
	adminToken, err := login(t, baseURL, adminEmail)
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}

	userID, userToken, err := registerUser(t, baseURL, userName, userName+"@example.com")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	categoryID, err := createCategory(t, baseURL, adminToken, fmt.Sprintf("General %d", suffix))
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	postID, err := createPost(t, baseURL, userToken, categoryID)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	// A muted user can no longer post or comment.
	if err := moderate(t, baseURL, adminToken, userID, "mute", 30); err != nil {
		t.Fatalf("mute user: %v", err)
	}
	if _, err := createPost(t, baseURL, userToken, categoryID); err == nil {
		t.Fatal("expected muted user to be rejected")
	}
	if err := addComment(t, baseURL, userToken, postID); err == nil {
		t.Fatal("expected muted user comment to be rejected")
	}

	muted, banned, err := moderationFlags(t, baseURL, adminToken, userID)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if !muted || banned {
		t.Fatalf("expected muted=true banned=false, got muted=%v banned=%v", muted, banned)
	}

	if err := clearModeration(t, baseURL, adminToken, userID, "unmute"); err != nil {
		t.Fatalf("unmute user: %v", err)
	}
	if err := addComment(t, baseURL, userToken, postID); err != nil {
		t.Fatalf("comment after unmute: %v", err)
	}

	// A permanent ban (duration zero) blocks writes until lifted.
	if err := moderate(t, baseURL, adminToken, userID, "ban", 0); err != nil {
		t.Fatalf("ban user: %v", err)
	}
	if _, err := createPost(t, baseURL, userToken, categoryID); err == nil {
		t.Fatal("expected banned user to be rejected")
	}
	if err := clearModeration(t, baseURL, adminToken, userID, "unban"); err != nil {
		t.Fatalf("unban user: %v", err)
	}
	if _, err := createPost(t, baseURL, userToken, categoryID); err != nil {
		t.Fatalf("post after unban: %v", err)
	}

	if err := deleteUser(t, baseURL, adminToken, userID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := login(t, baseURL, userName+"@example.com"); err == nil {
		t.Fatal("expected login of deleted user to fail")
	}
}

func TestAdminRoutesRejectRegularUsers(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	name := fmt.Sprintf("plain_%d", time.Now().UnixNano())

	userID, userToken, err := registerUser(t, baseURL, name, name+"@example.com")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	status, err := doJSON(t, http.MethodGet, baseURL+"/auth/users", userToken, nil, nil)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}

	status, err = doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/auth/users/%d/mute", baseURL, userID),
		userToken, map[string]int{"duration_minutes": 5}, nil)
	if err != nil {
		t.Fatalf("mute as non-admin: %v", err)
	}
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin mute, got %d", status)
	}

	status, err = doJSON(t, http.MethodGet, baseURL+"/auth/users", "", nil, nil)
	if err != nil {
		t.Fatalf("list users without token: %v", err)
	}
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID int `json:"id"`
	} `json:"user"`
}

func registerUser(t *testing.T, baseURL, username, email string) (int, string, error) {
	t.Helper()

	payload := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}

	var parsed authResponse
	status, err := doJSON(t, http.MethodPost, baseURL+"/auth/register", "", payload, &parsed)
	if err != nil {
		return 0, "", err
	}
	if status != http.StatusCreated {
		return 0, "", fmt.Errorf("register status %d", status)
	}
	if parsed.Token == "" || parsed.User.ID == 0 {
		return 0, "", fmt.Errorf("incomplete register response")
	}
	return parsed.User.ID, parsed.Token, nil
}

func login(t *testing.T, baseURL, email string) (string, error) {
	t.Helper()

	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	var parsed authResponse
	status, err := doJSON(t, http.MethodPost, baseURL+"/auth/login", "", payload, &parsed)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login status %d", status)
	}
	return parsed.Token, nil
}

func promoteUserToAdmin(email string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = db.ExecContext(ctx, "UPDATE users SET role = 'admin', updated_at = NOW() WHERE email = $1", email)
	return err
}

func createCategory(t *testing.T, baseURL, token, name string) (int, error) {
	t.Helper()

	payload := map[string]string{
		"name":        name,
		"description": "created by the e2e suite",
	}

	var parsed struct {
		ID int `json:"id"`
	}
	status, err := doJSON(t, http.MethodPost, baseURL+"/categories", token, payload, &parsed)
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated {
		return 0, fmt.Errorf("create category status %d", status)
	}
	return parsed.ID, nil
}

func createPost(t *testing.T, baseURL, token string, categoryID int) (int, error) {
	t.Helper()

	payload := map[string]any{
		"title":       "An opinion",
		"content":     "Everyone should hear this.",
		"category_id": categoryID,
	}

	var parsed struct {
		ID int `json:"id"`
	}
	status, err := doJSON(t, http.MethodPost, baseURL+"/posts", token, payload, &parsed)
	if err != nil {
		return 0, err
	}
	if status != http.StatusCreated {
		return 0, fmt.Errorf("create post status %d", status)
	}
	return parsed.ID, nil
}

func addComment(t *testing.T, baseURL, token string, postID int) error {
	t.Helper()

	payload := map[string]string{"content": "Strongly agree."}
	status, err := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/posts/%d/comments", baseURL, postID), token, payload, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("add comment status %d", status)
	}
	return nil
}

func moderate(t *testing.T, baseURL, token string, userID int, action string, minutes int) error {
	t.Helper()

	payload := map[string]int{"duration_minutes": minutes}
	status, err := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/auth/users/%d/%s", baseURL, userID, action), token, payload, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s status %d", action, status)
	}
	return nil
}

func clearModeration(t *testing.T, baseURL, token string, userID int, action string) error {
	t.Helper()

	status, err := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/auth/users/%d/%s", baseURL, userID, action), token, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s status %d", action, status)
	}
	return nil
}

func moderationFlags(t *testing.T, baseURL, token string, userID int) (bool, bool, error) {
	t.Helper()

	var users []struct {
		ID       int  `json:"id"`
		IsMuted  bool `json:"is_muted"`
		IsBanned bool `json:"is_banned"`
	}
	status, err := doJSON(t, http.MethodGet, baseURL+"/auth/users", token, nil, &users)
	if err != nil {
		return false, false, err
	}
	if status != http.StatusOK {
		return false, false, fmt.Errorf("list users status %d", status)
	}
	for _, u := range users {
		if u.ID == userID {
			return u.IsMuted, u.IsBanned, nil
		}
	}
	return false, false, fmt.Errorf("user %d not in listing", userID)
}

func deleteUser(t *testing.T, baseURL, token string, userID int) error {
	t.Helper()

	status, err := doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/auth/users/%d", baseURL, userID), token, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("delete user status %d", status)
	}
	return nil
}

func doJSON(t *testing.T, method, url, token string, payload, out any) (int, error) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "forum")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "forum_db")
	_ = os.Setenv("DB_USE_SSL", "false")

	cfg := config.LoadConfig()
	log := logrus.New()

	srv, err := server.New(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
