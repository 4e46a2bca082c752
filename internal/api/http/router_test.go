package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/app"
	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/observability"
)

type testServer struct {
	app        *fiber.App
	services   *app.Services
	uploadsDir string
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		App:    config.AppConfig{Name: "feedback-service", Env: "test", Version: "test"},
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite},
		SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "feedback.db")},
		Auth:   config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: 4},
		Notification: config.NotificationConfig{
			AdminEmail:       "admin@example.com",
			FrontendURL:      "http://app.test",
			AdminURL:         "http://app.test/admin",
			FailedListMaxLen: 10,
		},
		Ticket: config.TicketConfig{CardPrefix: "AQA", CardCounter: config.CardCounterStore, CreateRetries: 3},
		Uploads: config.UploadConfig{
			Dir:               filepath.Join(dir, "uploads"),
			PublicPath:        "/uploads/feedback",
			MaxFiles:          5,
			MaxFileBytes:      1024,
			AllowedExtensions: []string{".png", ".pdf"},
		},
	}
	logger := zap.NewNop()
	ctx := context.Background()

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(backend.Close)
	metrics := observability.NewMetrics()
	services, err := app.NewServices(ctx, cfg, backend, logger, metrics)
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	t.Cleanup(services.Dispatcher.Wait)

	if _, err := services.Categories.CreateCategory(ctx, "Operations", "Billing", []string{"Refunds"}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return &testServer{
		app:        app.NewServer(cfg, backend, services, logger, metrics),
		services:   services,
		uploadsDir: cfg.Uploads.Dir,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, env
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	status, env := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": "long enough"})
	if status != fiber.StatusCreated {
		t.Fatalf("register status %d: %+v", status, env.Error)
	}
	var data struct {
		Auth struct {
			Token string `json:"token"`
		} `json:"auth"`
	}
	decode(t, env, &data)
	return data.Auth.Token
}

func (s *testServer) admin(t *testing.T) string {
	t.Helper()
	token := s.register(t, "root@example.com")
	if _, err := s.services.Auth.SetRole(context.Background(), "root@example.com", domain.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	return token
}

func decode(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

type ticketView struct {
	CardID       string  `json:"cardId"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	Rating       *int    `json:"rating"`
	ResolvedAt   *string `json:"resolvedAt"`
	ChatMessages []struct {
		Message string `json:"message"`
		IsAdmin bool   `json:"isAdmin"`
	} `json:"chatMessages"`
	Submitter *struct {
		Email string `json:"email"`
	} `json:"submitter"`
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register(t, "user@example.com")
	admin := srv.admin(t)

	status, env := srv.do(t, fiber.MethodPost, "/feedback", user, map[string]any{"type": "feedback", "content": "great"})
	if status != fiber.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("missing rating: status %d error %+v", status, env.Error)
	}

	status, env = srv.do(t, fiber.MethodPost, "/feedback", user, map[string]any{
		"type": "feedback", "content": "great", "rating": 4,
		"department": "Operations", "category": "Billing - Refunds",
	})
	if status != fiber.StatusCreated {
		t.Fatalf("create status %d: %+v", status, env.Error)
	}
	var created ticketView
	decode(t, env, &created)
	if created.CardID != "AQA-0001" || created.Status != "pending" || created.Rating == nil || *created.Rating != 4 {
		t.Fatalf("unexpected created ticket %+v", created)
	}

	status, env = srv.do(t, fiber.MethodGet, "/feedback/user", user, nil)
	var own []ticketView
	decode(t, env, &own)
	if status != fiber.StatusOK || len(own) != 1 {
		t.Fatalf("own list status %d len %d", status, len(own))
	}

	if status, _ := srv.do(t, fiber.MethodGet, "/feedback/admin", user, nil); status != fiber.StatusForbidden {
		t.Fatalf("non-admin listing status = %d", status)
	}
	if status, _ := srv.do(t, fiber.MethodGet, "/feedback/user", "", nil); status != fiber.StatusUnauthorized {
		t.Fatalf("anonymous status = %d", status)
	}

	status, env = srv.do(t, fiber.MethodPatch, "/feedback/admin/AQA-0001/status", admin,
		map[string]any{"status": "resolved", "adminResponse": "thanks"})
	if status != fiber.StatusOK {
		t.Fatalf("update status %d: %+v", status, env.Error)
	}
	var resolved ticketView
	decode(t, env, &resolved)
	if resolved.Status != "resolved" || resolved.ResolvedAt == nil {
		t.Fatalf("unexpected resolved ticket %+v", resolved)
	}
	if resolved.Submitter == nil || resolved.Submitter.Email != "user@example.com" {
		t.Fatalf("admin view should include submitter: %+v", resolved.Submitter)
	}

	status, env = srv.do(t, fiber.MethodPost, "/feedback/user/AQA-0001/chat", user, map[string]string{"message": "hi"})
	if status != fiber.StatusConflict || env.Error == nil || env.Error.Code != "INVALID_STATE" {
		t.Fatalf("chat on feedback: status %d error %+v", status, env.Error)
	}

	status, env = srv.do(t, fiber.MethodGet, "/feedback/admin/AQA-0404", admin, nil)
	if status != fiber.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("missing ticket: status %d error %+v", status, env.Error)
	}
}

func TestRequestChatOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register(t, "user@example.com")
	other := srv.register(t, "other@example.com")
	admin := srv.admin(t)

	status, env := srv.do(t, fiber.MethodPost, "/feedback", user, map[string]any{"type": "request", "content": "help"})
	if status != fiber.StatusCreated {
		t.Fatalf("create status %d: %+v", status, env.Error)
	}
	var created ticketView
	decode(t, env, &created)

	if status, _ := srv.do(t, fiber.MethodPost, "/feedback/user/"+created.CardID+"/chat", user, map[string]string{"message": "first"}); status != fiber.StatusCreated {
		t.Fatalf("user chat status %d", status)
	}
	if status, _ := srv.do(t, fiber.MethodPost, "/feedback/admin/"+created.CardID+"/chat", admin, map[string]string{"message": "second"}); status != fiber.StatusCreated {
		t.Fatalf("admin chat status %d", status)
	}
	if status, _ := srv.do(t, fiber.MethodGet, "/feedback/user/"+created.CardID, other, nil); status != fiber.StatusNotFound {
		t.Fatalf("foreign ticket status %d", status)
	}

	_, env = srv.do(t, fiber.MethodGet, "/feedback/user/"+created.CardID, user, nil)
	var detail ticketView
	decode(t, env, &detail)
	if len(detail.ChatMessages) != 2 || detail.ChatMessages[0].Message != "first" || !detail.ChatMessages[1].IsAdmin {
		t.Fatalf("unexpected chat %+v", detail.ChatMessages)
	}

	status, env = srv.do(t, fiber.MethodGet, "/feedback/user/stats", user, nil)
	var stats struct {
		TotalCount   int64 `json:"totalCount"`
		RequestCount int64 `json:"requestCount"`
	}
	decode(t, env, &stats)
	if status != fiber.StatusOK || stats.TotalCount != 1 || stats.RequestCount != 1 {
		t.Fatalf("own stats status %d %+v", status, stats)
	}
}

func TestMultipartCreateStoresAttachments(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register(t, "user@example.com")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("type", "request")
	_ = writer.WriteField("content", "see attached")
	part, err := writer.CreateFormFile("files", "screen.png")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("fake png"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/feedback", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+user)
	status, env := srv.send(t, req)
	if status != fiber.StatusCreated {
		t.Fatalf("create status %d: %+v", status, env.Error)
	}
	var created struct {
		Attachments []string `json:"attachments"`
	}
	decode(t, env, &created)
	if len(created.Attachments) != 1 || !strings.HasPrefix(created.Attachments[0], "/uploads/feedback/") {
		t.Fatalf("unexpected attachments %v", created.Attachments)
	}

	resp, err := srv.app.Test(httptest.NewRequest(fiber.MethodGet, created.Attachments[0], nil), -1)
	if err != nil {
		t.Fatalf("fetch attachment: %v", err)
	}
	defer resp.Body.Close()
	content, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(content) != "fake png" {
		t.Fatalf("attachment fetch status %d body %q", resp.StatusCode, content)
	}
}

func TestCategoriesAndHealth(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register(t, "user@example.com")
	admin := srv.admin(t)

	status, env := srv.do(t, fiber.MethodGet, "/categories/Operations", user, nil)
	var dept map[string][]string
	decode(t, env, &dept)
	if status != fiber.StatusOK || len(dept["Billing"]) != 1 {
		t.Fatalf("department status %d %v", status, dept)
	}

	if status, _ := srv.do(t, fiber.MethodPost, "/categories", user, map[string]any{"department": "Ops", "name": "X"}); status != fiber.StatusForbidden {
		t.Fatalf("non-admin create status %d", status)
	}
	if status, env := srv.do(t, fiber.MethodPost, "/categories/Operations/Billing/subcategories", admin, map[string]string{"name": "Invoices"}); status != fiber.StatusCreated {
		t.Fatalf("add sub status %d: %+v", status, env.Error)
	}
	if status, _ := srv.do(t, fiber.MethodPost, "/categories/Operations/Billing/subcategories", admin, map[string]string{"name": "Invoices"}); status != fiber.StatusConflict {
		t.Fatalf("duplicate sub status %d", status)
	}

	if status, _ := srv.do(t, fiber.MethodGet, "/health/live", "", nil); status != fiber.StatusOK {
		t.Fatalf("live status %d", status)
	}
	if status, _ := srv.do(t, fiber.MethodGet, "/health/ready", "", nil); status != fiber.StatusOK {
		t.Fatalf("ready status %d", status)
	}
	status, env = srv.do(t, fiber.MethodGet, "/nope", "", nil)
	if status != fiber.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("unknown route status %d error %+v", status, env.Error)
	}
}

func TestOwnListingReturnsEveryTicket(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register(t, "user@example.com")

	const owned = 25
	for i := 0; i < owned; i++ {
		status, env := srv.do(t, fiber.MethodPost, "/feedback", user,
			map[string]any{"type": "request", "content": fmt.Sprintf("request %d", i)})
		if status != fiber.StatusCreated {
			t.Fatalf("create %d status %d: %+v", i, status, env.Error)
		}
	}

	status, env := srv.do(t, fiber.MethodGet, "/feedback/user", user, nil)
	var all []ticketView
	decode(t, env, &all)
	if status != fiber.StatusOK || len(all) != owned {
		t.Fatalf("own list status %d returned %d of %d", status, len(all), owned)
	}
	if all[0].CardID != "AQA-0025" || all[owned-1].CardID != "AQA-0001" {
		t.Fatalf("want newest first, got %s ... %s", all[0].CardID, all[owned-1].CardID)
	}

	_, env = srv.do(t, fiber.MethodGet, "/feedback/user?page=2&page_size=10", user, nil)
	var page []ticketView
	decode(t, env, &page)
	if len(page) != 10 || page[0].CardID != "AQA-0015" {
		t.Fatalf("second page: %d tickets starting at %+v", len(page), page)
	}
}

func TestRejectedMultipartCreateWritesNoFiles(t *testing.T) {
	srv := newTestServer(t)
	user := srv.register(t, "user@example.com")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	_ = writer.WriteField("type", "feedback")
	_ = writer.WriteField("content", "rating forgotten")
	part, err := writer.CreateFormFile("files", "screen.png")
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("fake png"))
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	req := httptest.NewRequest(fiber.MethodPost, "/feedback", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+user)
	status, env := srv.send(t, req)
	if status != fiber.StatusBadRequest || env.Error == nil || env.Error.Code != "VALIDATION_FAILED" {
		t.Fatalf("status %d error %+v", status, env.Error)
	}

	entries, err := os.ReadDir(srv.uploadsDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read uploads: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected ticket left %d files on disk", len(entries))
	}
}
