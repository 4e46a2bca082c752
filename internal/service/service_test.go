package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/events"
	"github.com/spec-kit/feedback-service/internal/notify"
	"github.com/spec-kit/feedback-service/internal/persistence"
	"github.com/spec-kit/feedback-service/internal/repository"
)

const testAdminEmail = "admin@example.com"

type recordingSender struct {
	mu   sync.Mutex
	sent []events.Event
}

func (r *recordingSender) Send(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, event)
	return nil
}

func (r *recordingSender) kinds() map[events.Kind][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[events.Kind][]string{}
	for _, e := range r.sent {
		out[e.Kind()] = append(out[e.Kind()], e.Meta().To)
	}
	return out
}

func (r *recordingSender) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type failingTransport struct{}

func (failingTransport) Deliver(context.Context, notify.Message) error {
	return errors.New("provider unavailable")
}

type testEnv struct {
	stores     repository.Stores
	tickets    *TicketService
	categories *CategoryService
	stats      *StatsService
	dispatcher *events.Dispatcher
}

func newTestEnv(t *testing.T, sender events.Sender, opts ...events.Option) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.OpenSQLite(ctx,
		config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "feedback.db")}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	stores := repository.NewSQLiteStores(db.DB)

	cards := NewCardAllocator("AQA", stores.Cards, zap.NewNop())
	if err := cards.Initialize(ctx, stores.Tickets); err != nil {
		t.Fatalf("initialize allocator: %v", err)
	}
	dispatcher := events.NewDispatcher(sender, zap.NewNop(), opts...)
	t.Cleanup(dispatcher.Wait)
	categories := NewCategoryService(stores.Categories, zap.NewNop())
	if _, err := categories.CreateCategory(ctx, "Operations", "Billing", []string{"Refunds", "Invoices"}); err != nil {
		t.Fatalf("seed category: %v", err)
	}

	return &testEnv{
		stores:     stores,
		categories: categories,
		dispatcher: dispatcher,
		stats:      NewStatsService(stores.Tickets),
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:    stores.Tickets,
			Categories:    categories,
			Cards:         cards,
			Notifier:      NewNotificationService(dispatcher, testAdminEmail, zap.NewNop()),
			Logger:        zap.NewNop(),
			CreateRetries: 3,
		}),
	}
}

func (e *testEnv) caller(t *testing.T, email string) Caller {
	t.Helper()
	user := &domain.User{Email: email, PasswordHash: "hash", Role: domain.RoleUser}
	if err := e.stores.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return Caller{ID: user.ID, Email: user.Email}
}

func (e *testEnv) admin(t *testing.T) Caller {
	t.Helper()
	c := e.caller(t, "root@example.com")
	c.IsAdmin = true
	return c
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
