package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/config"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/persistence"
)

func newTestStores(t *testing.T) Stores {
	t.Helper()
	db, err := persistence.OpenSQLite(context.Background(),
		config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "feedback.db")}, zap.NewNop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStores(db.DB)
}

func createUser(t *testing.T, stores Stores, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, PasswordHash: "hash", Role: domain.RoleUser}
	if err := stores.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTicket(t *testing.T, stores Stores, owner *domain.User, cardID string, rating *domain.Rating, category string) *domain.Ticket {
	t.Helper()
	ticketType := domain.TicketTypeRequest
	if rating != nil {
		ticketType = domain.TicketTypeFeedback
	}
	ticket, err := domain.NewTicket(ticketType, rating)
	if err != nil {
		t.Fatalf("new ticket: %v", err)
	}
	ticket.CardID = cardID
	ticket.OwnerID = owner.ID
	ticket.Content = "content for " + cardID
	if category != "" {
		dept := "Operations"
		ticket.Department = &dept
		ticket.Category = &category
	}
	if err := stores.Tickets.Create(context.Background(), ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return ticket
}

func ratingPtr(r int) *domain.Rating {
	v := domain.Rating(r)
	return &v
}

func TestTicketRoundTrip(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	owner := createUser(t, stores, "Owner@Example.com")

	created := createTicket(t, stores, owner, "AQA-0001", ratingPtr(4), "Billing - Refunds")
	if created.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	got, err := stores.Tickets.GetByCardID(ctx, "AQA-0001", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerEmail != "owner@example.com" {
		t.Fatalf("owner email = %q", got.OwnerEmail)
	}
	if got.Type() != domain.TicketTypeFeedback || got.Rating() == nil || *got.Rating() != 4 {
		t.Fatalf("unexpected variant: %+v", got)
	}
	if got.Status != domain.TicketStatusPending || got.ResolvedAt != nil {
		t.Fatalf("unexpected status %q resolvedAt %v", got.Status, got.ResolvedAt)
	}
	if got.Category == nil || *got.Category != "Billing - Refunds" {
		t.Fatalf("category = %v", got.Category)
	}

	other := "someone-else"
	if _, err := stores.Tickets.GetByCardID(ctx, "AQA-0001", &other); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}

func TestTicketDuplicateCardID(t *testing.T) {
	stores := newTestStores(t)
	owner := createUser(t, stores, "dup@example.com")
	createTicket(t, stores, owner, "AQA-0007", nil, "")

	ticket := domain.NewRequestTicket()
	ticket.CardID = "AQA-0007"
	ticket.OwnerID = owner.ID
	ticket.Content = "again"
	err := stores.Tickets.Create(context.Background(), ticket)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestTicketUpdateStatusPersistsResolvedAt(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	owner := createUser(t, stores, "status@example.com")
	ticket := createTicket(t, stores, owner, "AQA-0002", nil, "")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticket.ApplyStatus(domain.TicketStatusResolved, now)
	if err := stores.Tickets.Update(ctx, ticket); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := stores.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(now) {
		t.Fatalf("resolvedAt = %v, want %v", got.ResolvedAt, now)
	}

	ticket.ApplyStatus(domain.TicketStatusInProgress, now)
	if err := stores.Tickets.Update(ctx, ticket); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = stores.Tickets.GetByID(ctx, ticket.ID)
	if got.ResolvedAt != nil {
		t.Fatalf("resolvedAt should be cleared, got %v", got.ResolvedAt)
	}

	missing := &domain.Ticket{ID: 999, Status: domain.TicketStatusPending, Priority: domain.TicketPriorityLow}
	if err := stores.Tickets.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendChatMessageConcurrent(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	owner := createUser(t, stores, "chat@example.com")
	ticket := createTicket(t, stores, owner, "AQA-0003", nil, "")

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := domain.ChatMessage{Message: fmt.Sprintf("msg %d", i), Timestamp: time.Now().UTC()}
			if err := stores.Tickets.AppendChatMessage(ctx, ticket.ID, msg); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := stores.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if n := len(got.ChatMessages()); n != writers {
		t.Fatalf("chat length = %d, want %d", n, writers)
	}
}

func TestAppendChatMessageRejectsFeedback(t *testing.T) {
	stores := newTestStores(t)
	owner := createUser(t, stores, "fb@example.com")
	ticket := createTicket(t, stores, owner, "AQA-0004", ratingPtr(5), "")

	err := stores.Tickets.AppendChatMessage(context.Background(), ticket.ID, domain.ChatMessage{Message: "hi"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for feedback ticket, got %v", err)
	}
}

func TestListFiltersAndLatestCardID(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	if latest, err := stores.Tickets.LatestCardID(ctx); err != nil || latest != "" {
		t.Fatalf("latest on empty store = %q, %v", latest, err)
	}

	alice := createUser(t, stores, "alice@example.com")
	bob := createUser(t, stores, "bob@example.com")
	createTicket(t, stores, alice, "AQA-0001", ratingPtr(5), "")
	createTicket(t, stores, bob, "AQA-0002", nil, "")
	createTicket(t, stores, alice, "AQA-0003", nil, "")

	latest, err := stores.Tickets.LatestCardID(ctx)
	if err != nil || latest != "AQA-0003" {
		t.Fatalf("latest = %q, %v", latest, err)
	}

	tests := []struct {
		name   string
		filter TicketFilter
		want   []string
	}{
		{"all newest first", TicketFilter{}, []string{"AQA-0003", "AQA-0002", "AQA-0001"}},
		{"owner", TicketFilter{OwnerID: &alice.ID}, []string{"AQA-0003", "AQA-0001"}},
		{"type", TicketFilter{Types: []domain.TicketType{domain.TicketTypeRequest}}, []string{"AQA-0003", "AQA-0002"}},
		{"paged", TicketFilter{Limit: 1, Offset: 1}, []string{"AQA-0002"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := stores.Tickets.List(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d tickets, want %d", len(got), len(tc.want))
			}
			for i, card := range tc.want {
				if got[i].CardID != card {
					t.Fatalf("got[%d] = %s, want %s", i, got[i].CardID, card)
				}
			}
		})
	}
}

func TestAggregates(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	owner := createUser(t, stores, "agg@example.com")

	createTicket(t, stores, owner, "AQA-0001", ratingPtr(5), "Billing - Refunds")
	createTicket(t, stores, owner, "AQA-0002", ratingPtr(3), "Billing - Refunds")
	createTicket(t, stores, owner, "AQA-0003", ratingPtr(4), "Support - Access")
	createTicket(t, stores, owner, "AQA-0004", nil, "")

	count, err := stores.Tickets.Count(ctx, TicketFilter{})
	if err != nil || count != 4 {
		t.Fatalf("count = %d, %v", count, err)
	}
	avg, err := stores.Tickets.AverageRating(ctx, TicketFilter{})
	if err != nil || avg != 4.0 {
		t.Fatalf("avg = %v, %v", avg, err)
	}
	cats, err := stores.Tickets.GroupCount(ctx, GroupByCategory, TicketFilter{}, 5)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if len(cats) != 2 || cats[0].Key != "Billing - Refunds" || cats[0].Count != 2 {
		t.Fatalf("categories = %+v", cats)
	}
	ratings, err := stores.Tickets.GroupCount(ctx, GroupByRating, TicketFilter{}, 0)
	if err != nil || len(ratings) != 3 {
		t.Fatalf("ratings = %+v, %v", ratings, err)
	}
	if _, err := stores.Tickets.GroupCount(ctx, GroupField("content"), TicketFilter{}, 0); err == nil {
		t.Fatalf("expected error for unsupported group field")
	}
}

func TestSQLiteCardSequence(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	if err := stores.Cards.EnsureAtLeast(ctx, 42); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	n, err := stores.Cards.Next(ctx)
	if err != nil || n != 43 {
		t.Fatalf("next = %d, %v", n, err)
	}
	if err := stores.Cards.EnsureAtLeast(ctx, 10); err != nil {
		t.Fatalf("ensure lower: %v", err)
	}
	n, _ = stores.Cards.Next(ctx)
	if n != 44 {
		t.Fatalf("sequence went backwards: %d", n)
	}
}

func TestCategoryRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	cat := &domain.Category{Department: "Finance", MainCategory: "Billing", SubCategories: []string{"Refunds"}}
	if err := stores.Categories.Create(ctx, cat); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.Category{Department: "Finance", MainCategory: "Billing"}
	if err := stores.Categories.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	cat.SubCategories = append(cat.SubCategories, "Invoices")
	if err := stores.Categories.UpdateSubCategories(ctx, cat); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := stores.Categories.Get(ctx, "Finance", "Billing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasSubCategory("Invoices") || !got.HasSubCategory("Refunds") {
		t.Fatalf("subcategories = %v", got.SubCategories)
	}

	seed := &domain.Category{Department: "Finance", MainCategory: "Billing", SubCategories: []string{"Disputes"}}
	if err := stores.Categories.Upsert(ctx, seed); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ = stores.Categories.Get(ctx, "Finance", "Billing")
	if len(got.SubCategories) != 1 || got.SubCategories[0] != "Disputes" {
		t.Fatalf("upsert did not replace subcategories: %v", got.SubCategories)
	}

	if err := stores.Categories.Delete(ctx, "Finance", "Billing"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := stores.Categories.Get(ctx, "Finance", "Billing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestUserRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	user := createUser(t, stores, " Mixed@Example.COM ")

	got, err := stores.Users.GetByEmail(ctx, "mixed@example.com")
	if err != nil || got.ID != user.ID {
		t.Fatalf("get by email = %+v, %v", got, err)
	}
	if err := stores.Users.UpdateRole(ctx, user.ID, domain.RoleAdmin); err != nil {
		t.Fatalf("update role: %v", err)
	}
	got, _ = stores.Users.GetByID(ctx, user.ID)
	if !got.IsAdmin() {
		t.Fatalf("expected admin role, got %q", got.Role)
	}
	if err := stores.Users.UpdateRole(ctx, "missing", domain.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	dup := &domain.User{Email: "mixed@example.com", PasswordHash: "x", Role: domain.RoleUser}
	if err := stores.Users.Create(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}
