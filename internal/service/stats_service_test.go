package service

import (
	"context"
	"math"
	"testing"

	"github.com/spec-kit/feedback-service/internal/domain"
)

func TestStatsAggregates(t *testing.T) {
	env := newTestEnv(t, &recordingSender{})
	ctx := context.Background()
	owner := env.caller(t, "user@example.com")
	other := env.caller(t, "other@example.com")

	refunds := strPtr("Billing - Refunds")
	invoices := strPtr("Billing - Invoices")
	dept := strPtr("Operations")
	for i, rating := range []int{5, 4, 3, 5, 2, 4, 5} {
		category := refunds
		if i%3 == 0 {
			category = invoices
		}
		if _, err := env.tickets.CreateTicket(ctx, owner, TicketCreateInput{
			Type: domain.TicketTypeFeedback, Content: "fb", Rating: intPtr(rating),
			Department: dept, Category: category,
		}); err != nil {
			t.Fatalf("create feedback: %v", err)
		}
	}
	var lastRequest *domain.Ticket
	for i := 0; i < 3; i++ {
		ticket, err := env.tickets.CreateTicket(ctx, other, TicketCreateInput{Type: domain.TicketTypeRequest, Content: "req"})
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		lastRequest = ticket
	}
	if _, err := env.tickets.UpdateStatus(ctx, lastRequest.CardID, domain.TicketStatusResolved, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	stats, err := env.stats.Global(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalCount != 10 || stats.FeedbackCount != 7 || stats.RequestCount != 3 {
		t.Fatalf("counts total=%d feedback=%d request=%d", stats.TotalCount, stats.FeedbackCount, stats.RequestCount)
	}
	if math.Abs(stats.AverageRating-4.0) > 1e-9 {
		t.Fatalf("average = %v, want 4.0", stats.AverageRating)
	}

	wantDistribution := []domain.RatingBucket{{Rating: 2, Count: 1}, {Rating: 3, Count: 1}, {Rating: 4, Count: 2}, {Rating: 5, Count: 3}}
	if len(stats.RatingDistribution) != len(wantDistribution) {
		t.Fatalf("distribution = %+v", stats.RatingDistribution)
	}
	for i, want := range wantDistribution {
		if stats.RatingDistribution[i] != want {
			t.Fatalf("distribution[%d] = %+v, want %+v", i, stats.RatingDistribution[i], want)
		}
	}

	wantStatus := []domain.StatusCount{
		{Status: domain.TicketStatusPending, Count: 9},
		{Status: domain.TicketStatusResolved, Count: 1},
	}
	if len(stats.StatusCounts) != len(wantStatus) {
		t.Fatalf("status counts = %+v", stats.StatusCounts)
	}
	for i, want := range wantStatus {
		if stats.StatusCounts[i] != want {
			t.Fatalf("status[%d] = %+v, want %+v", i, stats.StatusCounts[i], want)
		}
	}

	if len(stats.PopularCategories) != 2 ||
		stats.PopularCategories[0] != (domain.CategoryCount{Category: "Billing - Refunds", Count: 4}) ||
		stats.PopularCategories[1] != (domain.CategoryCount{Category: "Billing - Invoices", Count: 3}) {
		t.Fatalf("popular categories = %+v", stats.PopularCategories)
	}

	mine, err := env.stats.ForOwner(ctx, other.ID)
	if err != nil {
		t.Fatalf("owner stats: %v", err)
	}
	if mine.TotalCount != 3 || mine.FeedbackCount != 0 || mine.AverageRating != 0 || len(mine.RatingDistribution) != 0 {
		t.Fatalf("unexpected owner stats %+v", mine)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	env := newTestEnv(t, &recordingSender{})
	stats, err := env.stats.Global(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalCount != 0 || stats.AverageRating != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.StatusCounts == nil || stats.RatingDistribution == nil || stats.PopularCategories == nil {
		t.Fatalf("empty aggregates should be empty slices")
	}
}
