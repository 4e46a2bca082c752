package service

import (
	"context"
	"sort"
	"strconv"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

const defaultTopCategories = 5

// StatsService aggregates tickets on demand.
type StatsService struct {
	tickets       repository.TicketRepository
	topCategories int
}

// NewStatsService builds the service.
func NewStatsService(tickets repository.TicketRepository) *StatsService {
	return &StatsService{tickets: tickets, topCategories: defaultTopCategories}
}

// Global aggregates every ticket.
func (s *StatsService) Global(ctx context.Context) (*domain.TicketStats, error) {
	return s.compute(ctx, repository.TicketFilter{})
}

// ForOwner aggregates the tickets submitted by ownerID.
func (s *StatsService) ForOwner(ctx context.Context, ownerID string) (*domain.TicketStats, error) {
	return s.compute(ctx, repository.TicketFilter{OwnerID: &ownerID})
}

func (s *StatsService) compute(ctx context.Context, filter repository.TicketFilter) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{
		StatusCounts:       []domain.StatusCount{},
		RatingDistribution: []domain.RatingBucket{},
		PopularCategories:  []domain.CategoryCount{},
	}

	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	stats.TotalCount = total

	byType, err := s.tickets.GroupCount(ctx, repository.GroupByType, filter, 0)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	for _, g := range byType {
		switch domain.TicketType(g.Key) {
		case domain.TicketTypeFeedback:
			stats.FeedbackCount = g.Count
		case domain.TicketTypeRequest:
			stats.RequestCount = g.Count
		}
	}

	byStatus, err := s.tickets.GroupCount(ctx, repository.GroupByStatus, filter, 0)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	statusTotals := make(map[domain.TicketStatus]int64, len(byStatus))
	for _, g := range byStatus {
		statusTotals[domain.TicketStatus(g.Key)] = g.Count
	}
	for _, status := range domain.AllTicketStatuses {
		if n, ok := statusTotals[status]; ok {
			stats.StatusCounts = append(stats.StatusCounts, domain.StatusCount{Status: status, Count: n})
		}
	}

	if stats.AverageRating, err = s.tickets.AverageRating(ctx, filter); err != nil {
		return nil, apperrors.NewStorageError(err)
	}

	byRating, err := s.tickets.GroupCount(ctx, repository.GroupByRating, filter, 0)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	for _, g := range byRating {
		r, err := strconv.Atoi(g.Key)
		if err != nil {
			continue
		}
		stats.RatingDistribution = append(stats.RatingDistribution, domain.RatingBucket{Rating: domain.Rating(r), Count: g.Count})
	}
	sort.Slice(stats.RatingDistribution, func(i, j int) bool {
		return stats.RatingDistribution[i].Rating < stats.RatingDistribution[j].Rating
	})

	byCategory, err := s.tickets.GroupCount(ctx, repository.GroupByCategory, filter, s.topCategories)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	for _, g := range byCategory {
		stats.PopularCategories = append(stats.PopularCategories, domain.CategoryCount{Category: g.Key, Count: g.Count})
	}
	return stats, nil
}
