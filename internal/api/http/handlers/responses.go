package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/dto"
	"github.com/spec-kit/feedback-service/internal/auth"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/service"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func callerFromContext(c *fiber.Ctx) (service.Caller, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return service.Caller{}, apperrors.NewUnauthorized("authentication required")
	}
	return service.Caller{
		ID:      principal.ID(),
		Email:   principal.ContactAddress(),
		IsAdmin: principal.IsAdmin(),
	}, nil
}

func ticketResponse(ticket *domain.Ticket, withSubmitter bool) dto.TicketResponse {
	resp := dto.TicketResponse{
		CardID:           ticket.CardID,
		Type:             ticket.Type(),
		Content:          ticket.Content,
		Department:       ticket.Department,
		Category:         ticket.Category,
		Rating:           ticket.Rating(),
		Status:           ticket.Status,
		Priority:         ticket.Priority,
		AssignedTo:       ticket.AssignedTo,
		IsAnonymous:      ticket.IsAnonymous,
		RequiresFollowUp: ticket.RequiresFollowUp,
		Attachments:      ticket.Attachments,
		AdminResponse:    ticket.AdminResponse,
		ResolvedAt:       ticket.ResolvedAt,
		CreatedAt:        ticket.CreatedAt,
		UpdatedAt:        ticket.UpdatedAt,
	}
	if resp.Attachments == nil {
		resp.Attachments = []string{}
	}
	if ticket.Request != nil {
		resp.ChatMessages = make([]dto.ChatMessageResponse, 0, len(ticket.Request.Chat))
		for _, msg := range ticket.Request.Chat {
			resp.ChatMessages = append(resp.ChatMessages, chatMessageResponse(msg))
		}
	}
	if withSubmitter {
		submitter := &dto.SubmitterResponse{ID: ticket.OwnerID}
		if !ticket.IsAnonymous {
			submitter.Email = ticket.OwnerEmail
		}
		resp.Submitter = submitter
	}
	return resp
}

func ticketResponses(tickets []domain.Ticket, withSubmitter bool) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i], withSubmitter))
	}
	return items
}

func chatMessageResponse(msg domain.ChatMessage) dto.ChatMessageResponse {
	return dto.ChatMessageResponse{
		Message:   msg.Message,
		IsAdmin:   msg.IsAdmin,
		Timestamp: msg.Timestamp,
		UserID:    msg.UserID,
		AdminID:   msg.AdminID,
	}
}

func statsResponse(stats *domain.TicketStats) dto.StatsResponse {
	resp := dto.StatsResponse{
		TotalCount:         stats.TotalCount,
		FeedbackCount:      stats.FeedbackCount,
		RequestCount:       stats.RequestCount,
		AverageRating:      stats.AverageRating,
		StatusCounts:       make([]dto.StatusCountResponse, 0, len(stats.StatusCounts)),
		RatingDistribution: make([]dto.RatingBucketResponse, 0, len(stats.RatingDistribution)),
		PopularCategories:  make([]dto.CategoryCountResponse, 0, len(stats.PopularCategories)),
	}
	for _, s := range stats.StatusCounts {
		resp.StatusCounts = append(resp.StatusCounts, dto.StatusCountResponse{Status: s.Status, Count: s.Count})
	}
	for _, r := range stats.RatingDistribution {
		resp.RatingDistribution = append(resp.RatingDistribution, dto.RatingBucketResponse{Rating: r.Rating, Count: r.Count})
	}
	for _, p := range stats.PopularCategories {
		resp.PopularCategories = append(resp.PopularCategories, dto.CategoryCountResponse{Category: p.Category, Count: p.Count})
	}
	return resp
}

func categoryResponse(category *domain.Category) dto.CategoryResponse {
	subs := category.SubCategories
	if subs == nil {
		subs = []string{}
	}
	return dto.CategoryResponse{Department: category.Department, Name: category.MainCategory, SubCategories: subs}
}

// paging reads page and page_size, returning limit and offset.
func paging(c *fiber.Ctx) (int, int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}
