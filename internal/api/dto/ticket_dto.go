package dto

import (
	"time"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// CreateTicketRequest payload. Multipart submissions carry the same fields
// as form values plus the uploaded files.
type CreateTicketRequest struct {
	Type             domain.TicketType      `json:"type" form:"type"`
	Content          string                 `json:"content" form:"content"`
	Department       *string                `json:"department" form:"department"`
	Category         *string                `json:"category" form:"category"`
	Rating           *int                   `json:"rating" form:"rating"`
	Priority         *domain.TicketPriority `json:"priority" form:"priority"`
	AssignedTo       *string                `json:"assignedTo" form:"assignedTo"`
	IsAnonymous      bool                   `json:"isAnonymous" form:"isAnonymous"`
	RequiresFollowUp bool                   `json:"requiresFollowUp" form:"requiresFollowUp"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status        domain.TicketStatus `json:"status"`
	AdminResponse *string             `json:"adminResponse"`
}

// TriageRequest payload. Omitted fields are left unchanged.
type TriageRequest struct {
	Priority         *domain.TicketPriority `json:"priority"`
	AssignedTo       *string                `json:"assignedTo"`
	RequiresFollowUp *bool                  `json:"requiresFollowUp"`
}

// ChatMessageRequest payload.
type ChatMessageRequest struct {
	Message string `json:"message"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	CardID           string                `json:"cardId"`
	Type             domain.TicketType     `json:"type"`
	Content          string                `json:"content"`
	Department       *string               `json:"department"`
	Category         *string               `json:"category"`
	Rating           *domain.Rating        `json:"rating"`
	Status           domain.TicketStatus   `json:"status"`
	Priority         domain.TicketPriority `json:"priority"`
	AssignedTo       *string               `json:"assignedTo"`
	IsAnonymous      bool                  `json:"isAnonymous"`
	RequiresFollowUp bool                  `json:"requiresFollowUp"`
	Attachments      []string              `json:"attachments"`
	ChatMessages     []ChatMessageResponse `json:"chatMessages,omitempty"`
	AdminResponse    *string               `json:"adminResponse"`
	ResolvedAt       *time.Time            `json:"resolvedAt"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
	Submitter        *SubmitterResponse    `json:"submitter,omitempty"`
}

// SubmitterResponse identifies the owner in admin views.
type SubmitterResponse struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// ChatMessageResponse is one chat entry.
type ChatMessageResponse struct {
	Message   string    `json:"message"`
	IsAdmin   bool      `json:"isAdmin"`
	Timestamp time.Time `json:"timestamp"`
	UserID    *string   `json:"userId,omitempty"`
	AdminID   *string   `json:"adminId,omitempty"`
}

// TicketListResponse is a page of tickets.
type TicketListResponse struct {
	Items  []TicketResponse `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// StatsResponse mirrors domain.TicketStats.
type StatsResponse struct {
	TotalCount         int64                   `json:"totalCount"`
	FeedbackCount      int64                   `json:"feedbackCount"`
	RequestCount       int64                   `json:"requestCount"`
	StatusCounts       []StatusCountResponse   `json:"statusCounts"`
	AverageRating      float64                 `json:"averageRating"`
	RatingDistribution []RatingBucketResponse  `json:"ratingDistribution"`
	PopularCategories  []CategoryCountResponse `json:"popularCategories"`
}

// StatusCountResponse is one status bucket.
type StatusCountResponse struct {
	Status domain.TicketStatus `json:"status"`
	Count  int64               `json:"count"`
}

// RatingBucketResponse is one rating bucket.
type RatingBucketResponse struct {
	Rating domain.Rating `json:"rating"`
	Count  int64         `json:"count"`
}

// CategoryCountResponse is one category bucket.
type CategoryCountResponse struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}
