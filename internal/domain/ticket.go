package domain

import (
	"errors"
	"time"
)

// TicketType selects which optional fields apply to a ticket.
type TicketType string

const (
	TicketTypeFeedback TicketType = "feedback"
	TicketTypeRequest  TicketType = "request"
)

// IsValid reports whether the type is one of the known ticket types.
func (t TicketType) IsValid() bool {
	return t == TicketTypeFeedback || t == TicketTypeRequest
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusRejected   TicketStatus = "rejected"
)

// AllTicketStatuses lists every status in lifecycle order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusRejected,
}

// IsValid reports whether the status is a known lifecycle state.
func (s TicketStatus) IsValid() bool {
	for _, candidate := range AllTicketStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// IsValid reports whether the priority is known.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// Rating is the 1-5 score carried by feedback tickets.
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

// IsValid reports whether the rating is within bounds.
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

var (
	ErrInvalidTicketType = errors.New("ticket type must be feedback or request")
	ErrRatingRequired    = errors.New("rating is required for feedback submissions")
	ErrRatingOutOfRange  = errors.New("rating must be between 1 and 5")
	ErrChatNotAllowed    = errors.New("chat is only available on request tickets")
)

// ChatMessage is one entry of a request ticket's thread.
type ChatMessage struct {
	Message   string    `json:"message"`
	IsAdmin   bool      `json:"isAdmin"`
	Timestamp time.Time `json:"timestamp"`
	UserID    *string   `json:"userId,omitempty"`
	AdminID   *string   `json:"adminId,omitempty"`
}

// FeedbackDetails holds the fields that only exist on feedback tickets.
type FeedbackDetails struct {
	Rating Rating
}

// RequestDetails holds the append-only chat thread of a request ticket.
type RequestDetails struct {
	Chat []ChatMessage
}

// Ticket is the aggregate for feedback and request submissions.
// Exactly one of Feedback or Request is non-nil.
type Ticket struct {
	ID               int64
	CardID           string
	OwnerID          string
	OwnerEmail       string
	Content          string
	Department       *string
	Category         *string
	Status           TicketStatus
	Priority         TicketPriority
	AssignedTo       *string
	IsAnonymous      bool
	RequiresFollowUp bool
	Attachments      []string
	AdminResponse    *string
	ResolvedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Feedback *FeedbackDetails
	Request  *RequestDetails
}

// NewFeedbackTicket builds a pending feedback ticket. The rating is mandatory.
func NewFeedbackTicket(rating Rating) (*Ticket, error) {
	if !rating.IsValid() {
		return nil, ErrRatingOutOfRange
	}
	return &Ticket{
		Status:      TicketStatusPending,
		Priority:    TicketPriorityMedium,
		Attachments: []string{},
		Feedback:    &FeedbackDetails{Rating: rating},
	}, nil
}

// NewRequestTicket builds a pending request ticket with an empty chat thread.
func NewRequestTicket() *Ticket {
	return &Ticket{
		Status:      TicketStatusPending,
		Priority:    TicketPriorityMedium,
		Attachments: []string{},
		Request:     &RequestDetails{Chat: []ChatMessage{}},
	}
}

// NewTicket picks the variant for ticketType. A rating supplied for a
// request ticket is dropped.
func NewTicket(ticketType TicketType, rating *Rating) (*Ticket, error) {
	switch ticketType {
	case TicketTypeFeedback:
		if rating == nil {
			return nil, ErrRatingRequired
		}
		return NewFeedbackTicket(*rating)
	case TicketTypeRequest:
		return NewRequestTicket(), nil
	default:
		return nil, ErrInvalidTicketType
	}
}

// Type derives the ticket type from the populated variant.
func (t *Ticket) Type() TicketType {
	if t.Request != nil {
		return TicketTypeRequest
	}
	return TicketTypeFeedback
}

// Rating returns the feedback rating or nil for request tickets.
func (t *Ticket) Rating() *Rating {
	if t.Feedback == nil {
		return nil
	}
	r := t.Feedback.Rating
	return &r
}

// ChatMessages returns the thread of a request ticket, nil otherwise.
func (t *Ticket) ChatMessages() []ChatMessage {
	if t.Request == nil {
		return nil
	}
	return t.Request.Chat
}

// ApplyStatus moves the ticket to status and recomputes ResolvedAt.
func (t *Ticket) ApplyStatus(status TicketStatus, now time.Time) {
	t.Status = status
	if status == TicketStatusResolved {
		resolved := now
		t.ResolvedAt = &resolved
		return
	}
	t.ResolvedAt = nil
}

// AppendChat adds msg to the thread of a request ticket.
func (t *Ticket) AppendChat(msg ChatMessage) error {
	if t.Request == nil {
		return ErrChatNotAllowed
	}
	t.Request.Chat = append(t.Request.Chat, msg)
	return nil
}

// Contactable reports whether the submitter may be emailed about this ticket.
func (t *Ticket) Contactable() bool {
	return !t.IsAnonymous && t.OwnerEmail != ""
}
