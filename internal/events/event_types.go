package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/feedback-service/internal/domain"
)

// Kind enumerates the notification vocabulary.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindAdminNotify  Kind = "admin_notify"
	KindStatusUpdate Kind = "status_update"
	KindChatMessage  Kind = "chat_message"
)

// Audience says which party an event is addressed to.
type Audience string

const (
	AudienceSubmitter Audience = "submitter"
	AudienceAdmin     Audience = "admin"
)

// Envelope carries the fields every event shares.
type Envelope struct {
	ID         string            `json:"id"`
	To         string            `json:"to"`
	Audience   Audience          `json:"audience"`
	CardID     string            `json:"card_id"`
	TicketType domain.TicketType `json:"ticket_type"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewEnvelope stamps a fresh id and time for one outgoing message.
func NewEnvelope(to string, audience Audience, ticket *domain.Ticket, now time.Time) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		To:         to,
		Audience:   audience,
		CardID:     ticket.CardID,
		TicketType: ticket.Type(),
		OccurredAt: now,
	}
}

// Event is implemented only by the variants in this file.
type Event interface {
	Kind() Kind
	Meta() Envelope
	sealed()
}

// Confirmation acknowledges a new ticket to its submitter.
type Confirmation struct {
	Envelope
}

// AdminNotify announces a new ticket to the admin mailbox.
type AdminNotify struct {
	Envelope
	SubmitterEmail string
	IsAnonymous    bool
	Department     *string
	Category       *string
	Rating         *domain.Rating
	Priority       domain.TicketPriority
	Content        string
}

// StatusUpdate reports a status change to one party.
type StatusUpdate struct {
	Envelope
	Status        domain.TicketStatus
	AdminResponse *string
}

// ChatMessage relays a chat entry to the counter-party.
type ChatMessage struct {
	Envelope
	Message   string
	FromAdmin bool
}

func (Confirmation) Kind() Kind { return KindConfirmation }
func (AdminNotify) Kind() Kind  { return KindAdminNotify }
func (StatusUpdate) Kind() Kind { return KindStatusUpdate }
func (ChatMessage) Kind() Kind  { return KindChatMessage }

func (e Confirmation) Meta() Envelope { return e.Envelope }
func (e AdminNotify) Meta() Envelope  { return e.Envelope }
func (e StatusUpdate) Meta() Envelope { return e.Envelope }
func (e ChatMessage) Meta() Envelope  { return e.Envelope }

func (Confirmation) sealed() {}
func (AdminNotify) sealed()  {}
func (StatusUpdate) sealed() {}
func (ChatMessage) sealed()  {}
