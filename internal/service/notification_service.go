package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/events"
)

// NotificationService decides which notifications a ticket change triggers
// and hands them to the dispatcher. It never returns an error: delivery
// happens in the background and failures stay there.
type NotificationService struct {
	dispatcher *events.Dispatcher
	adminEmail string
	logger     *zap.Logger
	now        func() time.Time
}

// NewNotificationService creates the service. An empty adminEmail disables
// admin-addressed notifications.
func NewNotificationService(dispatcher *events.Dispatcher, adminEmail string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		adminEmail: strings.TrimSpace(adminEmail),
		logger:     logger,
		now:        time.Now,
	}
}

// TicketCreated confirms to the submitter and alerts the admin mailbox.
func (n *NotificationService) TicketCreated(ctx context.Context, ticket *domain.Ticket) {
	now := n.now()
	var batch []events.Event
	if ticket.Contactable() {
		batch = append(batch, events.Confirmation{
			Envelope: events.NewEnvelope(ticket.OwnerEmail, events.AudienceSubmitter, ticket, now),
		})
	}
	if n.adminEmail != "" {
		batch = append(batch, events.AdminNotify{
			Envelope:       events.NewEnvelope(n.adminEmail, events.AudienceAdmin, ticket, now),
			SubmitterEmail: ticket.OwnerEmail,
			IsAnonymous:    ticket.IsAnonymous,
			Department:     ticket.Department,
			Category:       ticket.Category,
			Rating:         ticket.Rating(),
			Priority:       ticket.Priority,
			Content:        ticket.Content,
		})
	}
	n.dispatch(ctx, ticket, batch)
}

// StatusChanged tells both the submitter and the admin mailbox.
func (n *NotificationService) StatusChanged(ctx context.Context, ticket *domain.Ticket) {
	now := n.now()
	var batch []events.Event
	if ticket.Contactable() {
		batch = append(batch, events.StatusUpdate{
			Envelope:      events.NewEnvelope(ticket.OwnerEmail, events.AudienceSubmitter, ticket, now),
			Status:        ticket.Status,
			AdminResponse: ticket.AdminResponse,
		})
	}
	if n.adminEmail != "" {
		batch = append(batch, events.StatusUpdate{
			Envelope:      events.NewEnvelope(n.adminEmail, events.AudienceAdmin, ticket, now),
			Status:        ticket.Status,
			AdminResponse: ticket.AdminResponse,
		})
	}
	n.dispatch(ctx, ticket, batch)
}

// ChatPosted relays msg to whoever did not write it.
func (n *NotificationService) ChatPosted(ctx context.Context, ticket *domain.Ticket, msg domain.ChatMessage) {
	var (
		to       string
		audience events.Audience
	)
	if msg.IsAdmin {
		if !ticket.Contactable() {
			n.skip(ticket, events.KindChatMessage, "submitter not contactable")
			return
		}
		to, audience = ticket.OwnerEmail, events.AudienceSubmitter
	} else {
		to, audience = n.adminEmail, events.AudienceAdmin
	}
	if to == "" {
		n.skip(ticket, events.KindChatMessage, "no recipient")
		return
	}
	n.dispatch(ctx, ticket, []events.Event{events.ChatMessage{
		Envelope:  events.NewEnvelope(to, audience, ticket, n.now()),
		Message:   msg.Message,
		FromAdmin: msg.IsAdmin,
	}})
}

func (n *NotificationService) dispatch(ctx context.Context, ticket *domain.Ticket, batch []events.Event) {
	if len(batch) == 0 {
		n.skip(ticket, "", "no recipients")
		return
	}
	n.dispatcher.Dispatch(ctx, batch...)
}

func (n *NotificationService) skip(ticket *domain.Ticket, kind events.Kind, reason string) {
	n.logger.Debug("notification skipped",
		zap.String("card_id", ticket.CardID),
		zap.String("kind", string(kind)),
		zap.String("reason", reason))
}
