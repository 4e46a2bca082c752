package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/repository"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

// Caller is the verified identity behind a request.
type Caller struct {
	ID      string
	Email   string
	IsAdmin bool
}

// TicketService coordinates the ticket lifecycle: validation, card id
// allocation, persistence, status transitions, chat and notifications.
type TicketService struct {
	tickets       repository.TicketRepository
	categories    *CategoryService
	cards         *CardAllocator
	notifier      *NotificationService
	logger        *zap.Logger
	now           func() time.Time
	createRetries int
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	Categories    *CategoryService
	Cards         *CardAllocator
	Notifier      *NotificationService
	Logger        *zap.Logger
	CreateRetries int
}

// TicketCreateInput describes a ticket submission.
type TicketCreateInput struct {
	Type             domain.TicketType
	Content          string
	Department       *string
	Category         *string
	Rating           *int
	Priority         *domain.TicketPriority
	AssignedTo       *string
	IsAnonymous      bool
	RequiresFollowUp bool
	Attachments      []string
}

// TicketListFilter describes admin listing filters.
type TicketListFilter struct {
	Types      []domain.TicketType
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Department *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TriageInput carries optional admin triage changes. Nil fields are left as is;
// an empty AssignedTo clears the assignee.
type TriageInput struct {
	Priority         *domain.TicketPriority
	AssignedTo       *string
	RequiresFollowUp *bool
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := deps.CreateRetries
	if retries <= 0 {
		retries = 1
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		categories:    deps.Categories,
		cards:         deps.Cards,
		notifier:      deps.Notifier,
		logger:        logger,
		now:           time.Now,
		createRetries: retries,
	}
}

// CreateTicket validates input, allocates a card id and persists a pending
// ticket owned by caller. Notifications are started but not awaited.
func (s *TicketService) CreateTicket(ctx context.Context, caller Caller, input TicketCreateInput) (*domain.Ticket, error) {
	ticket, err := s.buildTicket(ctx, caller, input)
	if err != nil {
		return nil, err
	}
	if err := s.insertWithFreshCard(ctx, ticket); err != nil {
		return nil, err
	}

	s.logger.Info("ticket created",
		zap.String("card_id", ticket.CardID),
		zap.String("type", string(ticket.Type())),
		zap.String("owner_id", ticket.OwnerID))
	s.notifier.TicketCreated(ctx, ticket)
	return ticket, nil
}

// ValidateCreate runs the CreateTicket checks without persisting anything.
// Callers use it before side effects such as storing uploads.
func (s *TicketService) ValidateCreate(ctx context.Context, caller Caller, input TicketCreateInput) error {
	_, err := s.buildTicket(ctx, caller, input)
	return err
}

func (s *TicketService) buildTicket(ctx context.Context, caller Caller, input TicketCreateInput) (*domain.Ticket, error) {
	if !input.Type.IsValid() {
		return nil, apperrors.NewValidationError(domain.ErrInvalidTicketType.Error(), map[string]any{"type": input.Type})
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("content is required", nil)
	}
	department := trimmedOrNil(input.Department)
	category := trimmedOrNil(input.Category)
	if err := s.categories.Validate(ctx, department, category); err != nil {
		return nil, err
	}

	var rating *domain.Rating
	if input.Rating != nil {
		r := domain.Rating(*input.Rating)
		rating = &r
	}
	ticket, err := domain.NewTicket(input.Type, rating)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}

	ticket.OwnerID = caller.ID
	ticket.OwnerEmail = caller.Email
	ticket.Content = content
	ticket.Department = department
	ticket.Category = category
	ticket.AssignedTo = trimmedOrNil(input.AssignedTo)
	ticket.IsAnonymous = input.IsAnonymous
	ticket.RequiresFollowUp = input.RequiresFollowUp
	if len(input.Attachments) > 0 {
		ticket.Attachments = append([]string(nil), input.Attachments...)
	}
	return ticket, nil
}

func (s *TicketService) insertWithFreshCard(ctx context.Context, ticket *domain.Ticket) error {
	var lastErr error
	for attempt := 1; attempt <= s.createRetries; attempt++ {
		cardID, err := s.cards.Next(ctx)
		if err != nil {
			return apperrors.NewStorageError(err)
		}
		ticket.CardID = cardID
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return apperrors.NewStorageError(err)
		}
		lastErr = err
		s.logger.Warn("card id already taken; allocating another",
			zap.String("card_id", cardID), zap.Int("attempt", attempt))
	}
	return apperrors.NewStorageError(lastErr)
}

// ListOwnTickets returns the caller's tickets, newest first.
func (s *TicketService) ListOwnTickets(ctx context.Context, caller Caller, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{OwnerID: &caller.ID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return tickets, nil
}

// ListAllTickets returns the filtered page and the total number of matches.
func (s *TicketService) ListAllTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, int64, error) {
	repoFilter := repository.TicketFilter{
		Types:      filter.Types,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Department: trimmedOrNil(filter.Department),
		SearchTerm: trimmedOrNil(filter.SearchTerm),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.NewStorageError(err)
	}
	total, err := s.tickets.Count(ctx, repoFilter)
	if err != nil {
		return nil, 0, apperrors.NewStorageError(err)
	}
	return tickets, total, nil
}

// GetTicket returns the ticket for cardID. Non-admin callers only see their
// own tickets; anything else is reported as not found.
func (s *TicketService) GetTicket(ctx context.Context, caller Caller, cardID string) (*domain.Ticket, error) {
	var owner *string
	if !caller.IsAdmin {
		owner = &caller.ID
	}
	return s.lookup(ctx, cardID, owner)
}

// GetOwnTicket returns cardID only when caller owns it, whatever the role.
func (s *TicketService) GetOwnTicket(ctx context.Context, caller Caller, cardID string) (*domain.Ticket, error) {
	return s.lookup(ctx, cardID, &caller.ID)
}

// UpdateStatus moves a ticket to status. resolvedAt is set only when the new
// status is resolved and cleared otherwise. A non-nil adminResponse replaces
// the stored one. Concurrent updates to one ticket are last-write-wins.
func (s *TicketService) UpdateStatus(ctx context.Context, cardID string, status domain.TicketStatus, adminResponse *string) (*domain.Ticket, error) {
	if !status.IsValid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	ticket, err := s.lookup(ctx, cardID, nil)
	if err != nil {
		return nil, err
	}

	previous := ticket.Status
	ticket.ApplyStatus(status, s.now().UTC())
	if adminResponse != nil {
		response := *adminResponse
		ticket.AdminResponse = &response
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError(err, "ticket", map[string]any{"cardId": cardID})
	}

	s.logger.Info("ticket status updated",
		zap.String("card_id", ticket.CardID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	s.notifier.StatusChanged(ctx, ticket)
	return ticket, nil
}

// UpdateTriage applies admin triage fields. No notification is sent.
func (s *TicketService) UpdateTriage(ctx context.Context, cardID string, input TriageInput) (*domain.Ticket, error) {
	if input.Priority != nil && !input.Priority.IsValid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
	}
	ticket, err := s.lookup(ctx, cardID, nil)
	if err != nil {
		return nil, err
	}
	if input.Priority != nil {
		ticket.Priority = *input.Priority
	}
	if input.AssignedTo != nil {
		ticket.AssignedTo = trimmedOrNil(input.AssignedTo)
	}
	if input.RequiresFollowUp != nil {
		ticket.RequiresFollowUp = *input.RequiresFollowUp
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, storeError(err, "ticket", map[string]any{"cardId": cardID})
	}
	return ticket, nil
}

// AddUserChatMessage appends a message from the ticket's owner.
func (s *TicketService) AddUserChatMessage(ctx context.Context, caller Caller, cardID, message string) (*domain.ChatMessage, error) {
	ticket, err := s.lookup(ctx, cardID, &caller.ID)
	if err != nil {
		return nil, err
	}
	return s.addChat(ctx, ticket, message, false, caller.ID)
}

// AddAdminChatMessage appends a message from an admin.
func (s *TicketService) AddAdminChatMessage(ctx context.Context, caller Caller, cardID, message string) (*domain.ChatMessage, error) {
	if !caller.IsAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	ticket, err := s.lookup(ctx, cardID, nil)
	if err != nil {
		return nil, err
	}
	return s.addChat(ctx, ticket, message, true, caller.ID)
}

func (s *TicketService) addChat(ctx context.Context, ticket *domain.Ticket, message string, isAdmin bool, actorID string) (*domain.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", nil)
	}

	msg := domain.ChatMessage{Message: message, IsAdmin: isAdmin, Timestamp: s.now().UTC()}
	actor := actorID
	if isAdmin {
		msg.AdminID = &actor
	} else {
		msg.UserID = &actor
	}
	if err := ticket.AppendChat(msg); err != nil {
		return nil, apperrors.NewStateError(err.Error(), map[string]any{"cardId": ticket.CardID, "type": ticket.Type()})
	}
	if err := s.tickets.AppendChatMessage(ctx, ticket.ID, msg); err != nil {
		return nil, storeError(err, "ticket", map[string]any{"cardId": ticket.CardID})
	}

	s.notifier.ChatPosted(ctx, ticket, msg)
	return &msg, nil
}

func (s *TicketService) lookup(ctx context.Context, cardID string, owner *string) (*domain.Ticket, error) {
	cardID = strings.TrimSpace(cardID)
	ticket, err := s.tickets.GetByCardID(ctx, cardID, owner)
	if err != nil {
		return nil, storeError(err, "ticket", map[string]any{"cardId": cardID})
	}
	return ticket, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
