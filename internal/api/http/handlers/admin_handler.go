package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/dto"
	"github.com/spec-kit/feedback-service/internal/domain"
	"github.com/spec-kit/feedback-service/internal/notify"
	"github.com/spec-kit/feedback-service/internal/service"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

// AdminHandler exposes admin ticket management endpoints.
type AdminHandler struct {
	service  *service.TicketService
	stats    *service.StatsService
	failures notify.FailureStore
}

// NewAdminHandler constructs handler.
func NewAdminHandler(ticketService *service.TicketService, stats *service.StatsService, failures notify.FailureStore) *AdminHandler {
	return &AdminHandler{service: ticketService, stats: stats, failures: failures}
}

// ListTickets GET /feedback/admin.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	limit, offset := paging(c)
	filter := service.TicketListFilter{
		Department: optionalQuery(c, "department"),
		SearchTerm: optionalQuery(c, "search"),
		Limit:      limit,
		Offset:     offset,
	}
	for _, v := range splitList(c.Query("type")) {
		filter.Types = append(filter.Types, domain.TicketType(v))
	}
	for _, v := range splitList(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, domain.TicketStatus(v))
	}
	for _, v := range splitList(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.TicketPriority(v))
	}

	tickets, total, err := h.service.ListAllTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketListResponse{
		Items:  ticketResponses(tickets, true),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}})
}

// GetTicket GET /feedback/admin/:cardId.
func (h *AdminHandler) GetTicket(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), caller, c.Params("cardId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, true)})
}

// UpdateStatus PATCH /feedback/admin/:cardId/status.
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), c.Params("cardId"), req.Status, req.AdminResponse)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, true)})
}

// UpdateTriage PATCH /feedback/admin/:cardId.
func (h *AdminHandler) UpdateTriage(c *fiber.Ctx) error {
	var req dto.TriageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTriage(c.UserContext(), c.Params("cardId"), service.TriageInput{
		Priority:         req.Priority,
		AssignedTo:       req.AssignedTo,
		RequiresFollowUp: req.RequiresFollowUp,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, true)})
}

// AddChatMessage POST /feedback/admin/:cardId/chat.
func (h *AdminHandler) AddChatMessage(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddAdminChatMessage(c.UserContext(), caller, c.Params("cardId"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": chatMessageResponse(*msg)})
}

// Stats GET /feedback/admin/stats.
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.stats.Global(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statsResponse(stats)})
}

// FailedNotifications GET /feedback/admin/notifications/failed.
func (h *AdminHandler) FailedNotifications(c *fiber.Ctx) error {
	failures, err := h.failures.List(c.UserContext(), parseInt(c.Query("limit"), 50))
	if err != nil {
		return apperrors.NewStorageError(err)
	}
	return c.JSON(fiber.Map{"data": failures})
}
