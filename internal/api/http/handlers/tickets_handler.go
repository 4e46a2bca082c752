package handlers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/feedback-service/internal/api/dto"
	"github.com/spec-kit/feedback-service/internal/service"
	apperrors "github.com/spec-kit/feedback-service/pkg/util/errorutil"
)

const attachmentField = "files"

// TicketsHandler manages submitter ticket endpoints.
type TicketsHandler struct {
	service     *service.TicketService
	stats       *service.StatsService
	attachments *service.AttachmentStore
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, stats *service.StatsService, attachments *service.AttachmentStore) *TicketsHandler {
	return &TicketsHandler{service: ticketService, stats: stats, attachments: attachments}
}

// CreateTicket POST /feedback. Accepts JSON or multipart with files.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var files []*multipart.FileHeader
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return apperrors.NewValidationError("invalid multipart form", nil)
		}
		files = form.File[attachmentField]
	}

	input := service.TicketCreateInput{
		Type:             req.Type,
		Content:          req.Content,
		Department:       req.Department,
		Category:         req.Category,
		Rating:           req.Rating,
		Priority:         req.Priority,
		AssignedTo:       req.AssignedTo,
		IsAnonymous:      req.IsAnonymous,
		RequiresFollowUp: req.RequiresFollowUp,
	}
	// Nothing is written to disk for a ticket that would be rejected.
	if len(files) > 0 {
		if err := h.service.ValidateCreate(c.UserContext(), caller, input); err != nil {
			return err
		}
	}
	paths, err := h.attachments.Save(files)
	if err != nil {
		return err
	}
	input.Attachments = paths

	ticket, err := h.service.CreateTicket(c.UserContext(), caller, input)
	if err != nil {
		h.attachments.Remove(paths)
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket, false)})
}

// ListOwn GET /feedback/user.
func (h *TicketsHandler) ListOwn(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	// Without paging parameters every owned ticket is returned.
	limit, offset := 0, 0
	if c.Query("page") != "" || c.Query("page_size") != "" {
		limit, offset = paging(c)
	}
	tickets, err := h.service.ListOwnTickets(c.UserContext(), caller, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets, false)})
}

// GetOwn GET /feedback/user/:cardId.
func (h *TicketsHandler) GetOwn(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetOwnTicket(c.UserContext(), caller, c.Params("cardId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket, false)})
}

// AddChatMessage POST /feedback/user/:cardId/chat.
func (h *TicketsHandler) AddChatMessage(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.service.AddUserChatMessage(c.UserContext(), caller, c.Params("cardId"), req.Message)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": chatMessageResponse(*msg)})
}

// OwnStats GET /feedback/user/stats.
func (h *TicketsHandler) OwnStats(c *fiber.Ctx) error {
	caller, err := callerFromContext(c)
	if err != nil {
		return err
	}
	stats, err := h.stats.ForOwner(c.UserContext(), caller.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": statsResponse(stats)})
}
