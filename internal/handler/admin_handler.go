package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/repository"
	"github.com/opvera/opvera-api/internal/service"
	"github.com/opvera/opvera-api/internal/utils"
)

// AdminHandler wires the moderation surface: user bans, kicks, channel
// deletion, bulk message removal, role changes and the audit trail.
type AdminHandler struct {
	moderation service.ModerationService
	audit      service.AuditService
	users      service.UserService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(
	moderation service.ModerationService,
	audit service.AuditService,
	users service.UserService,
	validator *validator.Validate,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		moderation: moderation,
		audit:      audit,
		users:      users,
		validator:  validator,
		logger:     logger.With().Str("component", "admin_handler").Logger(),
	}
}

// Register attaches moderation endpoints to the router group.
func (h *AdminHandler) Register(router fiber.Router) {
	router.Post("/ban", h.banUser)
	router.Post("/kick", h.kickUser)
	router.Delete("/channels/:id", h.deleteChannel)
	router.Post("/messages/bulk-delete", h.bulkDeleteMessages)
	router.Get("/messages/search", h.searchMessages)
	router.Patch("/users/:id/role", h.changeRole)
	router.Get("/audit-logs", h.listAuditLogs)
	router.Patch("/audit-logs/:id/review", h.reviewAuditLog)
}

func (h *AdminHandler) banUser(c *fiber.Ctx) error {
	var payload dto.BanRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.moderation.BanUser(requestContext(c), actorFromContext(c), payload); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user banned", nil)
}

func (h *AdminHandler) kickUser(c *fiber.Ctx) error {
	var payload dto.KickRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.moderation.KickUser(requestContext(c), actorFromContext(c), payload); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "user kicked", nil)
}

func (h *AdminHandler) deleteChannel(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.moderation.DeleteChannel(requestContext(c), actorFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "channel deleted", nil)
}

func (h *AdminHandler) bulkDeleteMessages(c *fiber.Ctx) error {
	var payload dto.BulkDeleteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	deleted, err := h.moderation.BulkDeleteMessages(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "messages deleted", fiber.Map{"deleted": deleted})
}

func (h *AdminHandler) searchMessages(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.moderation.SearchMessages(requestContext(c), actorFromContext(c), c.Query("q"), limit)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "messages retrieved", messages)
}

func (h *AdminHandler) changeRole(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("id"))
	if userID == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "user id required")
	}

	var payload struct {
		Role string `json:"role" validate:"required,max=32"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.users.ChangeRole(requestContext(c), actorFromContext(c), userID, strings.ToLower(payload.Role))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "role updated", user)
}

func (h *AdminHandler) listAuditLogs(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	filter := repository.AuditLogFilter{
		Page:       page,
		PageSize:   pageSize,
		ActorID:    c.Query("actor_id"),
		Action:     c.Query("action"),
		TargetType: c.Query("target_type"),
		Status:     c.Query("status"),
	}

	entries, total, err := h.audit.List(requestContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "audit logs retrieved", fiber.Map{
		"entries": entries,
		"total":   total,
	})
}

func (h *AdminHandler) reviewAuditLog(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AuditReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	entry, err := h.audit.Review(requestContext(c), id, actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "audit entry reviewed", entry)
}
