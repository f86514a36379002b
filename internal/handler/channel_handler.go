package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/service"
	"github.com/opvera/opvera-api/internal/utils"
)

// ChannelHandler wires channel directory HTTP routes.
type ChannelHandler struct {
	service   service.ChannelService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChannelHandler constructs the handler.
func NewChannelHandler(service service.ChannelService, validator *validator.Validate, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "channel_handler").Logger(),
	}
}

// Register attaches channel endpoints to the router group.
func (h *ChannelHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Post("/:id/members", h.memberOp(h.service.AddMember))
	router.Delete("/:id/members/:userID", h.memberParamOp(h.service.RemoveMember))
	router.Post("/:id/admins", h.memberOp(h.service.PromoteAdmin))
	router.Delete("/:id/admins/:userID", h.memberParamOp(h.service.DemoteAdmin))
}

func (h *ChannelHandler) list(c *fiber.Ctx) error {
	channels, err := h.service.ListForUser(requestContext(c), actorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "channels retrieved", channels)
}

func (h *ChannelHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	channel, err := h.service.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "channel retrieved", channel)
}

func (h *ChannelHandler) create(c *fiber.Ctx) error {
	var payload dto.ChannelCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := h.service.Create(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "channel created", channel)
}

type membershipOp func(ctx context.Context, actor service.Actor, channelID uint, userID string) (dto.ChannelResponse, error)

// memberOp handles body-based membership changes (POST with user_id payload).
func (h *ChannelHandler) memberOp(op membershipOp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		var payload dto.MemberRequest
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
		if err := h.validator.Struct(payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		channel, err := op(requestContext(c), actorFromContext(c), id, payload.UserID)
		if err != nil {
			return sendServiceError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "channel updated", channel)
	}
}

// memberParamOp handles path-based membership changes (DELETE with userID param).
func (h *ChannelHandler) memberParamOp(op membershipOp) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		userID := c.Params("userID")
		if userID == "" {
			return utils.SendError(c, fiber.StatusBadRequest, "user id required")
		}

		channel, err := op(requestContext(c), actorFromContext(c), id, userID)
		if err != nil {
			return sendServiceError(c, h.logger, err)
		}
		return utils.SendSuccess(c, "channel updated", channel)
	}
}
