package handler

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/service"
	"github.com/opvera/opvera-api/internal/utils"
)

// ChatHandler wires chat endpoints including the websocket upgrade.
type ChatHandler struct {
	service   service.ChatService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, validator *validator.Validate, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Get("/history", h.history)
	router.Post("/messages", h.send)
	router.Delete("/messages/:id", h.deleteMessage)
	router.Post("/messages/:id/flag", h.flagMessage)
}

func (h *ChatHandler) handleConnection(conn *websocket.Conn) {
	actor := websocketActor(conn)
	if actor.ID == "" {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusUnauthorized, "user id missing"))
		_ = conn.Close()
		return
	}

	channelID, err := strconv.ParseUint(strings.TrimSpace(conn.Query("channel_id")), 10, 64)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "channel_id required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	channel, err := h.service.Authorize(baseCtx, actor, uint(channelID))
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", actor.ID).Uint64("channel_id", channelID).Msg("chat upgrade rejected")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusForbidden, "channel access denied"))
		_ = conn.Close()
		return
	}

	correlation, _ := conn.Locals("correlation_id").(string)

	h.logger.Info().Str("user_id", actor.ID).Uint("channel_id", channel.ID).Msg("chat websocket connected")
	h.service.ServeConnection(conn, service.ChatConnectionOptions{
		Actor:         actor,
		Channel:       channel,
		CorrelationID: correlation,
		Context:       baseCtx,
	})
	h.logger.Info().Str("user_id", actor.ID).Uint("channel_id", channel.ID).Msg("chat websocket disconnected")
}

func (h *ChatHandler) history(c *fiber.Ctx) error {
	var query dto.ChatHistoryQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	ctx := requestContext(c)
	actor := actorFromContext(c)
	if _, err := h.service.Authorize(ctx, actor, query.ChannelID); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	messages, err := h.service.History(ctx, query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "chat history", messages)
}

// send is the HTTP fallback for clients without a websocket connection.
func (h *ChatHandler) send(c *fiber.Ctx) error {
	var payload struct {
		ChannelID uint   `json:"channel_id" validate:"required"`
		Content   string `json:"content" validate:"required,max=4000"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.service.SendMessage(requestContext(c), actorFromContext(c), payload.ChannelID, payload.Content)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", result)
}

func (h *ChatHandler) deleteMessage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.DeleteMessage(requestContext(c), actorFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *ChatHandler) flagMessage(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.service.FlagMessage(requestContext(c), actorFromContext(c), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "message flagged", nil)
}

func websocketActor(conn *websocket.Conn) service.Actor {
	actor := service.Actor{}
	if value := conn.Locals("user_id"); value != nil {
		if id, ok := value.(string); ok {
			actor.ID = strings.TrimSpace(id)
		}
	}
	if value := conn.Locals("user_role"); value != nil {
		if role, ok := value.(string); ok {
			actor.Role = strings.ToLower(strings.TrimSpace(role))
		}
	}
	return actor
}
