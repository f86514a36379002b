package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opvera/opvera-api/internal/service"
	"github.com/opvera/opvera-api/internal/utils"
)

// LeaderboardHandler wires point ranking routes.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler constructs the handler.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register attaches leaderboard endpoints to the router group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.top)
	router.Get("/me", h.me)
	router.Get("/:userID", h.forUser)
}

func (h *LeaderboardHandler) top(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}
	offset, err := parseQueryInt(c, "offset")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid offset")
	}

	entries, err := h.service.Top(requestContext(c), limit, offset)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", entries)
}

func (h *LeaderboardHandler) me(c *fiber.Ctx) error {
	entry, err := h.service.ForUser(requestContext(c), actorFromContext(c).ID)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rank retrieved", entry)
}

func (h *LeaderboardHandler) forUser(c *fiber.Ctx) error {
	entry, err := h.service.ForUser(requestContext(c), c.Params("userID"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "rank retrieved", entry)
}
