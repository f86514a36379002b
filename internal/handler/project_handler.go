package handler

import (
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opvera/opvera-api/internal/dto"
	"github.com/opvera/opvera-api/internal/service"
	"github.com/opvera/opvera-api/internal/utils"
)

// ProjectHandler wires project and assignment HTTP routes.
type ProjectHandler struct {
	service   service.ProjectService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProjectHandler constructs the handler.
func NewProjectHandler(service service.ProjectService, validator *validator.Validate, logger zerolog.Logger) *ProjectHandler {
	return &ProjectHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "project_handler").Logger(),
	}
}

// Register attaches project endpoints to the router group.
func (h *ProjectHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("", h.create)
	router.Patch("/:id/verify", h.verify)
}

// RegisterAssignments attaches assignment endpoints to the router group.
func (h *ProjectHandler) RegisterAssignments(router fiber.Router) {
	router.Get("", h.listAssignments)
	router.Post("", h.createAssignment)
	router.Post("/:id/submit", h.submitAssignment)
	router.Patch("/:id/verify", h.verifyAssignment)
}

func (h *ProjectHandler) list(c *fiber.Ctx) error {
	filter := dto.ProjectFilter{
		OwnerID: c.Query("owner_id"),
		Status:  c.Query("status"),
	}

	projects, err := h.service.ListProjects(requestContext(c), actorFromContext(c), filter)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "projects retrieved", projects)
}

func (h *ProjectHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	project, err := h.service.GetProject(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project retrieved", project)
}

// create accepts multipart form submissions; the file part is optional when a
// repository URL is supplied instead.
func (h *ProjectHandler) create(c *fiber.Ctx) error {
	payload := dto.ProjectCreateRequest{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		RepoURL:     c.FormValue("repo_url"),
	}

	var reader io.Reader
	filename := ""
	if fileHeader, err := c.FormFile("file"); err == nil && fileHeader != nil {
		file, err := fileHeader.Open()
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "unreadable file upload")
		}
		defer file.Close()
		reader = file
		filename = fileHeader.Filename
	}

	project, err := h.service.CreateProject(requestContext(c), actorFromContext(c), payload, reader, filename)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "project submitted", project)
}

func (h *ProjectHandler) verify(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.VerifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	project, err := h.service.VerifyProject(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "project reviewed", project)
}

func (h *ProjectHandler) listAssignments(c *fiber.Ctx) error {
	assignments, err := h.service.ListAssignments(requestContext(c), actorFromContext(c), c.Query("assignee"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *ProjectHandler) createAssignment(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.CreateAssignment(requestContext(c), actorFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *ProjectHandler) submitAssignment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.SubmitAssignment(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment submitted", assignment)
}

func (h *ProjectHandler) verifyAssignment(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.VerifyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.VerifyAssignment(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment reviewed", assignment)
}
