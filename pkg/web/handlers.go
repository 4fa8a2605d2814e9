package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/services"
	"github.com/lendstate/lendstate/pkg/statemachine"
	"github.com/lendstate/lendstate/pkg/verification"
)

type APIHandlers struct {
	workflowService     *services.Workflow
	entityService       *services.Entity
	verificationService *services.Verification
	validator           *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	entityService *services.Entity,
	verificationService *services.Verification,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:     workflowService,
		entityService:       entityService,
		verificationService: verificationService,
		validator:           validator,
	}
}

// Register mounts every route on app.
func (h *APIHandlers) Register(app *fiber.App) {
	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Get("/:id", h.GetWorkflow)
	w.Post("/:id/edges", h.CreateEdge)
	w.Patch("/:id/edges/:from/:to", h.UpdateEdge)

	e := app.Group("/entities")
	e.Post("/", h.CreateEntity)
	e.Get("/:id", h.GetEntity)
	e.Get("/:id/history", h.GetEntityHistory)
	e.Get("/:id/transitions", h.GetAllowedTransitions)
	e.Post("/:id/transitions", h.TransitionEntity)

	v := app.Group("/verifications")
	v.Post("/", h.IssueVerification)
	v.Post("/validate", h.ValidateVerification)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "lendstate API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "lendstate API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.ListWorkflows(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	view, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) CreateEdge(c fiber.Ctx) error {
	var req CreateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge := models.TransitionEdge{
		WorkflowID: c.Params("id"),
		From:       req.From,
		To:         req.To,
		Type:       req.Type,
		IsActive:   req.IsActive == nil || *req.IsActive,
	}

	err := h.workflowService.AddEdge(c.Context(), edge)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(edge)
}

func (h *APIHandlers) UpdateEdge(c fiber.Ctx) error {
	from, err := strconv.Atoi(c.Params("from"))
	if err != nil {
		return badRequest(c, "Invalid source status")
	}

	to, err := strconv.Atoi(c.Params("to"))
	if err != nil {
		return badRequest(c, "Invalid target status")
	}

	var req UpdateEdgeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	edge, err := h.workflowService.SetEdgeActive(c.Context(), c.Params("id"),
		models.StatusCode(from), models.StatusCode(to), *req.IsActive)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(edge)
}

func (h *APIHandlers) CreateEntity(c fiber.Ctx) error {
	var req CreateEntityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	entity, err := h.entityService.Create(c.Context(), req.Kind, req.WorkflowID, req.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entity)
}

func (h *APIHandlers) GetEntity(c fiber.Ctx) error {
	entity, err := h.entityService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(entity)
}

func (h *APIHandlers) GetEntityHistory(c fiber.Ctx) error {
	records, err := h.entityService.History(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"entity_id": c.Params("id"),
		"history":   records,
	})
}

func (h *APIHandlers) GetAllowedTransitions(c fiber.Ctx) error {
	edges, err := h.entityService.AllowedTransitions(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"entity_id":   c.Params("id"),
		"transitions": edges,
	})
}

func (h *APIHandlers) TransitionEntity(c fiber.Ctx) error {
	var req TransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	transition := statemachine.TransitionRequest{
		EntityID:       c.Params("id"),
		ToStatus:       req.ToStatus,
		Actor:          req.Actor,
		Reason:         req.Reason,
		ExpectedStatus: req.ExpectedStatus,
	}

	if req.Verification != nil {
		transition.Verification = &verification.ValidateRequest{
			Subject:     req.Verification.Subject,
			Token:       req.Verification.Token,
			ServiceType: req.Verification.ServiceType,
			ActionType:  req.Verification.ActionType,
		}
	}

	result, err := h.entityService.Transition(c.Context(), transition)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransitionResponse{
		EntityID:   result.EntityID,
		FromStatus: result.FromStatus,
		Status:     result.Status,
		Label:      result.Status.Label(),
		HistoryID:  result.HistoryID,
	})
}

func (h *APIHandlers) IssueVerification(c fiber.Ctx) error {
	var req IssueVerificationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if req.ServiceType != models.ServiceTypePIN && req.Token != "" {
		return badRequest(c, "Token may only be supplied for pin challenges")
	}

	attempt, err := h.verificationService.Issue(c.Context(), verification.IssueRequest{
		Subject:     req.Subject,
		ServiceType: req.ServiceType,
		ActionType:  req.ActionType,
		TTL:         time.Duration(req.TTLSeconds) * time.Second,
		MaxRetry:    req.MaxRetry,
		Token:       req.Token,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(NewVerificationResponse(attempt))
}

func (h *APIHandlers) ValidateVerification(c fiber.Ctx) error {
	var req ValidateVerificationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	attempt, err := h.verificationService.Validate(c.Context(), verification.ValidateRequest{
		Subject:     req.Subject,
		Token:       req.Token,
		ServiceType: req.ServiceType,
		ActionType:  req.ActionType,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(NewVerificationResponse(attempt))
}
