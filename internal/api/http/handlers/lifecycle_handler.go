package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/escalation-engine/internal/api/dto"
	"github.com/spec-kit/escalation-engine/internal/auth"
	"github.com/spec-kit/escalation-engine/internal/service"
	apperrors "github.com/spec-kit/escalation-engine/pkg/util"
)

// LifecycleHandler exposes manual transitions and the escalation audit
// trail to the staff UI.
type LifecycleHandler struct {
	service *service.LifecycleService
}

// NewLifecycleHandler constructs handler.
func NewLifecycleHandler(lifecycle *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{service: lifecycle}
}

// Transition POST /tickets/:id/transition.
func (h *LifecycleHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TargetStatus == "" {
		return apperrors.NewValidationError("target_status required", nil)
	}

	ticket, err := h.service.ManualTransition(c.UserContext(), c.Params("id"), req.TargetStatus, principal.StaffID, strings.TrimSpace(req.Reason))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// RecordResponse POST /tickets/:id/response.
func (h *LifecycleHandler) RecordResponse(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	ticket, err := h.service.RecordStaffResponse(c.UserContext(), c.Params("id"), principal.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

// History GET /tickets/:id/escalations.
func (h *LifecycleHandler) History(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	entries, err := h.service.GetEscalationHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.EscalationLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.FromLogEntry(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

// HistoryByRange GET /escalations?from=&to=.
func (h *LifecycleHandler) HistoryByRange(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	from, err := parseTimeQuery(c.Query("from"), time.Time{})
	if err != nil {
		return apperrors.NewValidationError("invalid from timestamp", nil)
	}
	to, err := parseTimeQuery(c.Query("to"), time.Now())
	if err != nil {
		return apperrors.NewValidationError("invalid to timestamp", nil)
	}

	entries, err := h.service.ListEscalationsByRange(c.UserContext(), from, to)
	if err != nil {
		return err
	}
	items := make([]dto.EscalationLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.FromLogEntry(entry))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseTimeQuery(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
