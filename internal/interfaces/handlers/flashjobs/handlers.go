package flashjobs

import (
	fjsvc "handyhub-backend/internal/application/flashjobs"
	"handyhub-backend/internal/middleware"
	"handyhub-backend/internal/pkg/request"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *fjsvc.Service
}

// AssignRequest names the handyman to assign; the caller when omitted.
type AssignRequest struct {
	HandymanID string `json:"handyman_id" validate:"omitempty,uuid"`
}

// Nearby GET /api/v1/flash-jobs/nearby (handyman from X-Actor-Id)
func (h *Handlers) Nearby(c *fiber.Ctx) error {
	handyman, _ := middleware.GetActorID(c)
	matches, err := h.Service.MatchNearby(c.Context(), handyman)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Nearby flash jobs fetched successfully", matches, fiber.Map{"count": len(matches)})
}

// Assign POST /api/v1/flash-jobs/:id/assign
func (h *Handlers) Assign(c *fiber.Ctx) error {
	actor, _ := middleware.GetActorID(c)
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req AssignRequest
	if len(c.Body()) > 0 {
		if err := request.Body(c, &req); err != nil {
			return response.FromError(c, err)
		}
	}
	handyman := actor
	if req.HandymanID != "" {
		handyman = uuid.MustParse(req.HandymanID)
	}
	res, err := h.Service.Assign(c.Context(), id, handyman)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Flash job assigned successfully", res, nil)
}

// Accept POST /api/v1/flash-jobs/:id/accept
func (h *Handlers) Accept(c *fiber.Ctx) error {
	handyman, _ := middleware.GetActorID(c)
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	job, err := h.Service.Accept(c.Context(), id, handyman)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Flash job accepted successfully", job, nil)
}

// Complete POST /api/v1/flash-jobs/:id/complete
func (h *Handlers) Complete(c *fiber.Ctx) error {
	handyman, _ := middleware.GetActorID(c)
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	job, err := h.Service.Complete(c.Context(), id, handyman)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Flash job completed successfully", job, nil)
}

// GetAssignment GET /api/v1/flash-jobs/:id/assignment
func (h *Handlers) GetAssignment(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	a, err := h.Service.GetAssignment(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Assignment fetched successfully", a, nil)
}
