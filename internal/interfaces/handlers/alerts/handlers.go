package alerts

import (
	"time"

	alertsvc "handyhub-backend/internal/application/alerts"
	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/pkg/request"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handlers serves the notification collaborator. Routes are mounted behind
// the admin key.
type Handlers struct {
	Service *alertsvc.Service
	Now     func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

type MarkNotifiedRequest struct {
	ListingIDs []uuid.UUID `json:"listing_ids" validate:"required,min=1"`
}

func filterFromQuery(c *fiber.Ctx) alertsvc.Filter {
	return alertsvc.Filter{
		City:     c.Query("city"),
		Country:  c.Query("country"),
		Category: c.Query("category"),
		Kind:     domain.Kind(c.Query("kind")),
	}
}

// Due GET /api/v1/alerts/due?city=&country=&category=&kind=
func (h *Handlers) Due(c *fiber.Ctx) error {
	due, err := h.Service.DueForAlert(c.Context(), h.now(), filterFromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Due alerts fetched successfully", due, fiber.Map{"count": len(due)})
}

// MarkNotified POST /api/v1/alerts/mark-notified
func (h *Handlers) MarkNotified(c *fiber.Ctx) error {
	var req MarkNotifiedRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	flipped, err := h.Service.MarkNotified(c.Context(), req.ListingIDs)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings marked notified", fiber.Map{"notified": flipped}, fiber.Map{
		"requested": len(req.ListingIDs),
		"flipped":   len(flipped),
	})
}

// Dispatch POST /api/v1/alerts/dispatch runs one alert pass on demand.
func (h *Handlers) Dispatch(c *fiber.Ctx) error {
	report, err := h.Service.Dispatch(c.Context(), h.now(), filterFromQuery(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Alerts dispatched", report, nil)
}
