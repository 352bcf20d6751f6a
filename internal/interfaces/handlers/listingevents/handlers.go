package listingevents

import (
	lesvc "handyhub-backend/internal/application/listingevents"
	"handyhub-backend/internal/pkg/request"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *lesvc.Service
}

// GetListingEvents GET /api/v1/listing-events/:listing_id
func (h *Handlers) GetListingEvents(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "listing_id")
	if err != nil {
		return response.FromError(c, err)
	}
	events, err := h.Service.GetListingEvents(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", events, nil)
}
