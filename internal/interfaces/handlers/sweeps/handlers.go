package sweeps

import (
	"time"

	sweepsvc "handyhub-backend/internal/application/sweeper"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *sweepsvc.Service
	Now     func() time.Time
}

// SweepExpired POST /api/v1/sweeps/expired runs one expiry sweep on demand.
func (h *Handlers) SweepExpired(c *fiber.Ctx) error {
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	report, err := h.Service.SweepExpired(c.Context(), now)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Sweep completed", report, nil)
}
