package auctions

import (
	auctionsvc "handyhub-backend/internal/application/auctions"
	"handyhub-backend/internal/middleware"
	"handyhub-backend/internal/pkg/request"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *auctionsvc.Service
}

// PlaceBidRequest accepts the amount as a JSON string or number.
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PlaceBid POST /api/v1/auctions/:id/bids (bidder from X-Actor-Id)
func (h *Handlers) PlaceBid(c *fiber.Ctx) error {
	bidder, _ := middleware.GetActorID(c)
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req PlaceBidRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.PlaceBid(c.Context(), id, bidder, req.Amount)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Bid placed successfully", res, nil)
}

// Finalize POST /api/v1/auctions/:id/finalize
func (h *Handlers) Finalize(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	res, err := h.Service.Finalize(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	message := "Auction finalized successfully"
	if !res.Changed {
		message = "Auction already finalized"
	}
	return response.Success(c, message, res.Listing, fiber.Map{"changed": res.Changed})
}

// ListBids GET /api/v1/auctions/:id/bids
func (h *Handlers) ListBids(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	bids, err := h.Service.ListBids(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Bids fetched successfully", bids, fiber.Map{"count": len(bids)})
}
