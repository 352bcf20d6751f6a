package inventory

import (
	invsvc "handyhub-backend/internal/application/inventory"
	"handyhub-backend/internal/middleware"
	"handyhub-backend/internal/pkg/request"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *invsvc.Service
}

// ClaimRequest defaults to one unit when quantity is omitted.
type ClaimRequest struct {
	Quantity int `json:"quantity" validate:"omitempty,gte=1"`
}

type RedeemCodeRequest struct {
	RedemptionCode string `json:"redemption_code" validate:"required"`
}

// Claim POST /api/v1/inventory/:id/claims (claimant from X-Actor-Id)
func (h *Handlers) Claim(c *fiber.Ctx) error {
	user, _ := middleware.GetActorID(c)
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req ClaimRequest
	if len(c.Body()) > 0 {
		if err := request.Body(c, &req); err != nil {
			return response.FromError(c, err)
		}
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	res, err := h.Service.Claim(c.Context(), id, user, req.Quantity)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Claim created successfully", res, nil)
}

// ListClaims GET /api/v1/inventory/:id/claims
func (h *Handlers) ListClaims(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	claims, err := h.Service.ListClaims(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Claims fetched successfully", claims, fiber.Map{"count": len(claims)})
}

// RedeemByCode POST /api/v1/inventory/:id/redeem-code
func (h *Handlers) RedeemByCode(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req RedeemCodeRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	claim, err := h.Service.RedeemByCode(c.Context(), id, req.RedemptionCode)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Claim redeemed successfully", claim, nil)
}

// RedeemClaim POST /api/v1/claims/:id/redeem
func (h *Handlers) RedeemClaim(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	claim, err := h.Service.RedeemClaim(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Claim redeemed successfully", claim, nil)
}

// MyClaims GET /api/v1/claims/mine
func (h *Handlers) MyClaims(c *fiber.Ctx) error {
	user, _ := middleware.GetActorID(c)
	claims, err := h.Service.ListUserClaims(c.Context(), user)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Claims fetched successfully", claims, fiber.Map{"count": len(claims)})
}
