package listings

import (
	"time"

	listsvc "handyhub-backend/internal/application/listings"
	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/middleware"
	"handyhub-backend/internal/pkg/geo"
	"handyhub-backend/internal/pkg/request"
	"handyhub-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Handlers struct {
	Service *listsvc.Service
}

type LocationRequest struct {
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng     float64 `json:"lng" validate:"gte=-180,lte=180"`
	City    string  `json:"city" validate:"required"`
	Country string  `json:"country" validate:"required"`
}

// CommonRequest holds the fields shared by every create-listing body.
type CommonRequest struct {
	Category       string          `json:"category" validate:"required"`
	Title          string          `json:"title" validate:"required"`
	Location       LocationRequest `json:"location"`
	TargetRadiusKm float64         `json:"target_radius_km" validate:"gt=0"`
	AlertStart     *time.Time      `json:"alert_start"`
	AlertEnd       *time.Time      `json:"alert_end"`
}

func (r CommonRequest) input(issuer uuid.UUID) listsvc.CommonInput {
	return listsvc.CommonInput{
		IssuerID: issuer,
		Category: r.Category,
		Title:    r.Title,
		Location: domain.Location{
			Lat:     r.Location.Lat,
			Lng:     r.Location.Lng,
			City:    r.Location.City,
			Country: r.Location.Country,
		},
		TargetRadiusKm: r.TargetRadiusKm,
		AlertStart:     r.AlertStart,
		AlertEnd:       r.AlertEnd,
	}
}

type CreateAuctionRequest struct {
	CommonRequest
	EndsAt     time.Time       `json:"ends_at" validate:"required"`
	MinimumBid decimal.Decimal `json:"minimum_bid"`
}

type CreateOpportunityRequest struct {
	CommonRequest
	EndsAt        time.Time       `json:"ends_at" validate:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Quantity      int             `json:"quantity" validate:"gte=1"`
}

type CreateOfferRequest struct {
	CommonRequest
	EndsAt          time.Time       `json:"ends_at" validate:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	MaxRedemptions  int             `json:"max_redemptions" validate:"gte=1"`
}

type CreateFlashJobRequest struct {
	CommonRequest
	ScheduledFor   *time.Time      `json:"scheduled_for"`
	Deadline       time.Time       `json:"deadline" validate:"required"`
	RequiredSkills []string        `json:"required_skills"`
	UrgencyTier    int             `json:"urgency_tier" validate:"gte=0,lte=3"`
	Budget         decimal.Decimal `json:"budget"`
}

// CreateAuction POST /api/v1/listings/auctions
func (h *Handlers) CreateAuction(c *fiber.Ctx) error {
	issuer, _ := middleware.GetActorID(c)
	var req CreateAuctionRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.CreateAuction(c.Context(), listsvc.CreateAuctionInput{
		CommonInput: req.input(issuer),
		EndsAt:      req.EndsAt,
		MinimumBid:  req.MinimumBid,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Auction created successfully", l, nil)
}

// CreateOpportunity POST /api/v1/listings/opportunities
func (h *Handlers) CreateOpportunity(c *fiber.Ctx) error {
	issuer, _ := middleware.GetActorID(c)
	var req CreateOpportunityRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.CreateOpportunity(c.Context(), listsvc.CreateOpportunityInput{
		CommonInput:   req.input(issuer),
		EndsAt:        req.EndsAt,
		UnitPrice:     req.UnitPrice,
		OriginalPrice: req.OriginalPrice,
		Quantity:      req.Quantity,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Opportunity created successfully", l, nil)
}

// CreateOffer POST /api/v1/listings/offers
func (h *Handlers) CreateOffer(c *fiber.Ctx) error {
	issuer, _ := middleware.GetActorID(c)
	var req CreateOfferRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.CreateOffer(c.Context(), listsvc.CreateOfferInput{
		CommonInput:     req.input(issuer),
		EndsAt:          req.EndsAt,
		DiscountPercent: req.DiscountPercent,
		MaxRedemptions:  req.MaxRedemptions,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Offer created successfully", l, nil)
}

// CreateFlashJob POST /api/v1/listings/flash-jobs
func (h *Handlers) CreateFlashJob(c *fiber.Ctx) error {
	issuer, _ := middleware.GetActorID(c)
	var req CreateFlashJobRequest
	if err := request.Body(c, &req); err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.CreateFlashJob(c.Context(), listsvc.CreateFlashJobInput{
		CommonInput:    req.input(issuer),
		ScheduledFor:   req.ScheduledFor,
		Deadline:       req.Deadline,
		RequiredSkills: req.RequiredSkills,
		UrgencyTier:    req.UrgencyTier,
		Budget:         req.Budget,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Flash job created successfully", l, nil)
}

// GetListingByID GET /api/v1/listings/get-listing/:listing_id
func (h *Handlers) GetListingByID(c *fiber.Ctx) error {
	id, err := request.ParamUUID(c, "listing_id")
	if err != nil {
		return response.FromError(c, err)
	}
	l, err := h.Service.GetListing(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing fetched successfully", l, nil)
}

// GetMyListings GET /api/v1/listings/my-listings
func (h *Handlers) GetMyListings(c *fiber.Ctx) error {
	issuer, _ := middleware.GetActorID(c)
	data, err := h.Service.GetIssuerListings(c.Context(), issuer)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listings fetched successfully", data, nil)
}

// Nearby GET /api/v1/listings/nearby?lat=&lng=&kind=
func (h *Handlers) Nearby(c *fiber.Ctx) error {
	lat, err := request.QueryFloat(c, "lat")
	if err != nil {
		return response.FromError(c, err)
	}
	lng, err := request.QueryFloat(c, "lng")
	if err != nil {
		return response.FromError(c, err)
	}
	data, err := h.Service.Nearby(c.Context(), geo.Point{Lat: lat, Lng: lng}, domain.Kind(c.Query("kind")))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Nearby listings fetched successfully", data, fiber.Map{"count": len(data)})
}
