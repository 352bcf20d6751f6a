package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"handyhub-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrNotFound:                               fiber.StatusNotFound,
		domain.ErrClaimNotFound:                          fiber.StatusNotFound,
		domain.ErrConflict:                               fiber.StatusConflict,
		domain.ErrAuctionClosed:                          fiber.StatusConflict,
		domain.ErrStillRunning:                           fiber.StatusConflict,
		domain.ErrBidTooLow:                              fiber.StatusUnprocessableEntity,
		domain.ErrRedemptionLimitReached:                 fiber.StatusUnprocessableEntity,
		domain.ErrNotAssignedToCaller:                    fiber.StatusForbidden,
		domain.NewValidationError("lat", "out of range"): fiber.StatusBadRequest,
		fmt.Errorf("wrapped: %w", domain.ErrExpired):     fiber.StatusConflict,
		errors.New("connection refused"):                 fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestFromError_ValidationDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return FromError(c, domain.NewValidationError("amount", "must be positive"))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	var out ErrorBody
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "error", out.Status)
	assert.Equal(t, "amount: must be positive", out.Error.Message)
	assert.Equal(t, "amount", out.Error.Details.(map[string]interface{})["field"])
}

func TestFromError_HidesInternalErrors(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return FromError(c, errors.New("pq: password authentication failed"))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "password")
}
