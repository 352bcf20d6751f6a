package sweeps

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	sweepsvc "handyhub-backend/internal/application/sweeper"
	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/store/storetest"
	"handyhub-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepExpired(t *testing.T) {
	now := storetest.Now
	svc := &sweepsvc.Service{Store: storetest.NewStore(t)}
	h := &Handlers{Service: svc, Now: storetest.Clock(&now)}
	app := fiber.New()
	app.Post("/sweeps/expired", middleware.RequireAdminKey("k"), h.SweepExpired)

	job := storetest.FlashJob(t, svc.Store, storetest.Now.Add(-time.Minute), nil)
	live := storetest.Auction(t, svc.Store, 10, storetest.Now.Add(time.Hour))

	resp, err := app.Test(httptest.NewRequest("POST", "/sweeps/expired", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/sweeps/expired?key=k", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out struct {
		Data sweepsvc.Report `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Data.Finalized)

	got, err := svc.Store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)
	got, err = svc.Store.Get(context.Background(), live.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	resp, err = app.Test(httptest.NewRequest("POST", "/sweeps/expired?key=k", nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out.Data.Finalized)
}
