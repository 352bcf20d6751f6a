package sweeper

import (
	"context"
	"testing"
	"time"

	"handyhub-backend/internal/application/auctions"
	"handyhub-backend/internal/application/flashjobs"
	"handyhub-backend/internal/application/inventory"
	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store/storetest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSweeperTest(t *testing.T) (*Service, *events.Recorder) {
	rec := &events.Recorder{}
	return &Service{Store: storetest.NewStore(t), Events: rec}, rec
}

func TestSweepExpired_ScenarioC_FlashJobExpires(t *testing.T) {
	s, _ := setupSweeperTest(t)
	ctx := context.Background()
	job := storetest.FlashJob(t, s.Store, storetest.Now.Add(30*time.Minute), nil)

	after := storetest.Now.Add(31 * time.Minute)
	report, err := s.SweepExpired(ctx, after)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Finalized)

	l, err := s.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, l.Status)

	jobs := &flashjobs.Service{Store: s.Store, Now: func() time.Time { return after }}
	_, err = jobs.Assign(ctx, job.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotOpen)
}

func TestSweepExpired_AllKinds(t *testing.T) {
	s, rec := setupSweeperTest(t)
	ctx := context.Background()
	end := storetest.Now.Add(time.Minute)

	sold := storetest.Auction(t, s.Store, 10, end)
	now := storetest.Now
	bidding := &auctions.Service{Store: s.Store, Now: storetest.Clock(&now)}
	bidder := uuid.New()
	_, err := bidding.PlaceBid(ctx, sold.ID, bidder, decimal.NewFromInt(25))
	require.NoError(t, err)

	ended := storetest.Auction(t, s.Store, 10, end)
	opp := storetest.Opportunity(t, s.Store, 4, end)
	offer := storetest.Offer(t, s.Store, 4, end)
	running := storetest.Auction(t, s.Store, 10, storetest.Now.Add(time.Hour))

	report, err := s.SweepExpired(ctx, end)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Examined)
	assert.Equal(t, 4, report.Finalized)
	assert.Zero(t, report.Failed)

	want := map[uuid.UUID]domain.Status{
		sold.ID:    domain.StatusSold,
		ended.ID:   domain.StatusEnded,
		opp.ID:     domain.StatusExpired,
		offer.ID:   domain.StatusExpired,
		running.ID: domain.StatusActive,
	}
	for id, status := range want {
		l, err := s.Store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, status, l.Status, id.String())
	}
	l, err := s.Store.Get(ctx, sold.ID)
	require.NoError(t, err)
	assert.Equal(t, bidder, *l.Auction.WinnerID)
	assert.True(t, l.Auction.FinalPrice.Equal(decimal.NewFromInt(25)))

	assert.Len(t, rec.Events(), 4)
}

func TestSweepExpired_Idempotent(t *testing.T) {
	s, rec := setupSweeperTest(t)
	ctx := context.Background()
	end := storetest.Now.Add(time.Minute)
	o := storetest.Opportunity(t, s.Store, 4, end)

	first, err := s.SweepExpired(ctx, end)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Finalized)
	l1, err := s.Store.Get(ctx, o.ID)
	require.NoError(t, err)

	second, err := s.SweepExpired(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Report{}, second)
	l2, err := s.Store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, l1.Version, l2.Version)
	assert.Equal(t, l1.Status, l2.Status)

	assert.Equal(t, []string{domain.EventCreated, domain.EventExpired}, storetest.Events(t, s.Store, o.ID))
	assert.Len(t, rec.Events(), 1)
}

func TestSweepExpired_LeavesAssignedJobs(t *testing.T) {
	s, _ := setupSweeperTest(t)
	ctx := context.Background()
	job := storetest.FlashJob(t, s.Store, storetest.Now.Add(time.Minute), nil)
	jobs := &flashjobs.Service{Store: s.Store, Now: func() time.Time { return storetest.Now }}
	_, err := jobs.Assign(ctx, job.ID, uuid.New())
	require.NoError(t, err)

	report, err := s.SweepExpired(ctx, storetest.Now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, report.Examined)

	l, err := s.Store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, l.Status)
}

func TestSweepOne_SkipsListingChangedSinceRead(t *testing.T) {
	s, _ := setupSweeperTest(t)
	ctx := context.Background()
	end := storetest.Now.Add(time.Minute)
	o := storetest.Opportunity(t, s.Store, 1, end)

	stale, err := s.Store.Get(ctx, o.ID)
	require.NoError(t, err)

	now := storetest.Now
	claims := &inventory.Service{Store: s.Store, Now: storetest.Clock(&now)}
	_, err = claims.Claim(ctx, o.ID, uuid.New(), 1)
	require.NoError(t, err)

	var report Report
	s.sweepOne(ctx, stale, end, &report)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Finalized)

	l, err := s.Store.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSoldOut, l.Status)
}

func TestSweepExpired_PagesThroughBatches(t *testing.T) {
	s, _ := setupSweeperTest(t)
	s.BatchSize = 2
	end := storetest.Now.Add(time.Minute)
	for i := 0; i < 5; i++ {
		storetest.Offer(t, s.Store, 1, end)
	}

	report, err := s.SweepExpired(context.Background(), end)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Examined)
	assert.Equal(t, 5, report.Finalized)
}

func TestSweepExpired_ExpiresClaims(t *testing.T) {
	s, _ := setupSweeperTest(t)
	ctx := context.Background()
	end := storetest.Now.Add(time.Minute)
	o := storetest.Opportunity(t, s.Store, 5, end)

	now := storetest.Now
	claims := &inventory.Service{Store: s.Store, Now: storetest.Clock(&now)}
	active, err := claims.Claim(ctx, o.ID, uuid.New(), 1)
	require.NoError(t, err)
	redeemed, err := claims.Claim(ctx, o.ID, uuid.New(), 1)
	require.NoError(t, err)
	_, err = claims.RedeemClaim(ctx, redeemed.Claim.ID)
	require.NoError(t, err)

	report, err := s.SweepExpired(ctx, end)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ClaimsExpired)

	got, err := claims.ListClaims(ctx, o.ID)
	require.NoError(t, err)
	statuses := map[uuid.UUID]domain.ClaimStatus{}
	for _, c := range got {
		statuses[c.ID] = c.Status
	}
	assert.Equal(t, domain.ClaimExpired, statuses[active.Claim.ID])
	assert.Equal(t, domain.ClaimRedeemed, statuses[redeemed.Claim.ID])

	again, err := s.SweepExpired(ctx, end)
	require.NoError(t, err)
	assert.Zero(t, again.ClaimsExpired)
}

func TestSweepExpired_Cancelled(t *testing.T) {
	s, _ := setupSweeperTest(t)
	end := storetest.Now.Add(time.Minute)
	storetest.Offer(t, s.Store, 1, end)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SweepExpired(ctx, end)
	assert.ErrorIs(t, err, context.Canceled)
}
