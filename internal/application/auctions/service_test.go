package auctions

import (
	"context"
	"sync"
	"testing"
	"time"

	"handyhub-backend/internal/domain"
	"handyhub-backend/internal/infrastructure/events"
	"handyhub-backend/internal/infrastructure/store/storetest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuctionTest(t *testing.T) (*Service, *events.Recorder, *time.Time) {
	now := storetest.Now
	rec := &events.Recorder{}
	s := &Service{Store: storetest.NewStore(t), Events: rec, Now: storetest.Clock(&now)}
	return s, rec, &now
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestPlaceBid_ScenarioA_SoldToHighestBidder(t *testing.T) {
	s, rec, now := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Hour))
	b1, b2, b3 := uuid.New(), uuid.New(), uuid.New()

	_, err := s.PlaceBid(ctx, a.ID, b1, dec(150))
	require.NoError(t, err)
	_, err = s.PlaceBid(ctx, a.ID, b2, dec(120))
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	res, err := s.PlaceBid(ctx, a.ID, b3, dec(200))
	require.NoError(t, err)
	assert.True(t, res.Auction.Auction.CurrentBid.Equal(dec(200)))
	assert.Equal(t, 2, res.Auction.Auction.BidderCount)

	*now = storetest.Now.Add(time.Hour)
	fin, err := s.Finalize(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, fin.Changed)
	assert.Equal(t, domain.StatusSold, fin.Listing.Status)
	require.NotNil(t, fin.Listing.Auction.WinnerID)
	assert.Equal(t, b3, *fin.Listing.Auction.WinnerID)
	assert.True(t, fin.Listing.Auction.FinalPrice.Equal(dec(200)))

	assert.Equal(t, []string{domain.EventCreated, domain.EventBidPlaced, domain.EventBidPlaced, domain.EventSold},
		storetest.Events(t, s.Store, a.ID))
	assert.Equal(t, []string{events.SubjectBidPlaced, events.SubjectBidPlaced, events.SubjectListingFinal}, rec.Subjects())
}

func TestPlaceBid_FirstBidMustBeatMinimum(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Hour))

	_, err := s.PlaceBid(ctx, a.ID, uuid.New(), dec(99))
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	_, err = s.PlaceBid(ctx, a.ID, uuid.New(), dec(100))
	assert.ErrorIs(t, err, domain.ErrBidTooLow, "a bid equal to the current bid is rejected")

	l, err := s.Store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, l.Auction.HasBids())
	assert.Equal(t, 0, l.Auction.BidderCount)
	assert.True(t, l.Auction.CurrentBid.Equal(dec(100)))

	_, err = s.PlaceBid(ctx, a.ID, uuid.New(), dec(101))
	require.NoError(t, err)
	_, err = s.PlaceBid(ctx, a.ID, uuid.New(), dec(101))
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
}

func TestPlaceBid_TooLowLeavesStateUnchanged(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Hour))
	_, err := s.PlaceBid(ctx, a.ID, uuid.New(), dec(150))
	require.NoError(t, err)
	before, err := s.Store.Get(ctx, a.ID)
	require.NoError(t, err)

	_, err = s.PlaceBid(ctx, a.ID, uuid.New(), dec(140))
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	after, err := s.Store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, after.Auction.CurrentBid.Equal(dec(150)))
	bids, err := s.ListBids(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_RepeatBidderCountedOnce(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 10, storetest.Now.Add(time.Hour))
	bidder := uuid.New()

	_, err := s.PlaceBid(ctx, a.ID, bidder, dec(10))
	require.NoError(t, err)
	res, err := s.PlaceBid(ctx, a.ID, bidder, dec(20))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Auction.Auction.BidderCount)

	bids, err := s.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.True(t, bids[0].Amount.Equal(dec(20)))
	assert.True(t, bids[0].IsWinning)
	assert.False(t, bids[1].IsWinning)
}

func TestPlaceBid_StrictlyIncreasingSequence(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 1, storetest.Now.Add(time.Hour))

	for i := int64(1); i <= 10; i++ {
		res, err := s.PlaceBid(ctx, a.ID, uuid.New(), dec(i*10))
		require.NoError(t, err)
		assert.True(t, res.Auction.Auction.CurrentBid.Equal(dec(i*10)))
	}
	l, err := s.Store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, l.Auction.CurrentBid.Equal(dec(100)))
	assert.Equal(t, 10, l.Auction.BidderCount)
}

func TestPlaceBid_ClosedAuction(t *testing.T) {
	s, _, now := setupAuctionTest(t)
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Minute))

	*now = storetest.Now.Add(time.Minute)
	_, err := s.PlaceBid(context.Background(), a.ID, uuid.New(), dec(500))
	assert.ErrorIs(t, err, domain.ErrAuctionClosed)
}

func TestPlaceBid_Validation(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Hour))

	_, err := s.PlaceBid(context.Background(), a.ID, uuid.New(), dec(0))
	assert.True(t, domain.IsValidation(err))
	_, err = s.PlaceBid(context.Background(), a.ID, uuid.Nil, dec(200))
	assert.True(t, domain.IsValidation(err))
}

func TestPlaceBid_NotAnAuction(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	o := storetest.Opportunity(t, s.Store, 3, storetest.Now.Add(time.Hour))

	_, err := s.PlaceBid(context.Background(), o.ID, uuid.New(), dec(200))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.PlaceBid(context.Background(), uuid.New(), uuid.New(), dec(200))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// The sqlite test store runs these transactions one at a time; the retry
// path is covered by TestPlaceBid_RetriesAfterStaleRead.
func TestPlaceBid_ManyBiddersKeepSingleWinner(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 1, storetest.Now.Add(time.Hour))

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := s.PlaceBid(ctx, a.ID, uuid.New(), dec(amount))
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrBidTooLow)
			}
		}(i * 5)
	}
	wg.Wait()

	l, err := s.Store.Get(ctx, a.ID)
	require.NoError(t, err)
	bids, err := s.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)

	winners := 0
	for _, b := range bids {
		if b.IsWinning {
			winners++
			assert.True(t, b.Amount.Equal(l.Auction.CurrentBid))
		}
	}
	assert.Equal(t, 1, winners)
	assert.True(t, bids[0].Amount.Equal(l.Auction.CurrentBid))
	assert.Equal(t, len(bids), l.Auction.BidderCount)
}

func TestFinalize_NoBidsEnds(t *testing.T) {
	s, _, now := setupAuctionTest(t)
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Minute))
	*now = storetest.Now.Add(2 * time.Minute)

	res, err := s.Finalize(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, res.Listing.Status)
	assert.Nil(t, res.Listing.Auction.WinnerID)
	assert.NotNil(t, res.Listing.Auction.FinalizedAt)
}

func TestFinalize_Idempotent(t *testing.T) {
	s, rec, now := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Minute))
	*now = storetest.Now.Add(2 * time.Minute)

	first, err := s.Finalize(ctx, a.ID)
	require.NoError(t, err)
	second, err := s.Finalize(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Listing.Version, second.Listing.Version)
	assert.Len(t, rec.Events(), 1)
}

func TestFinalize_StillRunning(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Hour))

	_, err := s.Finalize(context.Background(), a.ID)
	assert.ErrorIs(t, err, domain.ErrStillRunning)
}

func TestPlaceBid_RetriesAfterStaleRead(t *testing.T) {
	s, _, _ := setupAuctionTest(t)
	ctx := context.Background()
	a := storetest.Auction(t, s.Store, 100, storetest.Now.Add(time.Hour))
	bidder := uuid.New()
	bumps := storetest.StaleOnce(t, s.Store, a.ID)

	res, err := s.PlaceBid(ctx, a.ID, bidder, dec(150))
	require.NoError(t, err)
	assert.Equal(t, 1, *bumps)
	assert.Equal(t, int64(2), res.Auction.Version)

	bids, err := s.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1, "the bid from the failed attempt is rolled back")
	assert.True(t, bids[0].IsWinning)

	l, err := s.Store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Auction.BidderCount)
	assert.Equal(t, []string{domain.EventCreated, domain.EventBidPlaced}, storetest.Events(t, s.Store, a.ID))
}
