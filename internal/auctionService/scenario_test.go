package auction

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"vehicle-auction/internal/auctionerrors"
	"vehicle-auction/internal/events"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"

	"github.com/stretchr/testify/require"
)

type testUsers struct {
	admin model.User
	alice model.User
	bob   model.User
}

// testClock is a settable clock safe for use from the sweeper goroutine
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func seededAuction(t *testing.T) (*repository.MemoryRepo, testUsers, time.Time) {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	users := testUsers{
		admin: model.User{ID: "admin", Username: "admin", Email: "admin@auction.com", Role: model.RoleAdmin, CreatedAt: now},
		alice: model.User{ID: "alice", Username: "alice", Email: "alice@example.com", Role: model.RoleBidder, Balance: 1000, CreatedAt: now},
		bob:   model.User{ID: "bob", Username: "bob", Email: "bob@example.com", Role: model.RoleBidder, Balance: 1000, CreatedAt: now},
	}
	for _, u := range []model.User{users.admin, users.alice, users.bob} {
		require.NoError(t, repo.CreateUser(ctx, u))
	}
	return repo, users, now
}

func createVehicle(t *testing.T, service *AuctionService, admin model.User, endTime time.Time, reserve float64) model.Vehicle {
	t.Helper()
	v, err := service.CreateVehicle(context.Background(), admin, model.VehicleSpec{
		Make:         "Toyota",
		Model:        "Corolla",
		Year:         2018,
		Mileage:      42000,
		ReservePrice: reserve,
		Description:  "one owner",
		EndTime:      endTime,
	})
	require.NoError(t, err)
	return v
}

func balanceOf(t *testing.T, repo *repository.MemoryRepo, userID string) float64 {
	t.Helper()
	u, err := repo.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.Balance
}

func kindsOf(notes []model.Notification) []string {
	kinds := make([]string, 0, len(notes))
	for _, n := range notes {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// A bids, B underbids, B outbids A
func TestScenario_OutbidFlow(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))

	x := createVehicle(t, service, users.admin, now.Add(24*time.Hour), 500)

	res, err := service.PlaceBid(ctx, x.ID, users.alice.ID, 600)
	require.NoError(t, err)
	require.Nil(t, res.PreviousBid)
	require.Equal(t, 400.0, res.NewBalance)

	got, err := service.GetVehicle(ctx, x.ID)
	require.NoError(t, err)
	require.Equal(t, 600.0, *got.HighestBid)
	require.Equal(t, users.alice.ID, *got.HighestBidderID)

	_, err = service.PlaceBid(ctx, x.ID, users.bob.ID, 500)
	require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)

	res, err = service.PlaceBid(ctx, x.ID, users.bob.ID, 700)
	require.NoError(t, err)
	require.Equal(t, 600.0, *res.PreviousBid)
	require.Equal(t, 300.0, res.NewBalance)

	// alice's reservation is returned and she is told she was outbid
	require.Equal(t, 1000.0, balanceOf(t, repo, users.alice.ID))
	aliceNotes, err := service.ListNotifications(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Equal(t, []string{model.NotificationOutbid}, kindsOf(aliceNotes))

	// the seller hears about both bids
	sellerNotes, err := service.ListNotifications(ctx, users.admin.ID)
	require.NoError(t, err)
	require.Equal(t, []string{model.NotificationNewBid, model.NotificationNewBid}, kindsOf(sellerNotes))
	require.Equal(t, "New bid of $600.00 placed on your Toyota Corolla", sellerNotes[0].Message)

	profile, err := service.GetProfile(ctx, users.bob.ID)
	require.NoError(t, err)
	require.Equal(t, 300.0, profile.Balance)
	require.Equal(t, 700.0, profile.Reserved)

	bids, err := service.GetBidsForVehicle(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Less(t, bids[0].Amount, bids[1].Amount)

	aliceBids, err := service.GetUserBids(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceBids, 1)
}

// The highest-bid amount is strictly increasing across accepted bids
func TestScenario_HighestBidStrictlyIncreases(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)

	attempts := []struct {
		user   string
		amount float64
		err    error
	}{
		{users.alice.ID, 150, nil},
		{users.bob.ID, 150, auctionerrors.ErrBidTooLow},
		{users.bob.ID, 150.01, nil},
		{users.alice.ID, 160, nil},
		{users.alice.ID, 170, nil},
		{users.bob.ID, 1200, auctionerrors.ErrInsufficientFunds},
		{users.bob.ID, 169.99, auctionerrors.ErrBidTooLow},
	}
	for i, a := range attempts {
		_, err := service.PlaceBid(ctx, x.ID, a.user, a.amount)
		if a.err != nil {
			require.ErrorIs(t, err, a.err, "attempt %d", i)
		} else {
			require.NoError(t, err, "attempt %d", i)
		}
	}

	bids, err := service.GetBidsForVehicle(ctx, x.ID)
	require.NoError(t, err)
	for i := 1; i < len(bids); i++ {
		require.Greater(t, bids[i].Amount, bids[i-1].Amount)
	}

	// alice raised her own lead twice; only her latest bid stays reserved
	require.Equal(t, 830.0, balanceOf(t, repo, users.alice.ID))
	require.Equal(t, 1000.0, balanceOf(t, repo, users.bob.ID))
}

// Concurrent bids on one vehicle end with the maximum amount as the highest bid
func TestScenario_ConcurrentBids(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)

	const bidders = 20
	ids := make([]string, bidders)
	for i := range ids {
		ids[i] = fmt.Sprintf("bidder-%d", i)
		require.NoError(t, repo.CreateUser(ctx, model.User{
			ID: ids[i], Username: ids[i], Email: ids[i] + "@example.com", Role: model.RoleBidder, Balance: 10000,
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.PlaceBid(ctx, x.ID, ids[i], float64(100+i*10))
			if err != nil {
				require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)
			}
		}(i)
	}
	wg.Wait()

	got, err := service.GetVehicle(ctx, x.ID)
	require.NoError(t, err)
	require.Equal(t, float64(100+(bidders-1)*10), *got.HighestBid)
	require.Equal(t, ids[bidders-1], *got.HighestBidderID)

	bids, err := service.GetBidsForVehicle(ctx, x.ID)
	require.NoError(t, err)
	for i := 1; i < len(bids); i++ {
		require.Greater(t, bids[i].Amount, bids[i-1].Amount)
	}

	// only the winner has money reserved
	total := 0.0
	for _, id := range ids {
		total += balanceOf(t, repo, id)
	}
	require.Equal(t, float64(bidders*10000)-*got.HighestBid, total)
}

// Two concurrent bids a1 < a2 always settle on a2
func TestScenario_TwoConcurrentBids(t *testing.T) {
	ctx := context.Background()

	for round := 0; round < 25; round++ {
		repo, users, now := seededAuction(t)
		service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))
		x := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = service.PlaceBid(ctx, x.ID, users.alice.ID, 300)
		}()
		go func() {
			defer wg.Done()
			_, _ = service.PlaceBid(ctx, x.ID, users.bob.ID, 400)
		}()
		wg.Wait()

		got, err := service.GetVehicle(ctx, x.ID)
		require.NoError(t, err)
		require.Equal(t, 400.0, *got.HighestBid)
		require.Equal(t, users.bob.ID, *got.HighestBidderID)
		require.Equal(t, 1000.0, balanceOf(t, repo, users.alice.ID))
		require.Equal(t, 600.0, balanceOf(t, repo, users.bob.ID))
	}
}

// Expired auctions move to ended-sold or ended-unsold; markSold is idempotent
func TestScenario_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	clock := &testClock{now: now}
	pub := &recordingPublisher{}
	service := NewAuctionService(repo, WithPublisher(pub), WithClock(clock.Now))

	withBid := createVehicle(t, service, users.admin, now.Add(time.Hour), 500)
	noBid := createVehicle(t, service, users.admin, now.Add(time.Hour), 500)
	later := createVehicle(t, service, users.admin, now.Add(48*time.Hour), 500)

	_, err := service.PlaceBid(ctx, withBid.ID, users.alice.ID, 550)
	require.NoError(t, err)

	closed, err := service.CloseExpiredAuctions(ctx)
	require.NoError(t, err)
	require.Zero(t, closed)

	clock.Advance(2 * time.Hour)

	_, err = service.PlaceBid(ctx, withBid.ID, users.bob.ID, 900)
	require.ErrorIs(t, err, auctionerrors.ErrAuctionClosed)

	closed, err = service.CloseExpiredAuctions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, closed)

	closed, err = service.CloseExpiredAuctions(ctx)
	require.NoError(t, err)
	require.Zero(t, closed)

	v, err := service.GetVehicle(ctx, withBid.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusEndedSold, v.Status)

	v, err = service.GetVehicle(ctx, noBid.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusEndedUnsold, v.Status)

	v, err = service.GetVehicle(ctx, later.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, v.Status)

	aliceNotes, err := service.ListNotifications(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Equal(t, []string{model.NotificationAuctionWon}, kindsOf(aliceNotes))

	adminNotes, err := service.ListNotifications(ctx, users.admin.ID)
	require.NoError(t, err)
	require.Contains(t, kindsOf(adminNotes), model.NotificationAuctionEnded)

	// an ended-sold reservation stays with the winner
	profile, err := service.GetProfile(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 450.0, profile.Balance)
	require.Equal(t, 550.0, profile.Reserved)

	sold, err := service.MarkSold(ctx, users.admin, withBid.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSold, sold.Status)

	again, err := service.MarkSold(ctx, users.admin, withBid.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSold, again.Status)

	profile, err = service.GetProfile(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Equal(t, 450.0, profile.Balance)
	require.Zero(t, profile.Reserved)

	// no extra auction_won when an ended-sold vehicle is confirmed
	aliceNotes, err = service.ListNotifications(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceNotes, 1)

	soldEvents := 0
	for _, typ := range pub.types() {
		if typ == events.VehicleSold {
			soldEvents++
		}
	}
	require.Equal(t, 1, soldEvents)
}

// markSold on an active vehicle ends bidding and tells the leader they won
func TestScenario_ForceSold(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 500)

	_, err := service.PlaceBid(ctx, x.ID, users.bob.ID, 800)
	require.NoError(t, err)

	sold, err := service.MarkSold(ctx, users.admin, x.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSold, sold.Status)

	_, err = service.PlaceBid(ctx, x.ID, users.alice.ID, 900)
	require.ErrorIs(t, err, auctionerrors.ErrAuctionClosed)

	notes, err := service.ListNotifications(ctx, users.bob.ID)
	require.NoError(t, err)
	require.Equal(t, []string{model.NotificationAuctionWon}, kindsOf(notes))

	_, err = service.MarkSold(ctx, users.admin, "missing")
	require.ErrorIs(t, err, auctionerrors.ErrVehicleNotFound)
}

// Listing lazily closes expired auctions
func TestScenario_ListVehiclesClosesExpired(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	clock := &testClock{now: now}
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(clock.Now))

	first := createVehicle(t, service, users.admin, now.Add(time.Minute), 100)
	second := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)
	clock.Advance(10 * time.Minute)

	vehicles, err := service.ListVehicles(ctx)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	require.Equal(t, first.ID, vehicles[0].ID)
	require.Equal(t, model.StatusEndedUnsold, vehicles[0].Status)
	require.Equal(t, second.ID, vehicles[1].ID)
	require.Equal(t, model.StatusActive, vehicles[1].Status)
}

// Deleting a vehicle refunds its leader and drops the bids
func TestScenario_DeleteVehicle(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	pub := &recordingPublisher{}
	service := NewAuctionService(repo, WithPublisher(pub), WithClock(func() time.Time { return now }))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)

	_, err := service.PlaceBid(ctx, x.ID, users.alice.ID, 250)
	require.NoError(t, err)
	require.Equal(t, 750.0, balanceOf(t, repo, users.alice.ID))

	require.ErrorIs(t, service.DeleteVehicle(ctx, users.bob, x.ID), auctionerrors.ErrUnauthorized)
	require.NoError(t, service.DeleteVehicle(ctx, users.admin, x.ID))

	require.Equal(t, 1000.0, balanceOf(t, repo, users.alice.ID))
	_, err = service.GetVehicle(ctx, x.ID)
	require.ErrorIs(t, err, auctionerrors.ErrVehicleNotFound)
	_, err = service.GetBidsForVehicle(ctx, x.ID)
	require.ErrorIs(t, err, auctionerrors.ErrVehicleNotFound)

	notes, err := service.ListNotifications(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Equal(t, []string{model.NotificationVehicleWithdrawn}, kindsOf(notes))
	require.Contains(t, pub.types(), events.VehicleDeleted)

	require.ErrorIs(t, service.DeleteVehicle(ctx, users.admin, x.ID), auctionerrors.ErrVehicleNotFound)
}

// Editing replaces listing fields but keeps bids and status
func TestScenario_EditVehicle(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	clock := &testClock{now: now}
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(clock.Now))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)

	_, err := service.PlaceBid(ctx, x.ID, users.alice.ID, 150)
	require.NoError(t, err)

	spec := model.VehicleSpec{
		Make: "Toyota", Model: "Corolla LE", Year: 2019, Mileage: 43000,
		ReservePrice: 200, Description: "new tyres", EndTime: x.EndTime,
	}
	edited, err := service.EditVehicle(ctx, users.admin, x.ID, spec)
	require.NoError(t, err)
	require.Equal(t, "Corolla LE", edited.Model)
	require.Equal(t, 200.0, edited.ReservePrice)
	require.Equal(t, 150.0, *edited.HighestBid)
	require.Equal(t, model.StatusActive, edited.Status)

	bids, err := service.GetBidsForVehicle(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)

	spec.EndTime = now.Add(-time.Minute)
	_, err = service.EditVehicle(ctx, users.admin, x.ID, spec)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidSpec)

	// an unchanged end time may already lie in the past
	clock.Advance(2 * time.Hour)
	spec.EndTime = x.EndTime
	spec.Description = "sold as seen"
	_, err = service.EditVehicle(ctx, users.admin, x.ID, spec)
	require.NoError(t, err)

	_, err = service.EditVehicle(ctx, users.admin, "missing", spec)
	require.ErrorIs(t, err, auctionerrors.ErrVehicleNotFound)
}

// addFunds is monotonic and reconciles the balance
func TestScenario_AddFunds(t *testing.T) {
	ctx := context.Background()
	repo, users, _ := seededAuction(t)
	service := NewAuctionService(repo)

	balance := balanceOf(t, repo, users.alice.ID)
	for _, amount := range []float64{0.01, 25, 100.5} {
		got, err := service.AddFunds(ctx, users.alice.ID, amount)
		require.NoError(t, err)
		require.InDelta(t, balance+amount, got, 1e-9)
		balance = got
	}

	_, err := service.AddFunds(ctx, users.alice.ID, 0)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidAmount)
	require.Equal(t, balance, balanceOf(t, repo, users.alice.ID))

	_, err = service.AddFunds(ctx, users.alice.ID, 10.005)
	require.ErrorIs(t, err, auctionerrors.ErrInvalidAmount)
	require.Equal(t, balance, balanceOf(t, repo, users.alice.ID))

	_, err = service.AddFunds(ctx, "ghost", 10)
	require.ErrorIs(t, err, auctionerrors.ErrUserNotFound)
}

// Balances plus reserved funds stay constant across a long chain of outbids and self-raises
func TestScenario_FundsConserved(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 1)

	total := func() float64 {
		sum := 0.0
		for _, id := range []string{users.alice.ID, users.bob.ID} {
			p, err := service.GetProfile(ctx, id)
			require.NoError(t, err)
			sum += p.Balance + p.Reserved
		}
		return sum
	}
	start := total()

	bidders := []string{users.alice.ID, users.bob.ID, users.bob.ID}
	for i := 0; i < 200; i++ {
		amount := float64(100+5*i) / 100

		_, err := service.PlaceBid(ctx, x.ID, bidders[i%3], amount+0.005)
		require.ErrorIs(t, err, auctionerrors.ErrInvalidBid, "round %d", i)

		_, err = service.PlaceBid(ctx, x.ID, bidders[i%3], amount)
		require.NoError(t, err, "round %d", i)
		require.InDelta(t, start, total(), 1e-6, "round %d", i)
	}

	got, err := service.GetVehicle(ctx, x.ID)
	require.NoError(t, err)
	require.Equal(t, 10.95, *got.HighestBid)
	require.Equal(t, users.bob.ID, *got.HighestBidderID)

	bids, err := service.GetBidsForVehicle(ctx, x.ID)
	require.NoError(t, err)
	require.Len(t, bids, 200)
	for _, b := range bids {
		require.Equal(t, math.Round(b.Amount*100)/100, b.Amount)
	}
}

// markRead removes a notification from the pending list and repeats harmlessly
func TestScenario_Notifications(t *testing.T) {
	ctx := context.Background()
	repo, users, now := seededAuction(t)
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(func() time.Time { return now }))
	x := createVehicle(t, service, users.admin, now.Add(time.Hour), 100)

	_, err := service.PlaceBid(ctx, x.ID, users.alice.ID, 150)
	require.NoError(t, err)
	_, err = service.PlaceBid(ctx, x.ID, users.bob.ID, 200)
	require.NoError(t, err)

	notes, err := service.ListNotifications(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	id := notes[0].ID

	require.ErrorIs(t, service.MarkNotificationRead(ctx, users.bob.ID, id), auctionerrors.ErrNotificationNotFound)

	require.NoError(t, service.MarkNotificationRead(ctx, users.alice.ID, id))
	require.NoError(t, service.MarkNotificationRead(ctx, users.alice.ID, id))

	notes, err = service.ListNotifications(ctx, users.alice.ID)
	require.NoError(t, err)
	require.Empty(t, notes)
}

// The sweeper closes auctions in the background and stops with its context
func TestScenario_RunLifecycle(t *testing.T) {
	repo, users, now := seededAuction(t)
	clock := &testClock{now: now}
	service := NewAuctionService(repo, WithPublisher(&recordingPublisher{}), WithClock(clock.Now))
	x := createVehicle(t, service, users.admin, now.Add(time.Minute), 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.RunLifecycle(ctx, 5*time.Millisecond) }()

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool {
		v, err := repo.GetVehicle(context.Background(), x.ID)
		return err == nil && v.Status == model.StatusEndedUnsold
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

// Admin user listing
func TestScenario_ListUsers(t *testing.T) {
	repo, users, _ := seededAuction(t)
	service := NewAuctionService(repo)

	list, err := service.ListUsers(context.Background(), users.admin)
	require.NoError(t, err)
	require.Len(t, list, 3)

	_, err = service.ListUsers(context.Background(), users.alice)
	require.ErrorIs(t, err, auctionerrors.ErrUnauthorized)
}
