package perftests

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	auction "vehicle-auction/internal/auctionService"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/utils"
)

// fixture is a service over a memory store with funded bidders and open vehicles
type fixture struct {
	repo       *repository.MemoryRepo
	svc        *auction.AuctionService
	vehicleIDs []string
	userIDs    []string
}

func newFixture(tb testing.TB, numVehicles, numUsers int, balance float64) *fixture {
	tb.Helper()
	utils.SetLogOutput(io.Discard)
	ctx := context.Background()
	now := time.Now().UTC()

	f := &fixture{repo: repository.NewMemoryRepo()}
	f.svc = auction.NewAuctionService(f.repo)

	for i := 0; i < numUsers; i++ {
		u := model.User{
			ID:        fmt.Sprintf("user_%d", i),
			Username:  fmt.Sprintf("user_%d", i),
			Email:     fmt.Sprintf("user_%d@example.com", i),
			Role:      model.RoleBidder,
			Balance:   balance,
			CreatedAt: now,
		}
		if err := f.repo.CreateUser(ctx, u); err != nil {
			tb.Fatalf("failed to seed user: %v", err)
		}
		f.userIDs = append(f.userIDs, u.ID)
	}

	for i := 0; i < numVehicles; i++ {
		v := model.Vehicle{
			ID:           fmt.Sprintf("vehicle_%d", i),
			Make:         "Load",
			Model:        fmt.Sprintf("Test %d", i),
			Year:         2020,
			ReservePrice: 50,
			EndTime:      now.Add(24 * time.Hour),
			SellerID:     "seller",
			Status:       model.StatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := f.repo.CreateVehicle(ctx, v); err != nil {
			tb.Fatalf("failed to seed vehicle: %v", err)
		}
		f.vehicleIDs = append(f.vehicleIDs, v.ID)
	}
	return f
}
