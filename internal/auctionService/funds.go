package auction

import (
	"context"
	"fmt"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/utils"

	"github.com/samber/lo"
)

// AddFunds tops up a user's balance and returns the new balance
func (s *AuctionService) AddFunds(ctx context.Context, userID string, amount float64) (float64, error) {
	if userID == "" {
		return 0, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidInput)
	}
	if !validAmount(amount) {
		return 0, fmt.Errorf("service: %w - amount must be positive whole cents", auctionerrors.ErrInvalidAmount)
	}

	var newBalance float64
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		users, err := tx.LockUsers(ctx, userID)
		if err != nil {
			return err
		}
		newBalance = roundCents(users[userID].Balance + amount)
		return tx.SetBalance(ctx, userID, newBalance)
	})
	if err != nil {
		return 0, fmt.Errorf("service: failed to add funds for user %s: %w", userID, err)
	}

	utils.Info("funds added", map[string]any{"user_id": userID, "amount": amount, "new_balance": newBalance})
	return newBalance, nil
}

// GetProfile returns a user together with the funds currently reserved by leading bids
func (s *AuctionService) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.Profile{}, fmt.Errorf("service: failed to load profile %s: %w", userID, err)
	}

	vehicles, err := s.repo.ListVehicles(ctx)
	if err != nil {
		return model.Profile{}, fmt.Errorf("service: failed to load vehicles: %w", err)
	}

	leading := lo.Filter(vehicles, func(v model.Vehicle, _ int) bool {
		return v.HasLeader() && *v.HighestBidderID == userID && !v.Final()
	})
	reserved := lo.SumBy(leading, func(v model.Vehicle) float64 { return *v.HighestBid })

	return model.Profile{User: user, Reserved: roundCents(reserved)}, nil
}

// GetUserBids returns every bid the user has placed, oldest first
func (s *AuctionService) GetUserBids(ctx context.Context, userID string) ([]model.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", auctionerrors.ErrInvalidInput)
	}

	bids, err := s.repo.GetBidsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}
	return bids, nil
}
