package auction

import (
	"context"
	"fmt"

	"vehicle-auction/internal/auctionerrors"
	"vehicle-auction/internal/events"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/utils"
)

// PlaceBid validates and records a user's bid for a vehicle.
// The bid amount is reserved from the bidder's balance and the previous leader is refunded, all in one transaction.
func (s *AuctionService) PlaceBid(ctx context.Context, vehicleID, userID string, amount float64) (model.BidResult, error) {
	if vehicleID == "" || userID == "" {
		return model.BidResult{}, fmt.Errorf("service: %w - missing vehicleID or userID", auctionerrors.ErrInvalidBid)
	}
	if !validAmount(amount) {
		return model.BidResult{}, fmt.Errorf("service: %w - bid amount must be positive whole cents", auctionerrors.ErrInvalidBid)
	}

	var result model.BidResult
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		v, err := tx.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		now := s.clock()
		if v.Status != model.StatusActive || !now.Before(v.EndTime) {
			return fmt.Errorf("%w - bidding on the %s %s is closed", auctionerrors.ErrAuctionClosed, v.Make, v.Model)
		}
		if err := checkBidFloor(v, amount); err != nil {
			return err
		}

		var prevLeader string
		if v.HasLeader() {
			prevLeader = *v.HighestBidderID
		}
		lockIDs := []string{userID}
		if prevLeader != "" && prevLeader != userID {
			lockIDs = append(lockIDs, prevLeader)
		}
		users, err := tx.LockUsers(ctx, lockIDs...)
		if err != nil {
			return err
		}

		bidder := users[userID]
		available := bidder.Balance
		if prevLeader == userID {
			// raising your own lead only costs the increment
			available += *v.HighestBid
		}
		if amount > available {
			return fmt.Errorf("%w - bid of %.2f exceeds available balance %.2f", auctionerrors.ErrInsufficientFunds, amount, available)
		}

		newBalance := roundCents(available - amount)
		if err := tx.SetBalance(ctx, userID, newBalance); err != nil {
			return err
		}

		if prevLeader != "" && prevLeader != userID {
			outbid := users[prevLeader]
			if err := tx.SetBalance(ctx, prevLeader, roundCents(outbid.Balance+*v.HighestBid)); err != nil {
				return err
			}
			msg := fmt.Sprintf("You have been outbid on the %s %s. New highest bid: $%.2f", v.Make, v.Model, amount)
			if err := tx.InsertNotification(ctx, s.newNotification(prevLeader, model.NotificationOutbid, msg)); err != nil {
				return err
			}
		}

		bid := model.Bid{
			BidID:     utils.GenerateID(),
			VehicleID: vehicleID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}

		result = model.BidResult{Bid: bid, PreviousBid: v.HighestBid, NewBalance: newBalance}

		highest := amount
		bidderID := userID
		v.HighestBid = &highest
		v.HighestBidderID = &bidderID
		v.UpdatedAt = now
		if err := tx.UpdateVehicle(ctx, v); err != nil {
			return err
		}

		if v.SellerID != userID {
			msg := fmt.Sprintf("New bid of $%.2f placed on your %s %s", amount, v.Make, v.Model)
			if err := tx.InsertNotification(ctx, s.newNotification(v.SellerID, model.NotificationNewBid, msg)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.BidResult{}, fmt.Errorf("service: failed to place bid on vehicle %s by user %s: %w", vehicleID, userID, err)
	}

	utils.Info("bid accepted", map[string]any{
		"bid_id":     result.Bid.BidID,
		"vehicle_id": vehicleID,
		"user_id":    userID,
		"amount":     amount,
	})
	s.publish(ctx, events.Event{Type: events.BidPlaced, VehicleID: vehicleID, UserID: userID, Amount: &amount})
	return result, nil
}

// checkBidFloor enforces the reserve price on the first bid and strict increase afterwards
func checkBidFloor(v model.Vehicle, amount float64) error {
	if !v.HasLeader() {
		if amount < v.ReservePrice {
			return fmt.Errorf("%w - first bid must be at least the reserve price %.2f", auctionerrors.ErrBidTooLow, v.ReservePrice)
		}
		return nil
	}
	if amount <= *v.HighestBid {
		return fmt.Errorf("%w - current highest bid is %.2f", auctionerrors.ErrBidTooLow, *v.HighestBid)
	}
	return nil
}

// GetBidsForVehicle returns all bids for a specific vehicle
func (s *AuctionService) GetBidsForVehicle(ctx context.Context, vehicleID string) ([]model.Bid, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("service: %w - empty vehicle ID", auctionerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for vehicle %s: %w", vehicleID, err)
	}
	return bids, nil
}
