package auction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vehicle-auction/internal/auctionerrors"
	"vehicle-auction/internal/events"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/utils"
)

const firstCarYear = 1886

// validateSpec checks the admin-supplied vehicle fields.
// requireFutureEnd is false when an edit keeps the existing end time.
func (s *AuctionService) validateSpec(spec model.VehicleSpec, requireFutureEnd bool) error {
	now := s.clock()
	switch {
	case strings.TrimSpace(spec.Make) == "" || strings.TrimSpace(spec.Model) == "":
		return fmt.Errorf("service: %w - make and model are required", auctionerrors.ErrInvalidSpec)
	case spec.Year < firstCarYear || spec.Year > now.Year()+1:
		return fmt.Errorf("service: %w - year %d out of range", auctionerrors.ErrInvalidSpec, spec.Year)
	case spec.Mileage < 0:
		return fmt.Errorf("service: %w - negative mileage", auctionerrors.ErrInvalidSpec)
	case !validAmount(spec.ReservePrice):
		return fmt.Errorf("service: %w - reserve price must be positive whole cents", auctionerrors.ErrInvalidSpec)
	case spec.EndTime.IsZero():
		return fmt.Errorf("service: %w - end time is required", auctionerrors.ErrInvalidSpec)
	case requireFutureEnd && !spec.EndTime.After(now):
		return fmt.Errorf("service: %w - end time must be in the future", auctionerrors.ErrInvalidSpec)
	}
	return nil
}

func applySpec(v *model.Vehicle, spec model.VehicleSpec) {
	v.Make = strings.TrimSpace(spec.Make)
	v.Model = strings.TrimSpace(spec.Model)
	v.Year = spec.Year
	v.Mileage = spec.Mileage
	v.ReservePrice = spec.ReservePrice
	v.Description = strings.TrimSpace(spec.Description)
	v.EndTime = spec.EndTime.UTC()
}

// ListVehicles closes auctions whose end time has passed and returns every vehicle in creation order
func (s *AuctionService) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	if _, err := s.CloseExpiredAuctions(ctx); err != nil {
		utils.Warn("failed to close expired auctions before listing", map[string]any{"error": err.Error()})
	}

	vehicles, err := s.repo.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

// GetVehicle returns a single vehicle, closing its auction first if it has expired
func (s *AuctionService) GetVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	if vehicleID == "" {
		return model.Vehicle{}, fmt.Errorf("service: %w - empty vehicle ID", auctionerrors.ErrInvalidInput)
	}

	v, err := s.repo.GetVehicle(ctx, vehicleID)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("service: failed to get vehicle %s: %w", vehicleID, err)
	}
	if v.Status != model.StatusActive || s.clock().Before(v.EndTime) {
		return v, nil
	}

	closed, err := s.closeAuction(ctx, vehicleID)
	if err != nil {
		return model.Vehicle{}, err
	}
	if closed != nil {
		return *closed, nil
	}
	return s.repo.GetVehicle(ctx, vehicleID)
}

// CreateVehicle lists a new vehicle for auction with the caller as seller
func (s *AuctionService) CreateVehicle(ctx context.Context, caller model.User, spec model.VehicleSpec) (model.Vehicle, error) {
	if err := requireAdmin(caller, "create vehicle"); err != nil {
		return model.Vehicle{}, err
	}
	if err := s.validateSpec(spec, true); err != nil {
		return model.Vehicle{}, err
	}

	now := s.clock()
	v := model.Vehicle{
		ID:        utils.GenerateID(),
		SellerID:  caller.ID,
		Status:    model.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applySpec(&v, spec)

	if err := s.repo.CreateVehicle(ctx, v); err != nil {
		return model.Vehicle{}, fmt.Errorf("service: failed to create vehicle: %w", err)
	}

	utils.Info("vehicle listed", map[string]any{
		"vehicle_id":    v.ID,
		"make":          v.Make,
		"model":         v.Model,
		"reserve_price": v.ReservePrice,
		"end_time":      v.EndTime.Format(time.RFC3339),
	})
	return v, nil
}

// EditVehicle replaces the mutable fields of a vehicle. Status and bids are left untouched.
func (s *AuctionService) EditVehicle(ctx context.Context, caller model.User, vehicleID string, spec model.VehicleSpec) (model.Vehicle, error) {
	if err := requireAdmin(caller, "edit vehicle"); err != nil {
		return model.Vehicle{}, err
	}
	if vehicleID == "" {
		return model.Vehicle{}, fmt.Errorf("service: %w - empty vehicle ID", auctionerrors.ErrInvalidInput)
	}

	var updated model.Vehicle
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		v, err := tx.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if err := s.validateSpec(spec, !spec.EndTime.Equal(v.EndTime)); err != nil {
			return err
		}
		applySpec(&v, spec)
		v.UpdatedAt = s.clock()
		if err := tx.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		updated = v
		return nil
	})
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("service: failed to edit vehicle %s: %w", vehicleID, err)
	}

	utils.Info("vehicle edited", map[string]any{"vehicle_id": vehicleID, "admin_id": caller.ID})
	return updated, nil
}

// DeleteVehicle removes a vehicle and its bids. A leading bidder on an unsettled auction gets the reserved funds back.
func (s *AuctionService) DeleteVehicle(ctx context.Context, caller model.User, vehicleID string) error {
	if err := requireAdmin(caller, "delete vehicle"); err != nil {
		return err
	}
	if vehicleID == "" {
		return fmt.Errorf("service: %w - empty vehicle ID", auctionerrors.ErrInvalidInput)
	}

	var refunded *model.Bid
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		v, err := tx.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}

		if v.HasLeader() && !v.Final() {
			leaderID := *v.HighestBidderID
			users, err := tx.LockUsers(ctx, leaderID)
			if err != nil {
				return err
			}
			if err := tx.SetBalance(ctx, leaderID, roundCents(users[leaderID].Balance+*v.HighestBid)); err != nil {
				return err
			}
			msg := fmt.Sprintf("The %s %s was withdrawn from auction; your bid of $%.2f has been returned to your balance", v.Make, v.Model, *v.HighestBid)
			if err := tx.InsertNotification(ctx, s.newNotification(leaderID, model.NotificationVehicleWithdrawn, msg)); err != nil {
				return err
			}
			refunded = &model.Bid{UserID: leaderID, Amount: *v.HighestBid}
		}

		return tx.DeleteVehicle(ctx, vehicleID)
	})
	if err != nil {
		return fmt.Errorf("service: failed to delete vehicle %s: %w", vehicleID, err)
	}

	fields := map[string]any{"vehicle_id": vehicleID, "admin_id": caller.ID}
	if refunded != nil {
		fields["refunded_user_id"] = refunded.UserID
		fields["refunded_amount"] = refunded.Amount
	}
	utils.Info("vehicle deleted", fields)
	s.publish(ctx, events.Event{Type: events.VehicleDeleted, VehicleID: vehicleID})
	return nil
}

// MarkSold moves a vehicle to sold from any status. Marking a sold vehicle again is a no-op.
func (s *AuctionService) MarkSold(ctx context.Context, caller model.User, vehicleID string) (model.Vehicle, error) {
	if err := requireAdmin(caller, "mark vehicle sold"); err != nil {
		return model.Vehicle{}, err
	}
	if vehicleID == "" {
		return model.Vehicle{}, fmt.Errorf("service: %w - empty vehicle ID", auctionerrors.ErrInvalidInput)
	}

	var (
		sold    model.Vehicle
		changed bool
	)
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		v, err := tx.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if v.Status == model.StatusSold {
			sold = v
			return nil
		}

		// ended-sold leaders were already told they won when the auction closed
		if v.Status == model.StatusActive && v.HasLeader() {
			msg := fmt.Sprintf("Congratulations! You won the %s %s with a bid of $%.2f", v.Make, v.Model, *v.HighestBid)
			if err := tx.InsertNotification(ctx, s.newNotification(*v.HighestBidderID, model.NotificationAuctionWon, msg)); err != nil {
				return err
			}
		}

		v.Status = model.StatusSold
		v.UpdatedAt = s.clock()
		if err := tx.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		sold = v
		changed = true
		return nil
	})
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("service: failed to mark vehicle %s sold: %w", vehicleID, err)
	}

	if changed {
		utils.Info("vehicle marked sold", map[string]any{"vehicle_id": vehicleID, "admin_id": caller.ID})
		event := events.Event{Type: events.VehicleSold, VehicleID: vehicleID, Status: sold.Status, Amount: sold.HighestBid}
		if sold.HighestBidderID != nil {
			event.UserID = *sold.HighestBidderID
		}
		s.publish(ctx, event)
	}
	return sold, nil
}

// CloseExpiredAuctions ends every active auction whose end time has passed and returns how many were closed
func (s *AuctionService) CloseExpiredAuctions(ctx context.Context) (int, error) {
	ids, err := s.repo.ListExpiredVehicleIDs(ctx, s.clock())
	if err != nil {
		return 0, fmt.Errorf("service: failed to list expired auctions: %w", err)
	}

	closed := 0
	var errs []error
	for _, id := range ids {
		v, err := s.closeAuction(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if v != nil {
			closed++
		}
	}
	return closed, errors.Join(errs...)
}

// closeAuction ends a single expired auction. It returns nil when another writer got there first.
func (s *AuctionService) closeAuction(ctx context.Context, vehicleID string) (*model.Vehicle, error) {
	var ended *model.Vehicle
	err := s.repo.WithinTx(ctx, func(tx repository.Tx) error {
		v, err := tx.LockVehicle(ctx, vehicleID)
		if err != nil {
			if errors.Is(err, auctionerrors.ErrVehicleNotFound) {
				return nil
			}
			return err
		}
		if v.Status != model.StatusActive || s.clock().Before(v.EndTime) {
			return nil
		}

		var n model.Notification
		if v.HasLeader() {
			v.Status = model.StatusEndedSold
			msg := fmt.Sprintf("Congratulations! You won the auction for the %s %s with a bid of $%.2f", v.Make, v.Model, *v.HighestBid)
			n = s.newNotification(*v.HighestBidderID, model.NotificationAuctionWon, msg)
		} else {
			v.Status = model.StatusEndedUnsold
			msg := fmt.Sprintf("Your auction for the %s %s ended without any bids", v.Make, v.Model)
			n = s.newNotification(v.SellerID, model.NotificationAuctionEnded, msg)
		}
		v.UpdatedAt = s.clock()

		if err := tx.UpdateVehicle(ctx, v); err != nil {
			return err
		}
		if err := tx.InsertNotification(ctx, n); err != nil {
			return err
		}
		ended = &v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service: failed to close auction %s: %w", vehicleID, err)
	}
	if ended == nil {
		return nil, nil
	}

	utils.Info("auction ended", map[string]any{"vehicle_id": vehicleID, "status": ended.Status})
	event := events.Event{Type: events.AuctionEnded, VehicleID: vehicleID, Status: ended.Status, Amount: ended.HighestBid}
	if ended.HighestBidderID != nil {
		event.UserID = *ended.HighestBidderID
	}
	s.publish(ctx, event)
	return ended, nil
}

// RunLifecycle closes expired auctions every interval until ctx is cancelled
func (s *AuctionService) RunLifecycle(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	utils.Info("auction lifecycle sweeper started", map[string]any{"interval": interval.String()})
	for {
		if n, err := s.CloseExpiredAuctions(ctx); err != nil {
			utils.Error("auction sweep failed", map[string]any{"error": err.Error()})
		} else if n > 0 {
			utils.Debug("auction sweep closed auctions", map[string]any{"closed": n})
		}

		select {
		case <-ctx.Done():
			utils.Info("auction lifecycle sweeper stopped", nil)
			return nil
		case <-ticker.C:
		}
	}
}
