package repository

import (
	"context"
	"fmt"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"

	"github.com/samber/lo"
)

// memoryTx stages writes against a MemoryRepo until commit
type memoryTx struct {
	repo *MemoryRepo

	vehicles      map[string]model.Vehicle
	deleted       map[string]bool
	balances      map[string]float64
	bids          []model.Bid
	notifications []model.Notification
}

func newMemoryTx(repo *MemoryRepo) *memoryTx {
	return &memoryTx{
		repo:     repo,
		vehicles: make(map[string]model.Vehicle),
		deleted:  make(map[string]bool),
		balances: make(map[string]float64),
	}
}

func (tx *memoryTx) LockVehicle(_ context.Context, vehicleID string) (model.Vehicle, error) {
	v, ok := tx.vehicle(vehicleID)
	if !ok {
		return model.Vehicle{}, fmt.Errorf("lock vehicle %s: %w", vehicleID, auctionerrors.ErrVehicleNotFound)
	}
	return v, nil
}

func (tx *memoryTx) LockUsers(_ context.Context, userIDs ...string) (map[string]model.User, error) {
	tx.repo.mu.RLock()
	defer tx.repo.mu.RUnlock()

	users := make(map[string]model.User, len(userIDs))
	for _, id := range lo.Uniq(userIDs) {
		u, ok := tx.repo.users[id]
		if !ok {
			return nil, fmt.Errorf("lock user %s: %w", id, auctionerrors.ErrUserNotFound)
		}
		if balance, staged := tx.balances[id]; staged {
			u.Balance = balance
		}
		users[id] = u
	}
	return users, nil
}

func (tx *memoryTx) UpdateVehicle(_ context.Context, vehicle model.Vehicle) error {
	if _, ok := tx.vehicle(vehicle.ID); !ok {
		return fmt.Errorf("update vehicle %s: %w", vehicle.ID, auctionerrors.ErrVehicleNotFound)
	}
	tx.vehicles[vehicle.ID] = vehicle
	return nil
}

func (tx *memoryTx) DeleteVehicle(_ context.Context, vehicleID string) error {
	if _, ok := tx.vehicle(vehicleID); !ok {
		return fmt.Errorf("delete vehicle %s: %w", vehicleID, auctionerrors.ErrVehicleNotFound)
	}
	delete(tx.vehicles, vehicleID)
	tx.deleted[vehicleID] = true
	return nil
}

func (tx *memoryTx) InsertBid(_ context.Context, bid model.Bid) error {
	if _, ok := tx.vehicle(bid.VehicleID); !ok {
		return fmt.Errorf("record bid for vehicle %s: %w", bid.VehicleID, auctionerrors.ErrVehicleNotFound)
	}
	tx.bids = append(tx.bids, bid)
	return nil
}

func (tx *memoryTx) SetBalance(_ context.Context, userID string, balance float64) error {
	tx.repo.mu.RLock()
	_, ok := tx.repo.users[userID]
	tx.repo.mu.RUnlock()
	if !ok {
		return fmt.Errorf("set balance for user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	if balance < 0 {
		return fmt.Errorf("set balance for user %s: %w", userID, auctionerrors.ErrInsufficientFunds)
	}
	tx.balances[userID] = balance
	return nil
}

func (tx *memoryTx) InsertNotification(_ context.Context, notification model.Notification) error {
	tx.notifications = append(tx.notifications, notification)
	return nil
}

// vehicle resolves a vehicle through the staged writes first
func (tx *memoryTx) vehicle(vehicleID string) (model.Vehicle, bool) {
	if tx.deleted[vehicleID] {
		return model.Vehicle{}, false
	}
	if v, ok := tx.vehicles[vehicleID]; ok {
		return v, true
	}
	tx.repo.mu.RLock()
	defer tx.repo.mu.RUnlock()
	v, ok := tx.repo.vehicles[vehicleID]
	return v, ok
}

// commit applies the staged writes in one critical section
func (tx *memoryTx) commit() {
	r := tx.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, v := range tx.vehicles {
		r.vehicles[id] = v
	}
	for _, b := range tx.bids {
		r.bids[b.VehicleID] = append(r.bids[b.VehicleID], b)
	}
	for id := range tx.deleted {
		delete(r.vehicles, id)
		delete(r.bids, id)
		r.vehicleOrder = lo.Without(r.vehicleOrder, id)
	}
	for id, balance := range tx.balances {
		u := r.users[id]
		u.Balance = balance
		r.users[id] = u
	}
	for _, n := range tx.notifications {
		r.notifications[n.ID] = n
		r.notificationOrder = append(r.notificationOrder, n.ID)
	}
}
