//go:generate mockgen -package=repository -destination=mock_repository.go -source=repository.go

package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
)

// UserStore is the subset of storage the session manager needs
type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUser(ctx context.Context, userID string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
}

// Store defines the storage interface for the auction system.
// Reads are not transactional; every mutation of ledger state goes through WithinTx.
type Store interface {
	UserStore
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateVehicle(ctx context.Context, vehicle model.Vehicle) error
	GetVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error)
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	ListExpiredVehicleIDs(ctx context.Context, now time.Time) ([]string, error)

	GetBidsByVehicle(ctx context.Context, vehicleID string) ([]model.Bid, error)
	GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error)

	ListUnreadNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	GetNotification(ctx context.Context, notificationID string) (model.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error

	// WithinTx runs fn as one atomic unit. If fn returns an error nothing it wrote is kept.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of a storage transaction. Locked rows stay locked until the transaction ends.
type Tx interface {
	LockVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error)
	// LockUsers locks the given users in ascending id order and returns them keyed by id
	LockUsers(ctx context.Context, userIDs ...string) (map[string]model.User, error)
	UpdateVehicle(ctx context.Context, vehicle model.Vehicle) error
	// DeleteVehicle removes the vehicle together with its bids
	DeleteVehicle(ctx context.Context, vehicleID string) error
	InsertBid(ctx context.Context, bid model.Bid) error
	SetBalance(ctx context.Context, userID string, balance float64) error
	InsertNotification(ctx context.Context, notification model.Notification) error
}

// MemoryRepo is a concurrency-safe in-memory implementation of Store
type MemoryRepo struct {
	txMu sync.Mutex // serializes writer transactions
	mu   sync.RWMutex

	users     map[string]model.User
	userOrder []string
	usernames map[string]string // key: username -> value: userID
	emails    map[string]string // key: lower-cased email -> value: userID

	vehicles     map[string]model.Vehicle
	vehicleOrder []string
	bids         map[string][]model.Bid // key: vehicleID -> value: bids in acceptance order

	notifications     map[string]model.Notification
	notificationOrder []string
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:         make(map[string]model.User),
		usernames:     make(map[string]string),
		emails:        make(map[string]string),
		vehicles:      make(map[string]model.Vehicle),
		bids:          make(map[string][]model.Bid),
		notifications: make(map[string]model.Notification),
	}
}

// CreateUser stores a new user, rejecting duplicate usernames and emails
func (r *MemoryRepo) CreateUser(_ context.Context, user model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.usernames[user.Username]; ok {
		return fmt.Errorf("create user %s: %w", user.Username, auctionerrors.ErrDuplicateUsername)
	}
	email := strings.ToLower(user.Email)
	if _, ok := r.emails[email]; ok {
		return fmt.Errorf("create user %s: %w", user.Username, auctionerrors.ErrDuplicateEmail)
	}

	r.users[user.ID] = user
	r.userOrder = append(r.userOrder, user.ID)
	r.usernames[user.Username] = user.ID
	r.emails[email] = user.ID
	return nil
}

// GetUser returns a user by id
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, auctionerrors.ErrUserNotFound)
	}
	return user, nil
}

// GetUserByUsername returns a user by username
func (r *MemoryRepo) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usernames[username]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", username, auctionerrors.ErrUserNotFound)
	}
	return r.users[id], nil
}

// ListUsers returns all users in registration order
func (r *MemoryRepo) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.userOrder))
	for _, id := range r.userOrder {
		users = append(users, r.users[id])
	}
	return users, nil
}

// CreateVehicle stores a new vehicle listing
func (r *MemoryRepo) CreateVehicle(_ context.Context, vehicle model.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.vehicles[vehicle.ID]; ok {
		return fmt.Errorf("create vehicle %s: %w - duplicate id", vehicle.ID, auctionerrors.ErrInvalidSpec)
	}
	r.vehicles[vehicle.ID] = vehicle
	r.vehicleOrder = append(r.vehicleOrder, vehicle.ID)
	return nil
}

// GetVehicle returns a vehicle by id
func (r *MemoryRepo) GetVehicle(_ context.Context, vehicleID string) (model.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vehicle, ok := r.vehicles[vehicleID]
	if !ok {
		return model.Vehicle{}, fmt.Errorf("get vehicle %s: %w", vehicleID, auctionerrors.ErrVehicleNotFound)
	}
	return vehicle, nil
}

// ListVehicles returns every vehicle in creation order, whatever its status
func (r *MemoryRepo) ListVehicles(_ context.Context) ([]model.Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vehicles := make([]model.Vehicle, 0, len(r.vehicleOrder))
	for _, id := range r.vehicleOrder {
		vehicles = append(vehicles, r.vehicles[id])
	}
	return vehicles, nil
}

// ListExpiredVehicleIDs returns active vehicles whose end time is at or before now
func (r *MemoryRepo) ListExpiredVehicleIDs(_ context.Context, now time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.vehicleOrder {
		v := r.vehicles[id]
		if v.Status == model.StatusActive && !now.Before(v.EndTime) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// GetBidsByVehicle returns all bids for a vehicle in acceptance order
func (r *MemoryRepo) GetBidsByVehicle(_ context.Context, vehicleID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.vehicles[vehicleID]; !ok {
		return nil, fmt.Errorf("get bids for vehicle %s: %w", vehicleID, auctionerrors.ErrVehicleNotFound)
	}
	return append([]model.Bid{}, r.bids[vehicleID]...), nil
}

// GetBidsByUser returns all bids placed by a user, oldest first
func (r *MemoryRepo) GetBidsByUser(_ context.Context, userID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := []model.Bid{}
	for _, id := range r.vehicleOrder {
		for _, b := range r.bids[id] {
			if b.UserID == userID {
				bids = append(bids, b)
			}
		}
	}
	sort.SliceStable(bids, func(i, j int) bool { return bids[i].CreatedAt.Before(bids[j].CreatedAt) })
	return bids, nil
}

// ListUnreadNotifications returns a user's unread notifications, oldest first
func (r *MemoryRepo) ListUnreadNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notifications := []model.Notification{}
	for _, id := range r.notificationOrder {
		n := r.notifications[id]
		if n.UserID == userID && !n.Read {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

// GetNotification returns a notification by id
func (r *MemoryRepo) GetNotification(_ context.Context, notificationID string) (model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.notifications[notificationID]
	if !ok {
		return model.Notification{}, fmt.Errorf("get notification %s: %w", notificationID, auctionerrors.ErrNotificationNotFound)
	}
	return n, nil
}

// MarkNotificationRead flips the read flag; repeating it is a no-op
func (r *MemoryRepo) MarkNotificationRead(_ context.Context, notificationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationID]
	if !ok {
		return fmt.Errorf("mark notification %s read: %w", notificationID, auctionerrors.ErrNotificationNotFound)
	}
	n.Read = true
	r.notifications[notificationID] = n
	return nil
}

// WithinTx runs fn with exclusive write access. Writes are staged and applied only if fn succeeds.
func (r *MemoryRepo) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	tx := newMemoryTx(r)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}
