package auction

import (
	"context"
	"fmt"
	"math"
	"time"

	"vehicle-auction/internal/auctionerrors"
	"vehicle-auction/internal/events"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/utils"
)

// AuctionService holds the catalog, bid ledger, funds ledger and notification queue logic.
// Every mutation runs as one repository transaction.
type AuctionService struct {
	repo      repository.Store
	publisher events.Publisher
	now       func() time.Time
}

// Option configures an AuctionService
type Option func(*AuctionService)

// WithPublisher sets where committed auction events are sent
func WithPublisher(p events.Publisher) Option {
	return func(s *AuctionService) {
		s.publisher = p
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *AuctionService) {
		s.now = now
	}
}

// NewAuctionService creates a new AuctionService instance
func NewAuctionService(repo repository.Store, opts ...Option) *AuctionService {
	s := &AuctionService{
		repo:      repo,
		publisher: events.LogPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AuctionService) clock() time.Time {
	return s.now().UTC()
}

// publish hands a committed event to the publisher; failures are logged and swallowed
func (s *AuctionService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.clock()
	if err := s.publisher.Publish(ctx, event); err != nil {
		utils.Warn("failed to publish auction event", map[string]any{
			"type":       event.Type,
			"vehicle_id": event.VehicleID,
			"error":      err.Error(),
		})
	}
}

func (s *AuctionService) newNotification(userID, kind, message string) model.Notification {
	return model.Notification{
		ID:        utils.GenerateID(),
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		CreatedAt: s.clock(),
	}
}

func requireAdmin(caller model.User, action string) error {
	if !caller.IsAdmin() {
		utils.Warn("non-admin attempted admin action", map[string]any{"user_id": caller.ID, "action": action})
		return fmt.Errorf("service: %w - %s requires admin role", auctionerrors.ErrUnauthorized, action)
	}
	return nil
}

// roundCents keeps balances on whole cents
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// validAmount accepts positive, finite amounts that are whole cents
func validAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) && roundCents(v) == v
}

// ListUsers returns all registered users to an admin
func (s *AuctionService) ListUsers(ctx context.Context, caller model.User) ([]model.User, error) {
	if err := requireAdmin(caller, "list users"); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}
