package auction

import (
	"context"
	"fmt"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
)

// ListNotifications returns the user's unread notifications, oldest first
func (s *AuctionService) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	notifications, err := s.repo.ListUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list notifications for user %s: %w", userID, err)
	}
	return notifications, nil
}

// MarkNotificationRead consumes one of the user's notifications. Repeating it is a no-op.
func (s *AuctionService) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if notificationID == "" {
		return fmt.Errorf("service: %w - empty notification ID", auctionerrors.ErrInvalidInput)
	}

	n, err := s.repo.GetNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("service: failed to get notification %s: %w", notificationID, err)
	}
	// another user's notification is reported as missing
	if n.UserID != userID {
		return fmt.Errorf("service: notification %s: %w", notificationID, auctionerrors.ErrNotificationNotFound)
	}
	if n.Read {
		return nil
	}

	if err := s.repo.MarkNotificationRead(ctx, notificationID); err != nil {
		return fmt.Errorf("service: failed to mark notification %s read: %w", notificationID, err)
	}
	return nil
}
