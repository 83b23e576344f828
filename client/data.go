package client

import (
	"context"
	"net/http"

	model "vehicle-auction/internal/models"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// LoadData refreshes vehicles, notifications, profile and own bids concurrently.
// Every loader runs to completion; the first failure is returned.
func (c *Client) LoadData(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return c.LoadVehicles(ctx) })
	g.Go(func() error { return c.LoadNotifications(ctx) })
	g.Go(func() error { return c.LoadProfile(ctx) })
	g.Go(func() error { return c.LoadMyBids(ctx) })
	return g.Wait()
}

// LoadVehicles refreshes the catalog, keeping the previous list on failure
func (c *Client) LoadVehicles(ctx context.Context) error {
	var vehicles []model.Vehicle
	if err := c.do(ctx, http.MethodGet, "/api/vehicles", nil, &vehicles); err != nil {
		logger.WithError(err).Warn("failed to load vehicles")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Vehicles = vehicles
	return nil
}

func (c *Client) LoadNotifications(ctx context.Context) error {
	if !c.hasSession() {
		return nil
	}
	var notifications []model.Notification
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &notifications); err != nil {
		logger.WithError(err).Warn("failed to load notifications")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Notifications = notifications
	return nil
}

func (c *Client) LoadProfile(ctx context.Context) error {
	if !c.hasSession() {
		return nil
	}
	var profile model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &profile); err != nil {
		logger.WithError(err).Warn("failed to load profile")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Profile = &profile
	if c.state.User != nil {
		c.state.User.Balance = profile.Balance
	}
	return nil
}

func (c *Client) LoadMyBids(ctx context.Context) error {
	if !c.hasSession() {
		return nil
	}
	var bids []model.Bid
	if err := c.do(ctx, http.MethodGet, "/api/profile/bids", nil, &bids); err != nil {
		logger.WithError(err).Warn("failed to load bids")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MyBids = bids
	return nil
}

// LoadUsers refreshes the admin user listing
func (c *Client) LoadUsers(ctx context.Context) error {
	if !c.hasSession() {
		return nil
	}
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/api/admin/users", nil, &users); err != nil {
		logger.WithError(err).Warn("failed to load users")
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Users = users
	return nil
}

// MarkNotificationRead consumes a notification and drops it from the local list
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/notifications/mark-read/"+notificationID, nil, nil); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Notifications = lo.Reject(c.state.Notifications, func(n model.Notification, _ int) bool {
		return n.ID == notificationID
	})
	return nil
}
