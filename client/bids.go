package client

import (
	"context"
	"math"
	"net/http"

	"vehicle-auction/services/auction/dto"
)

// SetBidInput stages the amount the user typed for a vehicle
func (c *Client) SetBidInput(vehicleID string, amount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bidInputs[vehicleID] = amount
}

// BidInput returns the staged amount for a vehicle
func (c *Client) BidInput(vehicleID string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	amount, ok := c.bidInputs[vehicleID]
	return amount, ok
}

// PlaceBid submits the staged amount. The input is cleared only once the server accepts the bid,
// after which vehicles and the profile are refreshed.
func (c *Client) PlaceBid(ctx context.Context, vehicleID string) (dto.PlaceBidResponse, error) {
	amount, ok := c.BidInput(vehicleID)
	if !ok || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) || math.Round(amount*100)/100 != amount {
		return dto.PlaceBidResponse{}, ErrInvalidBidInput
	}

	var resp dto.PlaceBidResponse
	req := dto.PlaceBidRequest{VehicleID: vehicleID, Amount: amount}
	if err := c.do(ctx, http.MethodPost, "/api/bid", req, &resp); err != nil {
		return dto.PlaceBidResponse{}, err
	}

	c.mu.Lock()
	if staged, ok := c.bidInputs[vehicleID]; ok && staged == amount {
		delete(c.bidInputs, vehicleID)
	}
	c.applyBalance(resp.NewBalance)
	c.mu.Unlock()

	c.refresh(ctx, "PlaceBid", c.LoadVehicles, c.LoadProfile, c.LoadMyBids)
	return resp, nil
}

// AddFunds tops up the balance and reconciles it from the server's answer without a profile refetch
func (c *Client) AddFunds(ctx context.Context, amount float64) (float64, error) {
	var resp dto.AddFundsResponse
	if err := c.do(ctx, http.MethodPost, "/api/profile/add-funds", dto.AddFundsRequest{Amount: amount}, &resp); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyBalance(resp.NewBalance)
	return resp.NewBalance, nil
}

// applyBalance must be called with mu held
func (c *Client) applyBalance(balance float64) {
	if c.state.User != nil {
		c.state.User.Balance = balance
	}
	if c.state.Profile != nil {
		c.state.Profile.Balance = balance
	}
}

// refresh runs follow-up reads after a confirmed write; their failures are logged, not surfaced
func (c *Client) refresh(ctx context.Context, intent string, loaders ...func(context.Context) error) {
	for _, load := range loaders {
		if err := load(ctx); err != nil {
			logger.WithError(err).WithField("intent", intent).Warn("refresh after write failed")
		}
	}
}
