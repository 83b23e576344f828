package client

import (
	"context"
	"net/http"

	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/dto"
)

// CheckAuth resolves the current session and loads data when one exists
func (c *Client) CheckAuth(ctx context.Context) (bool, error) {
	var resp dto.AuthResponse
	err := c.do(ctx, http.MethodGet, "/api/check-auth", nil, &resp)
	if IsStatus(err, http.StatusUnauthorized) {
		c.clearSession()
		return false, nil
	}
	if err != nil {
		logger.WithError(err).Warn("check-auth failed")
		return false, err
	}
	if !resp.Authenticated || resp.User == nil {
		c.clearSession()
		return false, nil
	}

	c.setUser(*resp.User)
	if err := c.LoadData(ctx); err != nil {
		logger.WithError(err).Warn("initial load incomplete")
	}
	return true, nil
}

// Login opens a session; the cookie lands in the client's jar
func (c *Client) Login(ctx context.Context, username, password string) (model.User, error) {
	var resp dto.LoginResponse
	req := dto.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/login", req, &resp); err != nil {
		return model.User{}, err
	}

	c.setUser(resp.User)
	if err := c.LoadData(ctx); err != nil {
		logger.WithError(err).Warn("post-login load incomplete")
	}
	return resp.User, nil
}

// Register creates an account without logging in
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	req := dto.RegisterRequest{Username: username, Email: email, Password: password}
	return c.do(ctx, http.MethodPost, "/api/register", req, nil)
}

// Logout ends the session and drops every cached collection
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/logout", nil, nil); err != nil {
		return err
	}
	c.clearSession()
	return nil
}

func (c *Client) setUser(user model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.User = &user
}

func (c *Client) clearSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{}
	c.bidInputs = map[string]float64{}
}
