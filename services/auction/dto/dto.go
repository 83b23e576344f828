// Package dto holds the JSON request and response bodies of the auction API.
// It is shared by the HTTP handlers and the client.
package dto

import (
	model "vehicle-auction/internal/models"
)

// Request/Response DTOs
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

type PlaceBidRequest struct {
	VehicleID string  `json:"vehicle_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
}

// AddFundsRequest leaves the amount check to the funds ledger so it can answer with "invalid amount"
type AddFundsRequest struct {
	Amount float64 `json:"amount"`
}

// VehicleRequest is the admin vehicle spec; end_time accepts RFC3339 or HTML datetime-local.
// The reserve price is checked by the catalog so a zero answers with "invalid vehicle details".
type VehicleRequest struct {
	Make         string  `json:"make" binding:"required"`
	Model        string  `json:"model" binding:"required"`
	Year         int     `json:"year" binding:"required"`
	Mileage      int     `json:"mileage" binding:"min=0"`
	ReservePrice float64 `json:"reserve_price"`
	Description  string  `json:"description"`
	EndTime      string  `json:"end_time" binding:"required"`
}

type AuthResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *model.User `json:"user,omitempty"`
}

type LoginResponse struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	VehicleID string  `json:"vehicle_id"`
	UserID    string  `json:"user_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid         BidResponse `json:"bid"`
	PreviousBid *float64    `json:"previous_bid"`
	NewBalance  float64     `json:"new_balance"`
}

type AddFundsResponse struct {
	NewBalance float64 `json:"new_balance"`
}
