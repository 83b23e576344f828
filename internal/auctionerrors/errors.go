package auctionerrors

import "errors"

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrSessionNotFound    = errors.New("session not found")
)

// Validation errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrInvalidSpec       = errors.New("invalid vehicle spec")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidBid        = errors.New("invalid bid")
)

// Authorization errors
var (
	ErrUnauthorized = errors.New("unauthorized")
)

// Repository-level errors
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrVehicleNotFound      = errors.New("vehicle not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

// Bid ledger errors
var (
	ErrAuctionClosed     = errors.New("auction has ended")
	ErrBidTooLow         = errors.New("bid amount too low")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
