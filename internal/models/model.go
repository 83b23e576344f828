package models

import "time"

// User roles
const (
	RoleAdmin  = "admin"
	RoleBidder = "bidder"
)

// Vehicle auction statuses
const (
	StatusActive      = "active"
	StatusEndedSold   = "ended-sold" // end time reached with a leading bid, awaiting admin confirmation
	StatusEndedUnsold = "ended-unsold"
	StatusSold        = "sold"
)

// Notification kinds
const (
	NotificationOutbid           = "outbid"
	NotificationNewBid           = "new_bid"
	NotificationAuctionWon       = "auction_won"
	NotificationAuctionEnded     = "auction_ended"
	NotificationVehicleWithdrawn = "vehicle_withdrawn"
)

// User represents a registered participant of the auction site
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Balance      float64   `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Vehicle represents a vehicle listed for auction
type Vehicle struct {
	ID              string    `json:"id"`
	Make            string    `json:"make"`
	Model           string    `json:"model"`
	Year            int       `json:"year"`
	Mileage         int       `json:"mileage"`
	ReservePrice    float64   `json:"reserve_price"`
	Description     string    `json:"description"`
	EndTime         time.Time `json:"end_time"`
	SellerID        string    `json:"seller_id"`
	Status          string    `json:"status"`
	HighestBid      *float64  `json:"highest_bid"`
	HighestBidderID *string   `json:"highest_bidder_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasLeader reports whether the vehicle has an accepted highest bid
func (v Vehicle) HasLeader() bool {
	return v.HighestBid != nil && v.HighestBidderID != nil
}

// Final reports whether the vehicle's funds are settled and no longer reserved
func (v Vehicle) Final() bool {
	return v.Status == StatusSold || v.Status == StatusEndedUnsold
}

// VehicleSpec holds the admin-mutable fields of a vehicle
type VehicleSpec struct {
	Make         string
	Model        string
	Year         int
	Mileage      int
	ReservePrice float64
	Description  string
	EndTime      time.Time
}

// Bid represents an accepted bid on a vehicle
type Bid struct {
	BidID     string    `json:"bid_id"`
	VehicleID string    `json:"vehicle_id"`
	UserID    string    `json:"user_id"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// BidResult is returned by the bid ledger on acceptance
type BidResult struct {
	Bid         Bid
	PreviousBid *float64
	NewBalance  float64
}

// Notification is a pending alert for a single user
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is the funds view of a user
type Profile struct {
	User
	Reserved float64 `json:"reserved"`
}
