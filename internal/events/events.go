package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vehicle-auction/utils"

	"github.com/sony/gobreaker"
)

// Event types
const (
	BidPlaced      = "bid_placed"
	AuctionEnded   = "auction_ended"
	VehicleSold    = "vehicle_sold"
	VehicleDeleted = "vehicle_deleted"
)

// Event is a committed change to an auction
type Event struct {
	Type       string    `json:"type"`
	VehicleID  string    `json:"vehicle_id"`
	UserID     string    `json:"user_id,omitempty"`
	Amount     *float64  `json:"amount,omitempty"`
	Status     string    `json:"status,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher hands events to the outside world after the change is committed
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the application log
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	fields := map[string]any{
		"type":       event.Type,
		"vehicle_id": event.VehicleID,
	}
	if event.UserID != "" {
		fields["user_id"] = event.UserID
	}
	if event.Amount != nil {
		fields["amount"] = *event.Amount
	}
	if event.Status != "" {
		fields["status"] = event.Status
	}
	utils.Info("auction event", fields)
	return nil
}

// Conn is the part of *nats.Conn the NATS publisher needs
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes JSON events on "<prefix>.<type>.<vehicle_id>".
// Calls go through a circuit breaker so a dead broker is skipped quickly.
type NATSPublisher struct {
	conn   Conn
	prefix string
	cb     *gobreaker.CircuitBreaker
}

// NewNATSPublisher creates a publisher on top of an open NATS connection
func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	st := gobreaker.Settings{
		Name:        "NATS-Publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			utils.Warn("circuit breaker state changed", map[string]any{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: prefix,
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

// Subject returns the subject an event is published on
func (p *NATSPublisher) Subject(event Event) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, event.Type, event.VehicleID)
}

func (p *NATSPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(event)

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.conn.Publish(subject, data)
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
