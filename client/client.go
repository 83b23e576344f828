// Package client is a view-model for the auction API. It mirrors server state into a local cache that is
// refreshed at explicit points such as login and confirmed mutations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"slices"
	"strings"
	"sync"
	"time"

	model "vehicle-auction/internal/models"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "client")

var (
	// ErrTransient marks failures to reach the service at all
	ErrTransient = errors.New("client: service unreachable")
	// ErrInvalidBidInput is returned when no positive whole-cent bid amount is staged for the vehicle
	ErrInvalidBidInput = errors.New("client: please enter a valid bid amount")
)

// APIError is a non-2xx answer from the service
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("client: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("client: %d %s: %s", e.Status, e.Message, e.Detail)
}

// State is a snapshot of everything the view-model mirrors
type State struct {
	User          *model.User
	Vehicles      []model.Vehicle
	Notifications []model.Notification
	Profile       *model.Profile
	MyBids        []model.Bid
	Users         []model.User
}

type Client struct {
	baseURL  string
	http     *http.Client
	location *time.Location

	mu        sync.RWMutex
	state     State
	bidInputs map[string]float64
}

type Option func(*Client)

// WithHTTPClient replaces the default client; it must carry a cookie jar for cookie sessions to work
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLocation sets the zone used for formatted end times
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.location = loc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("client: cookie jar: %w", err)
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Jar: jar, Timeout: 15 * time.Second},
		location:  time.Local,
		bidInputs: map[string]float64{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Snapshot returns a copy of the cached state
func (c *Client) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := State{
		Vehicles:      slices.Clone(c.state.Vehicles),
		Notifications: slices.Clone(c.state.Notifications),
		MyBids:        slices.Clone(c.state.MyBids),
		Users:         slices.Clone(c.state.Users),
	}
	if c.state.User != nil {
		u := *c.state.User
		s.User = &u
	}
	if c.state.Profile != nil {
		p := *c.state.Profile
		s.Profile = &p
	}
	return s
}

func (c *Client) hasSession() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.User != nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// do sends one JSON exchange and decodes the envelope's data into out
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Detail: env.Error}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("client: decode %s %s data: %w", method, path, err)
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
