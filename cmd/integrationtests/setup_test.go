package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	auction "vehicle-auction/internal/auctionService"
	model "vehicle-auction/internal/models"
	"vehicle-auction/internal/repository"
	"vehicle-auction/internal/server"
	session "vehicle-auction/internal/sessionService"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testPassword = "secret123"

// TestEnv is a router over an in-memory store with direct access to the store for seeding
type TestEnv struct {
	Router *gin.Engine
	Repo   *repository.MemoryRepo
	Admin  model.User
}

// SetupTestEnv initializes the router with an in-memory repository and a seeded admin.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	sessions := session.NewSessionService(repo, repository.NewMemorySessionStore(), utils.NewJWTUtil("integration", time.Hour))
	admin, err := sessions.EnsureAdmin(context.Background(), "admin", "admin@auction.com", testPassword)
	require.NoError(t, err)

	router := server.SetupRouter(sessions, auction.NewAuctionService(repo), server.Options{SessionTTL: time.Hour})
	return &TestEnv{Router: router, Repo: repo, Admin: admin}
}

// SeedUser stores a bidder with the shared test password and the given balance
func (e *TestEnv) SeedUser(t *testing.T, username string, balance float64) model.User {
	t.Helper()
	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)

	user := model.User{
		ID:           utils.GenerateID(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         model.RoleBidder,
		Balance:      balance,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, e.Repo.CreateUser(context.Background(), user))
	return user
}

// SeedVehicle stores an active vehicle ending at endTime
func (e *TestEnv) SeedVehicle(t *testing.T, reserve float64, endTime time.Time) model.Vehicle {
	t.Helper()
	now := time.Now().UTC()
	vehicle := model.Vehicle{
		ID:           utils.GenerateID(),
		Make:         "Volvo",
		Model:        "240",
		Year:         1991,
		Mileage:      180000,
		ReservePrice: reserve,
		EndTime:      endTime,
		SellerID:     e.Admin.ID,
		Status:       model.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.Repo.CreateVehicle(context.Background(), vehicle))
	return vehicle
}

// Login returns a bearer token for username
func (e *TestEnv) Login(t *testing.T, username string) string {
	t.Helper()
	resp, w := ExecuteRequestAndParse(t, e.Router, http.MethodPost, "/api/login", "", map[string]any{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, w.Code)
	return resp["data"].(map[string]any)["token"].(string)
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp, w
}
