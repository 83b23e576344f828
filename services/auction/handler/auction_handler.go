package handler

import (
	"context"
	"fmt"
	"net/http"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/dto"
	"vehicle-auction/services/auction/helpers"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	GetVehicle(ctx context.Context, vehicleID string) (model.Vehicle, error)
	GetBidsForVehicle(ctx context.Context, vehicleID string) ([]model.Bid, error)
	PlaceBid(ctx context.Context, vehicleID, userID string, amount float64) (model.BidResult, error)

	AddFunds(ctx context.Context, userID string, amount float64) (float64, error)
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	GetUserBids(ctx context.Context, userID string) ([]model.Bid, error)

	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID string) error

	CreateVehicle(ctx context.Context, caller model.User, spec model.VehicleSpec) (model.Vehicle, error)
	EditVehicle(ctx context.Context, caller model.User, vehicleID string, spec model.VehicleSpec) (model.Vehicle, error)
	DeleteVehicle(ctx context.Context, caller model.User, vehicleID string) error
	MarkSold(ctx context.Context, caller model.User, vehicleID string) (model.Vehicle, error)
	ListUsers(ctx context.Context, caller model.User) ([]model.User, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// mustUser returns the user put on the context by the auth middleware
func mustUser(c *gin.Context, handlerName string) (model.User, bool) {
	user, ok := helpers.CurrentUser(c)
	if !ok {
		helpers.HandleServiceError(c, handlerName, fmt.Errorf("%w - no session", auctionerrors.ErrUnauthenticated), nil)
		return model.User{}, false
	}
	return user, true
}

// ListVehiclesHandler handles GET /api/vehicles
func (h *AuctionHandler) ListVehiclesHandler(c *gin.Context) {
	vehicles, err := h.service.ListVehicles(c.Request.Context())
	if err != nil {
		helpers.HandleServiceError(c, "ListVehiclesHandler", err, nil)
		return
	}
	if vehicles == nil {
		vehicles = []model.Vehicle{}
	}

	utils.JSONResponse(c, http.StatusOK, vehicles, "vehicles retrieved successfully")
}

// GetVehicleHandler handles GET /api/vehicles/:vehicle_id
func (h *AuctionHandler) GetVehicleHandler(c *gin.Context) {
	vehicleID := c.Param("vehicle_id")
	vehicle, err := h.service.GetVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		helpers.HandleServiceError(c, "GetVehicleHandler", err, map[string]any{"vehicle_id": vehicleID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, vehicle, "vehicle retrieved successfully")
}

// GetBidsByVehicleHandler handles GET /api/vehicles/:vehicle_id/bids
func (h *AuctionHandler) GetBidsByVehicleHandler(c *gin.Context) {
	vehicleID := c.Param("vehicle_id")
	bids, err := h.service.GetBidsForVehicle(c.Request.Context(), vehicleID)
	if err != nil {
		helpers.HandleServiceError(c, "GetBidsByVehicleHandler", err, map[string]any{"vehicle_id": vehicleID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByVehicleHandler", "bids retrieved successfully", map[string]any{
		"vehicle_id": vehicleID,
		"count":      len(bids),
	})
}

// PlaceBidHandler handles POST /api/bid
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	user, ok := mustUser(c, "PlaceBidHandler")
	if !ok {
		return
	}

	var req dto.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	result, err := h.service.PlaceBid(c.Request.Context(), req.VehicleID, user.ID, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "PlaceBidHandler", err, map[string]any{
			"vehicle_id": req.VehicleID,
			"user_id":    user.ID,
			"amount":     req.Amount,
		})
		return
	}

	resp := dto.PlaceBidResponse{
		Bid:         helpers.ToBidResponse(result.Bid),
		PreviousBid: result.PreviousBid,
		NewBalance:  result.NewBalance,
	}
	utils.JSONResponse(c, http.StatusOK, resp, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     result.Bid.BidID,
		"vehicle_id": req.VehicleID,
		"user_id":    user.ID,
		"amount":     req.Amount,
	})
}

// ProfileHandler handles GET /api/profile
func (h *AuctionHandler) ProfileHandler(c *gin.Context) {
	user, ok := mustUser(c, "ProfileHandler")
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		helpers.HandleServiceError(c, "ProfileHandler", err, map[string]any{"user_id": user.ID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, profile, "profile retrieved successfully")
}

// ProfileBidsHandler handles GET /api/profile/bids
func (h *AuctionHandler) ProfileBidsHandler(c *gin.Context) {
	user, ok := mustUser(c, "ProfileBidsHandler")
	if !ok {
		return
	}

	bids, err := h.service.GetUserBids(c.Request.Context(), user.ID)
	if err != nil {
		helpers.HandleServiceError(c, "ProfileBidsHandler", err, map[string]any{"user_id": user.ID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.ToBidResponses(bids), "bids retrieved successfully")
}

// AddFundsHandler handles POST /api/profile/add-funds
func (h *AuctionHandler) AddFundsHandler(c *gin.Context) {
	user, ok := mustUser(c, "AddFundsHandler")
	if !ok {
		return
	}

	var req dto.AddFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "AddFundsHandler", err)
		return
	}

	balance, err := h.service.AddFunds(c.Request.Context(), user.ID, req.Amount)
	if err != nil {
		helpers.HandleServiceError(c, "AddFundsHandler", err, map[string]any{"user_id": user.ID, "amount": req.Amount})
		return
	}

	utils.JSONResponse(c, http.StatusOK, dto.AddFundsResponse{NewBalance: balance}, "funds added successfully")
	helpers.LogSuccess("AddFundsHandler", "funds added", map[string]any{"user_id": user.ID, "new_balance": balance})
}

// ListNotificationsHandler handles GET /api/notifications
func (h *AuctionHandler) ListNotificationsHandler(c *gin.Context) {
	user, ok := mustUser(c, "ListNotificationsHandler")
	if !ok {
		return
	}

	notifications, err := h.service.ListNotifications(c.Request.Context(), user.ID)
	if err != nil {
		helpers.HandleServiceError(c, "ListNotificationsHandler", err, map[string]any{"user_id": user.ID})
		return
	}
	if notifications == nil {
		notifications = []model.Notification{}
	}
	utils.JSONResponse(c, http.StatusOK, notifications, "notifications retrieved successfully")
}

// MarkNotificationReadHandler handles POST /api/notifications/mark-read/:id
func (h *AuctionHandler) MarkNotificationReadHandler(c *gin.Context) {
	user, ok := mustUser(c, "MarkNotificationReadHandler")
	if !ok {
		return
	}

	notificationID := c.Param("id")
	if err := h.service.MarkNotificationRead(c.Request.Context(), user.ID, notificationID); err != nil {
		helpers.HandleServiceError(c, "MarkNotificationReadHandler", err, map[string]any{
			"user_id":         user.ID,
			"notification_id": notificationID,
		})
		return
	}
	utils.JSONResponse(c, http.StatusOK, nil, "notification marked as read")
}
