package handler

import (
	"net/http"

	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/dto"
	"vehicle-auction/services/auction/helpers"
	"vehicle-auction/utils"

	"github.com/gin-gonic/gin"
)

// bindVehicleSpec reads and converts an admin vehicle request, writing the error response on failure
func bindVehicleSpec(c *gin.Context, handlerName string) (model.VehicleSpec, bool) {
	var req dto.VehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, handlerName, err)
		return model.VehicleSpec{}, false
	}
	spec, err := helpers.ToVehicleSpec(req)
	if err != nil {
		helpers.HandleServiceError(c, handlerName, err, map[string]any{"end_time": req.EndTime})
		return model.VehicleSpec{}, false
	}
	return spec, true
}

// CreateVehicleHandler handles POST /api/admin/vehicles
func (h *AuctionHandler) CreateVehicleHandler(c *gin.Context) {
	admin, ok := mustUser(c, "CreateVehicleHandler")
	if !ok {
		return
	}
	spec, ok := bindVehicleSpec(c, "CreateVehicleHandler")
	if !ok {
		return
	}

	vehicle, err := h.service.CreateVehicle(c.Request.Context(), admin, spec)
	if err != nil {
		helpers.HandleServiceError(c, "CreateVehicleHandler", err, map[string]any{"admin_id": admin.ID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, vehicle, "vehicle created successfully")
	helpers.LogSuccess("CreateVehicleHandler", "vehicle created", map[string]any{"vehicle_id": vehicle.ID})
}

// EditVehicleHandler handles POST /api/admin/vehicles/edit/:id
func (h *AuctionHandler) EditVehicleHandler(c *gin.Context) {
	admin, ok := mustUser(c, "EditVehicleHandler")
	if !ok {
		return
	}
	spec, ok := bindVehicleSpec(c, "EditVehicleHandler")
	if !ok {
		return
	}

	vehicleID := c.Param("id")
	vehicle, err := h.service.EditVehicle(c.Request.Context(), admin, vehicleID, spec)
	if err != nil {
		helpers.HandleServiceError(c, "EditVehicleHandler", err, map[string]any{"vehicle_id": vehicleID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, vehicle, "vehicle updated successfully")
}

// DeleteVehicleHandler handles POST /api/admin/vehicles/delete/:id
func (h *AuctionHandler) DeleteVehicleHandler(c *gin.Context) {
	admin, ok := mustUser(c, "DeleteVehicleHandler")
	if !ok {
		return
	}

	vehicleID := c.Param("id")
	if err := h.service.DeleteVehicle(c.Request.Context(), admin, vehicleID); err != nil {
		helpers.HandleServiceError(c, "DeleteVehicleHandler", err, map[string]any{"vehicle_id": vehicleID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, nil, "vehicle deleted successfully")
}

// MarkSoldHandler handles POST /api/admin/vehicles/mark-sold/:id
func (h *AuctionHandler) MarkSoldHandler(c *gin.Context) {
	admin, ok := mustUser(c, "MarkSoldHandler")
	if !ok {
		return
	}

	vehicleID := c.Param("id")
	vehicle, err := h.service.MarkSold(c.Request.Context(), admin, vehicleID)
	if err != nil {
		helpers.HandleServiceError(c, "MarkSoldHandler", err, map[string]any{"vehicle_id": vehicleID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, vehicle, "vehicle marked as sold")
}

// ListUsersHandler handles GET /api/admin/users
func (h *AuctionHandler) ListUsersHandler(c *gin.Context) {
	admin, ok := mustUser(c, "ListUsersHandler")
	if !ok {
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), admin)
	if err != nil {
		helpers.HandleServiceError(c, "ListUsersHandler", err, nil)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	utils.JSONResponse(c, http.StatusOK, users, "users retrieved successfully")
}
