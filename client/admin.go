package client

import (
	"context"
	"net/http"

	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/dto"
)

func (c *Client) CreateVehicle(ctx context.Context, req dto.VehicleRequest) (model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := c.do(ctx, http.MethodPost, "/api/admin/vehicles", req, &vehicle); err != nil {
		return model.Vehicle{}, err
	}
	c.refresh(ctx, "CreateVehicle", c.LoadVehicles)
	return vehicle, nil
}

func (c *Client) EditVehicle(ctx context.Context, vehicleID string, req dto.VehicleRequest) (model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := c.do(ctx, http.MethodPost, "/api/admin/vehicles/edit/"+vehicleID, req, &vehicle); err != nil {
		return model.Vehicle{}, err
	}
	c.refresh(ctx, "EditVehicle", c.LoadVehicles)
	return vehicle, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, vehicleID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/admin/vehicles/delete/"+vehicleID, nil, nil); err != nil {
		return err
	}
	c.refresh(ctx, "DeleteVehicle", c.LoadVehicles)
	return nil
}

func (c *Client) MarkSold(ctx context.Context, vehicleID string) (model.Vehicle, error) {
	var vehicle model.Vehicle
	if err := c.do(ctx, http.MethodPost, "/api/admin/vehicles/mark-sold/"+vehicleID, nil, &vehicle); err != nil {
		return model.Vehicle{}, err
	}
	c.refresh(ctx, "MarkSold", c.LoadVehicles)
	return vehicle, nil
}
