package client

import (
	"math"
	"time"

	model "vehicle-auction/internal/models"

	"github.com/samber/lo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const endTimeLayout = "Jan 2, 2006, 03:04 PM"

var printer = message.NewPrinter(language.AmericanEnglish)

// VehicleView is a vehicle with its display strings
type VehicleView struct {
	model.Vehicle
	FormattedMileage string
	FormattedPrice   string
	FormattedBid     string
	FormattedEndTime string
}

// FormatNumber groups thousands; whole values print without decimals
func FormatNumber(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// FormatEndTime renders an end time in loc, or "" for the zero time
func FormatEndTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(endTimeLayout)
}

// FormattedVehicles derives the display rows from the cached catalog
func (c *Client) FormattedVehicles() []VehicleView {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lo.Map(c.state.Vehicles, func(v model.Vehicle, _ int) VehicleView {
		bid := "No bids"
		if v.HighestBid != nil {
			bid = "$" + FormatNumber(*v.HighestBid)
		}
		return VehicleView{
			Vehicle:          v,
			FormattedMileage: FormatNumber(float64(v.Mileage)) + " miles",
			FormattedPrice:   "$" + FormatNumber(v.ReservePrice),
			FormattedBid:     bid,
			FormattedEndTime: FormatEndTime(v.EndTime, c.location),
		}
	})
}
