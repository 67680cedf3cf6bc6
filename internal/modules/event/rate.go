package event

import (
	"github.com/shopspring/decimal"

	"parkman/internal/modules/garage"
)

var (
	rateDiscount  = decimal.NewFromInt(-10)
	rateNeutral   = decimal.Zero
	rateRaised    = decimal.NewFromInt(10)
	rateSurcharge = decimal.NewFromInt(25)
)

// ResolveRate computes the occupancy-based percentage applied to a sector's
// base price at the moment a vehicle parks. history is the sector's full
// event trail; occupancy truncates toward zero, matching how the stored
// rates were produced.
func ResolveRate(sector garage.Sector, history []VehicleEvent) decimal.Decimal {
	parked, exited := 0, 0
	for _, e := range history {
		switch e.Type {
		case StatusParked:
			parked++
		case StatusExited:
			exited++
		}
	}
	occupancy := (parked - exited) * 100 / sector.MaxCapacity
	switch {
	case occupancy < 25:
		return rateDiscount
	case occupancy <= 50:
		return rateNeutral
	case occupancy <= 75:
		return rateRaised
	default:
		return rateSurcharge
	}
}
