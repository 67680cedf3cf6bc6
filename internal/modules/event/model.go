// README: Vehicle lifecycle events and the per-plate transition table.
package event

import (
	"time"

	"github.com/shopspring/decimal"

	"parkman/internal/types"
)

type Status string

const (
	// StatusNone is the state of a plate with no recorded events.
	StatusNone    Status = ""
	StatusEntered Status = "ENTERED"
	StatusParked  Status = "PARKED"
	StatusExited  Status = "EXITED"
)

// Snapshot is the sector pricing captured when a vehicle parks. It is copied
// unchanged onto the exit event so later occupancy changes never reprice a
// visit.
type Snapshot struct {
	SpotID      int64
	SectorID    int64
	BasePrice   *decimal.Decimal
	DynamicRate decimal.Decimal
}

// VehicleEvent is one immutable lifecycle record. Parking is set on PARKED
// and EXITED events only; EntryAt is carried forward from the entry event
// through the whole visit. UpdatedAt on a PARKED event is when billing
// began, on an EXITED event the checkout time.
type VehicleEvent struct {
	ID           int64
	LicensePlate string
	Type         Status
	Position     *types.Point
	Parking      *Snapshot
	EntryAt      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllowedTransitions represents the plate lifecycle (entered → parked →
// exited, then around again) as code. Anything not listed is dropped
// silently; the webhook source delivers at least once.
var AllowedTransitions = map[Status][]Status{
	StatusNone:    {StatusEntered},
	StatusExited:  {StatusEntered},
	StatusEntered: {StatusParked},
	StatusParked:  {StatusExited},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// LastStatus reads the plate's current state off the end of its history.
func LastStatus(events []VehicleEvent) Status {
	if len(events) == 0 {
		return StatusNone
	}
	return events[len(events)-1].Type
}
