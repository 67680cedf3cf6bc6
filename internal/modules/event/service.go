// README: Vehicle event orchestration: webhook lifecycle, live status, revenue.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"parkman/internal/clock"
	"parkman/internal/modules/billing"
	"parkman/internal/modules/garage"
	"parkman/internal/types"
)

// EventStore provides ordered event history (insertion order) and the
// append-only write path.
type EventStore interface {
	ListByPlate(ctx context.Context, plate string) ([]VehicleEvent, error)
	ListBySpot(ctx context.Context, spotID int64) ([]VehicleEvent, error)
	ListBySector(ctx context.Context, sectorID int64) ([]VehicleEvent, error)
	ListBySectorOnDate(ctx context.Context, sectorID int64, day time.Time) ([]VehicleEvent, error)
	Append(ctx context.Context, e *VehicleEvent) error
}

// Garage resolves the provisioned layout. Lookup failures surface as
// garage.ErrSpotNotFound / garage.ErrSectorNotFound.
type Garage interface {
	SectorByID(ctx context.Context, id int64) (garage.Sector, error)
	SectorByCode(ctx context.Context, code string) (garage.Sector, error)
	SpotByCoordinates(ctx context.Context, lat, lng float64) (garage.Spot, error)
}

type Service struct {
	store  EventStore
	garage Garage
	clock  clock.Clock
	logger *slog.Logger
	locks  *plateLocks
}

func NewService(store EventStore, garage Garage, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		garage: garage,
		clock:  clk,
		logger: logger,
		locks:  newPlateLocks(),
	}
}

type EntryCommand struct {
	LicensePlate string
	EntryAt      time.Time
}

type ParkCommand struct {
	LicensePlate string
	Position     types.Point
}

type ExitCommand struct {
	LicensePlate string
	ExitAt       time.Time
}

// HandleEntry records a vehicle entering the garage. A duplicate or
// out-of-order delivery is dropped without error.
func (s *Service) HandleEntry(ctx context.Context, cmd EntryCommand) error {
	release := s.locks.acquire(cmd.LicensePlate)
	defer release()

	events, err := s.store.ListByPlate(ctx, cmd.LicensePlate)
	if err != nil {
		return err
	}
	if !CanTransition(LastStatus(events), StatusEntered) {
		s.logger.Debug("dropping entry event", "plate", cmd.LicensePlate, "last", LastStatus(events))
		return nil
	}
	now := s.clock.Now()
	return s.store.Append(ctx, &VehicleEvent{
		LicensePlate: cmd.LicensePlate,
		Type:         StatusEntered,
		EntryAt:      cmd.EntryAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// HandlePark resolves the spot under the reported coordinates, snapshots the
// sector price and the occupancy rate, and records the parked event.
func (s *Service) HandlePark(ctx context.Context, cmd ParkCommand) error {
	release := s.locks.acquire(cmd.LicensePlate)
	defer release()

	events, err := s.store.ListByPlate(ctx, cmd.LicensePlate)
	if err != nil {
		return err
	}
	if !CanTransition(LastStatus(events), StatusParked) {
		s.logger.Debug("dropping parked event", "plate", cmd.LicensePlate, "last", LastStatus(events))
		return nil
	}
	entered := events[len(events)-1]

	spot, err := s.garage.SpotByCoordinates(ctx, cmd.Position.Lat, cmd.Position.Lng)
	if err != nil {
		return err
	}
	sector, err := s.garage.SectorByID(ctx, spot.SectorID)
	if err != nil {
		return err
	}
	sectorHistory, err := s.store.ListBySector(ctx, sector.ID)
	if err != nil {
		return err
	}
	rate := ResolveRate(sector, sectorHistory)

	basePrice := sector.BasePrice
	now := s.clock.Now()
	return s.store.Append(ctx, &VehicleEvent{
		LicensePlate: cmd.LicensePlate,
		Type:         StatusParked,
		Position:     &types.Point{Lat: cmd.Position.Lat, Lng: cmd.Position.Lng},
		Parking: &Snapshot{
			SpotID:      spot.ID,
			SectorID:    sector.ID,
			BasePrice:   &basePrice,
			DynamicRate: rate,
		},
		EntryAt:   entered.EntryAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// HandleExit closes the visit, copying the parked snapshot forward so the
// exit record prices independently of later occupancy.
func (s *Service) HandleExit(ctx context.Context, cmd ExitCommand) error {
	release := s.locks.acquire(cmd.LicensePlate)
	defer release()

	events, err := s.store.ListByPlate(ctx, cmd.LicensePlate)
	if err != nil {
		return err
	}
	if !CanTransition(LastStatus(events), StatusExited) {
		s.logger.Debug("dropping exit event", "plate", cmd.LicensePlate, "last", LastStatus(events))
		return nil
	}
	parked := events[len(events)-1]

	var snapshot *Snapshot
	if parked.Parking != nil {
		copied := *parked.Parking
		snapshot = &copied
	}
	return s.store.Append(ctx, &VehicleEvent{
		LicensePlate: cmd.LicensePlate,
		Type:         StatusExited,
		Position:     parked.Position,
		Parking:      snapshot,
		EntryAt:      parked.EntryAt,
		CreatedAt:    s.clock.Now(),
		UpdatedAt:    cmd.ExitAt,
	})
}

type PlateStatus struct {
	LicensePlate  string
	Parked        bool
	PriceUntilNow decimal.Decimal
	EntryTime     *time.Time
	ParkedSince   *time.Time
}

// PlateStatus reports whether the plate is currently parked and what it owes
// so far. A failing sector lookup does not fail the query; pricing then runs
// without a duration cap.
func (s *Service) PlateStatus(ctx context.Context, plate string) (PlateStatus, error) {
	events, err := s.store.ListByPlate(ctx, plate)
	if err != nil {
		return PlateStatus{}, err
	}
	status := PlateStatus{LicensePlate: plate, PriceUntilNow: decimal.Zero}
	if len(events) == 0 {
		return status, nil
	}
	last := events[len(events)-1]
	status.EntryTime = &last.EntryAt
	status.ParkedSince = &last.UpdatedAt
	if last.Type != StatusParked || last.Parking == nil {
		return status, nil
	}
	status.Parked = true

	durationLimit := 0
	if sector, err := s.garage.SectorByID(ctx, last.Parking.SectorID); err == nil {
		durationLimit = sector.DurationLimitMinutes
	}
	price, err := billing.Amount(last.EntryAt, s.clock.Now(), durationLimit, last.Parking.BasePrice, last.Parking.DynamicRate)
	if err != nil {
		return PlateStatus{}, err
	}
	status.PriceUntilNow = price
	return status, nil
}

type SpotStatus struct {
	Occupied    bool
	EntryTime   *time.Time
	ParkedSince *time.Time
}

// SpotStatus reports the occupancy of the spot at the given coordinates.
func (s *Service) SpotStatus(ctx context.Context, lat, lng float64) (SpotStatus, error) {
	spot, err := s.garage.SpotByCoordinates(ctx, lat, lng)
	if err != nil {
		return SpotStatus{}, err
	}
	events, err := s.store.ListBySpot(ctx, spot.ID)
	if err != nil {
		return SpotStatus{}, err
	}
	if len(events) == 0 {
		return SpotStatus{}, nil
	}
	last := events[len(events)-1]
	return SpotStatus{
		Occupied:    last.Type == StatusParked,
		EntryTime:   &last.EntryAt,
		ParkedSince: &last.UpdatedAt,
	}, nil
}

// Revenue sums the billed amount of every exit recorded for the sector on
// the given calendar day, in the sector's currency. Entry and parked events
// contribute nothing.
func (s *Service) Revenue(ctx context.Context, sectorCode string, day time.Time) (types.Money, error) {
	sector, err := s.garage.SectorByCode(ctx, sectorCode)
	if err != nil {
		return types.Money{}, err
	}
	events, err := s.store.ListBySectorOnDate(ctx, sector.ID, day)
	if err != nil {
		return types.Money{}, err
	}
	total := decimal.Zero
	for _, e := range events {
		if e.Type != StatusExited {
			continue
		}
		var basePrice *decimal.Decimal
		rate := decimal.Zero
		if e.Parking != nil {
			basePrice = e.Parking.BasePrice
			rate = e.Parking.DynamicRate
		}
		amount, err := billing.Amount(e.EntryAt, e.UpdatedAt, sector.DurationLimitMinutes, basePrice, rate)
		if err != nil {
			return types.Money{}, err
		}
		total = total.Add(amount)
	}
	return types.Money{Amount: total, Currency: sector.CurrencyCode}, nil
}
