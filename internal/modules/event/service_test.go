package event

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"parkman/internal/clock"
	"parkman/internal/modules/garage"
	"parkman/internal/types"
)

type fakeStore struct {
	mu     sync.Mutex
	events []VehicleEvent
	nextID int64
}

func (f *fakeStore) ListByPlate(_ context.Context, plate string) ([]VehicleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VehicleEvent
	for _, e := range f.events {
		if e.LicensePlate == plate {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBySpot(_ context.Context, spotID int64) ([]VehicleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VehicleEvent
	for _, e := range f.events {
		if e.Parking != nil && e.Parking.SpotID == spotID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBySector(_ context.Context, sectorID int64) ([]VehicleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VehicleEvent
	for _, e := range f.events {
		if e.Parking != nil && e.Parking.SectorID == sectorID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBySectorOnDate(_ context.Context, sectorID int64, day time.Time) ([]VehicleEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []VehicleEvent
	for _, e := range f.events {
		if e.Parking != nil && e.Parking.SectorID == sectorID &&
			!e.EntryAt.Before(start) && e.UpdatedAt.Before(end) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) Append(_ context.Context, e *VehicleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	f.events = append(f.events, *e)
	return nil
}

type fakeGarage struct {
	sectors map[int64]garage.Sector
	spots   map[types.Point]garage.Spot
}

func (f *fakeGarage) SectorByID(_ context.Context, id int64) (garage.Sector, error) {
	sec, ok := f.sectors[id]
	if !ok {
		return garage.Sector{}, garage.ErrSectorNotFound
	}
	return sec, nil
}

func (f *fakeGarage) SectorByCode(_ context.Context, code string) (garage.Sector, error) {
	for _, sec := range f.sectors {
		if sec.Code == code {
			return sec, nil
		}
	}
	return garage.Sector{}, garage.ErrSectorNotFound
}

func (f *fakeGarage) SpotByCoordinates(_ context.Context, lat, lng float64) (garage.Spot, error) {
	spot, ok := f.spots[types.Point{Lat: lat, Lng: lng}]
	if !ok {
		return garage.Spot{}, garage.ErrSpotNotFound
	}
	return spot, nil
}

var (
	t0       = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)
	basePr   = decimal.RequireFromString("10.00")
	testSpot = types.Point{Lat: -23.561, Lng: -46.655}
)

func newTestService(t *testing.T) (*Service, *fakeStore, *clock.Manual) {
	t.Helper()
	store := &fakeStore{}
	dir := &fakeGarage{
		sectors: map[int64]garage.Sector{
			1: {
				ID:                   1,
				Code:                 "A",
				BasePrice:            basePr,
				MaxCapacity:          100,
				DurationLimitMinutes: 240,
				CurrencyCode:         "BRL",
			},
		},
		spots: map[types.Point]garage.Spot{
			testSpot: {ID: 7, SectorID: 1, Lat: testSpot.Lat, Lng: testSpot.Lng},
		},
	}
	clk := clock.NewManual(t0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, dir, clk, logger), store, clk
}

func runVisit(t *testing.T, svc *Service, clk *clock.Manual, plate string, exitAfter time.Duration) {
	t.Helper()
	ctx := context.Background()
	entryAt := clk.Now()
	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: plate, EntryAt: entryAt}); err != nil {
		t.Fatalf("entry: %v", err)
	}
	clk.Advance(5 * time.Minute)
	if err := svc.HandlePark(ctx, ParkCommand{LicensePlate: plate, Position: testSpot}); err != nil {
		t.Fatalf("park: %v", err)
	}
	clk.Advance(exitAfter - 5*time.Minute)
	if err := svc.HandleExit(ctx, ExitCommand{LicensePlate: plate, ExitAt: entryAt.Add(exitAfter)}); err != nil {
		t.Fatalf("exit: %v", err)
	}
}

func TestVisitLifecycle(t *testing.T) {
	svc, store, clk := newTestService(t)
	runVisit(t, svc, clk, "ABC1234", 90*time.Minute)

	if len(store.events) != 3 {
		t.Fatalf("got %d events, want 3", len(store.events))
	}
	entered, parked, exited := store.events[0], store.events[1], store.events[2]

	if entered.Type != StatusEntered || parked.Type != StatusParked || exited.Type != StatusExited {
		t.Fatalf("unexpected event types: %s %s %s", entered.Type, parked.Type, exited.Type)
	}
	if parked.Parking == nil || exited.Parking == nil {
		t.Fatal("parked/exited events must carry the pricing snapshot")
	}
	// the empty sector is idle, so the discount rate is snapshotted
	if !parked.Parking.DynamicRate.Equal(decimal.NewFromInt(-10)) {
		t.Errorf("snapshot rate = %s, want -10", parked.Parking.DynamicRate)
	}
	if parked.Parking.BasePrice == nil || !parked.Parking.BasePrice.Equal(basePr) {
		t.Errorf("snapshot base price = %v, want %s", parked.Parking.BasePrice, basePr)
	}
	// snapshot and entry time are copied forward unchanged onto the exit
	if !exited.Parking.DynamicRate.Equal(parked.Parking.DynamicRate) ||
		exited.Parking.SpotID != parked.Parking.SpotID ||
		exited.Parking.SectorID != parked.Parking.SectorID {
		t.Error("exit event must copy the parked snapshot unchanged")
	}
	if !exited.EntryAt.Equal(entered.EntryAt) || !parked.EntryAt.Equal(entered.EntryAt) {
		t.Error("entryAt must be carried through the whole visit")
	}
	if !exited.UpdatedAt.Equal(t0.Add(90 * time.Minute)) {
		t.Errorf("exit UpdatedAt = %s, want %s", exited.UpdatedAt, t0.Add(90*time.Minute))
	}
}

func TestInvalidTransitionsAreSilentNoOps(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	// EXIT and PARKED with no history at all
	if err := svc.HandleExit(ctx, ExitCommand{LicensePlate: "XYZ0001", ExitAt: clk.Now()}); err != nil {
		t.Fatalf("exit: %v", err)
	}
	if err := svc.HandlePark(ctx, ParkCommand{LicensePlate: "XYZ0001", Position: testSpot}); err != nil {
		t.Fatalf("park: %v", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("no-op events were persisted: %d", len(store.events))
	}

	// duplicate ENTRY while entered
	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "XYZ0001", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "XYZ0001", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	if len(store.events) != 1 {
		t.Fatalf("duplicate entry was persisted: %d events", len(store.events))
	}

	// EXIT while only entered (parking never reported)
	if err := svc.HandleExit(ctx, ExitCommand{LicensePlate: "XYZ0001", ExitAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	if len(store.events) != 1 {
		t.Fatalf("exit without park was persisted: %d events", len(store.events))
	}
}

func TestParkAtUnknownSpotFails(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "DEF5678", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	err := svc.HandlePark(ctx, ParkCommand{LicensePlate: "DEF5678", Position: types.Point{Lat: 0, Lng: 0}})
	if !errors.Is(err, garage.ErrSpotNotFound) {
		t.Fatalf("err = %v, want ErrSpotNotFound", err)
	}
	if len(store.events) != 1 {
		t.Fatalf("failed park persisted an event: %d", len(store.events))
	}
}

func TestPlateStatusWhileParked(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "ABC1234", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	clk.Advance(5 * time.Minute)
	if err := svc.HandlePark(ctx, ParkCommand{LicensePlate: "ABC1234", Position: testSpot}); err != nil {
		t.Fatal(err)
	}

	// 65 minutes in: 50 chargeable minutes, one flat hour at the discounted price
	clk.Advance(60 * time.Minute)
	status, err := svc.PlateStatus(ctx, "ABC1234")
	if err != nil {
		t.Fatal(err)
	}
	if !status.Parked {
		t.Fatal("plate should be parked")
	}
	if want := decimal.RequireFromString("9.00"); !status.PriceUntilNow.Equal(want) {
		t.Errorf("price = %s, want %s", status.PriceUntilNow, want)
	}
	if status.EntryTime == nil || !status.EntryTime.Equal(t0) {
		t.Errorf("entry time = %v, want %s", status.EntryTime, t0)
	}
}

func TestPlateStatusUnknownPlate(t *testing.T) {
	svc, _, _ := newTestService(t)
	status, err := svc.PlateStatus(context.Background(), "ZZZ9999")
	if err != nil {
		t.Fatal(err)
	}
	if status.Parked || !status.PriceUntilNow.IsZero() || status.EntryTime != nil {
		t.Errorf("unexpected status for unknown plate: %+v", status)
	}
}

func TestPlateStatusSectorLookupFailureDropsCap(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "GHI9012", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)
	if err := svc.HandlePark(ctx, ParkCommand{LicensePlate: "GHI9012", Position: testSpot}); err != nil {
		t.Fatal(err)
	}
	// corrupt the stored snapshot's sector reference so the lookup fails
	store.mu.Lock()
	store.events[len(store.events)-1].Parking.SectorID = 999
	store.mu.Unlock()

	// 6 hours exceeds the 240 minute sector cap; without the sector the
	// price keeps growing
	clk.Advance(6 * time.Hour)
	status, err := svc.PlateStatus(ctx, "GHI9012")
	if err != nil {
		t.Fatal(err)
	}
	// 361 total minutes -> 346 chargeable -> 1 + ceil(286/15)/4 = 6 hours at 9.00
	if want := decimal.RequireFromString("54.00"); !status.PriceUntilNow.Equal(want) {
		t.Errorf("price = %s, want %s", status.PriceUntilNow, want)
	}
}

func TestSpotStatus(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	status, err := svc.SpotStatus(ctx, testSpot.Lat, testSpot.Lng)
	if err != nil {
		t.Fatal(err)
	}
	if status.Occupied {
		t.Error("fresh spot should be free")
	}

	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "ABC1234", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandlePark(ctx, ParkCommand{LicensePlate: "ABC1234", Position: testSpot}); err != nil {
		t.Fatal(err)
	}
	status, err = svc.SpotStatus(ctx, testSpot.Lat, testSpot.Lng)
	if err != nil {
		t.Fatal(err)
	}
	if !status.Occupied {
		t.Error("spot should be occupied after park")
	}

	if _, err := svc.SpotStatus(ctx, 1, 1); !errors.Is(err, garage.ErrSpotNotFound) {
		t.Errorf("err = %v, want ErrSpotNotFound", err)
	}
}

func TestRevenue(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	// two completed visits: 90 minutes and 20 minutes, both at the idle
	// discount (the sector empties again between visits)
	runVisit(t, svc, clk, "AAA0001", 90*time.Minute)
	clk.Advance(time.Minute)
	runVisit(t, svc, clk, "BBB0002", 20*time.Minute)

	// an in-progress visit contributes nothing
	if err := svc.HandleEntry(ctx, EntryCommand{LicensePlate: "CCC0003", EntryAt: clk.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := svc.HandlePark(ctx, ParkCommand{LicensePlate: "CCC0003", Position: testSpot}); err != nil {
		t.Fatal(err)
	}

	revenue, err := svc.Revenue(ctx, "A", t0)
	if err != nil {
		t.Fatal(err)
	}
	// 90 min visit: 75 chargeable -> 1.25h at 9.00 = 11.25; 20 min visit:
	// 5 chargeable -> one flat hour at 9.00
	if want := decimal.RequireFromString("20.25"); !revenue.Amount.Equal(want) {
		t.Errorf("revenue = %s, want %s", revenue.Amount, want)
	}
	if revenue.Currency != "BRL" {
		t.Errorf("currency = %s, want BRL", revenue.Currency)
	}

	if _, err := svc.Revenue(ctx, "Z", t0); !errors.Is(err, garage.ErrSectorNotFound) {
		t.Errorf("err = %v, want ErrSectorNotFound", err)
	}
}

// TestConcurrentEntriesSerialized drives the same plate from many goroutines
// and expects the per-plate lock to admit exactly one entry event.
func TestConcurrentEntriesSerialized(t *testing.T) {
	svc, store, clk := newTestService(t)
	ctx := context.Background()

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = svc.HandleEntry(ctx, EntryCommand{LicensePlate: "RACE001", EntryAt: clk.Now()})
		}()
	}
	close(start)
	wg.Wait()

	if len(store.events) != 1 {
		t.Fatalf("got %d entry events, want exactly 1", len(store.events))
	}
}
