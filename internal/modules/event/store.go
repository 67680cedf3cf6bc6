// README: Append-only vehicle event store backed by PostgreSQL.
package event

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"parkman/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const eventColumns = `id, license_plate, event_type, latitude, longitude, spot_id, sector_id,
		sector_base_price::text, dynamic_rate::text, entry_at, created_at, updated_at`

func (s *Store) ListByPlate(ctx context.Context, plate string) ([]VehicleEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM parking.vehicle_event
		WHERE license_plate = $1
		ORDER BY id ASC`, plate,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (s *Store) ListBySpot(ctx context.Context, spotID int64) ([]VehicleEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM parking.vehicle_event
		WHERE spot_id = $1
		ORDER BY id ASC`, spotID,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (s *Store) ListBySector(ctx context.Context, sectorID int64) ([]VehicleEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM parking.vehicle_event
		WHERE sector_id = $1
		ORDER BY id ASC`, sectorID,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (s *Store) ListBySectorOnDate(ctx context.Context, sectorID int64, day time.Time) ([]VehicleEvent, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	rows, err := s.db.Query(ctx, `
		SELECT `+eventColumns+`
		FROM parking.vehicle_event
		WHERE sector_id = $1
		  AND entry_at >= $2
		  AND updated_at < $3
		ORDER BY id ASC`, sectorID, start, end,
	)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (s *Store) Append(ctx context.Context, e *VehicleEvent) error {
	var lat, lng *float64
	if e.Position != nil {
		lat, lng = &e.Position.Lat, &e.Position.Lng
	}
	var spotID, sectorID *int64
	var basePrice *string
	dynamicRate := decimal.Zero
	if e.Parking != nil {
		spotID, sectorID = &e.Parking.SpotID, &e.Parking.SectorID
		if e.Parking.BasePrice != nil {
			v := e.Parking.BasePrice.String()
			basePrice = &v
		}
		dynamicRate = e.Parking.DynamicRate
	}
	return s.db.QueryRow(ctx, `
		INSERT INTO parking.vehicle_event (license_plate, event_type, latitude, longitude,
			spot_id, sector_id, sector_base_price, dynamic_rate, entry_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.LicensePlate,
		string(e.Type),
		lat, lng,
		spotID, sectorID,
		basePrice,
		dynamicRate.String(),
		e.EntryAt,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&e.ID)
}

func scanEvents(rows pgx.Rows) ([]VehicleEvent, error) {
	defer rows.Close()

	var events []VehicleEvent
	for rows.Next() {
		var (
			e           VehicleEvent
			eventType   string
			lat, lng    sql.NullFloat64
			spotID      sql.NullInt64
			sectorID    sql.NullInt64
			basePrice   sql.NullString
			dynamicRate string
		)
		if err := rows.Scan(
			&e.ID, &e.LicensePlate, &eventType, &lat, &lng, &spotID, &sectorID,
			&basePrice, &dynamicRate, &e.EntryAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = Status(eventType)
		if lat.Valid && lng.Valid {
			e.Position = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
		}
		if spotID.Valid && sectorID.Valid {
			snap := &Snapshot{SpotID: spotID.Int64, SectorID: sectorID.Int64}
			if basePrice.Valid {
				d, err := decimal.NewFromString(basePrice.String)
				if err != nil {
					return nil, fmt.Errorf("parse base price: %w", err)
				}
				snap.BasePrice = &d
			}
			rate, err := decimal.NewFromString(dynamicRate)
			if err != nil {
				return nil, fmt.Errorf("parse dynamic rate: %w", err)
			}
			snap.DynamicRate = rate
			e.Parking = snap
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
