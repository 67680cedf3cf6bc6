// README: Garage store backed by PostgreSQL with a Redis lookaside cache.
package garage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const cachePrefix = "parkman:garage:"

type Store struct {
	db       *pgxpool.Pool
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewStore(db *pgxpool.Pool, redis *redis.Client, cacheTTL time.Duration) *Store {
	return &Store{db: db, redis: redis, cacheTTL: cacheTTL}
}

func (s *Store) SectorByID(ctx context.Context, id int64) (Sector, error) {
	key := cachePrefix + "sector:id:" + strconv.FormatInt(id, 10)
	if sec, ok := s.cachedSector(ctx, key); ok {
		return sec, nil
	}
	sec, err := s.querySector(ctx, `WHERE id = $1`, id)
	if err != nil {
		return Sector{}, err
	}
	s.cacheSector(ctx, key, sec)
	return sec, nil
}

func (s *Store) SectorByCode(ctx context.Context, code string) (Sector, error) {
	key := cachePrefix + "sector:code:" + code
	if sec, ok := s.cachedSector(ctx, key); ok {
		return sec, nil
	}
	sec, err := s.querySector(ctx, `WHERE sector_code = $1`, code)
	if err != nil {
		return Sector{}, err
	}
	s.cacheSector(ctx, key, sec)
	return sec, nil
}

func (s *Store) SpotByCoordinates(ctx context.Context, lat, lng float64) (Spot, error) {
	key := fmt.Sprintf("%sspot:coord:%v:%v", cachePrefix, lat, lng)
	if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var spot Spot
		if json.Unmarshal(data, &spot) == nil {
			return spot, nil
		}
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, sector_id, latitude, longitude, created_at, updated_at
		FROM parking.spot
		WHERE latitude = $1 AND longitude = $2`, lat, lng,
	)
	var spot Spot
	err := row.Scan(&spot.ID, &spot.SectorID, &spot.Lat, &spot.Lng, &spot.CreatedAt, &spot.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Spot{}, ErrSpotNotFound
	}
	if err != nil {
		return Spot{}, err
	}
	if data, err := json.Marshal(spot); err == nil {
		s.redis.Set(ctx, key, data, s.cacheTTL)
	}
	return spot, nil
}

// ReplaceAll wipes the provisioned layout and installs the imported one in a
// single transaction, then drops every cached lookup.
func (s *Store) ReplaceAll(ctx context.Context, sectors []Sector, spots []SpotDefinition) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM parking.spot`); err != nil {
		return fmt.Errorf("clear spots: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM parking.sector`); err != nil {
		return fmt.Errorf("clear sectors: %w", err)
	}

	idsByCode := make(map[string]int64, len(sectors))
	for _, sec := range sectors {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO parking.sector (sector_code, base_price, max_capacity, open_hour, close_hour,
				duration_limit_minutes, currency_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			sec.Code,
			sec.BasePrice.String(),
			sec.MaxCapacity,
			sec.OpenHour,
			sec.CloseHour,
			sec.DurationLimitMinutes,
			sec.CurrencyCode,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert sector %s: %w", sec.Code, err)
		}
		idsByCode[sec.Code] = id
	}

	for _, spot := range spots {
		sectorID, ok := idsByCode[spot.SectorCode]
		if !ok {
			return fmt.Errorf("spot (%v, %v): %w", spot.Lat, spot.Lng, ErrSectorNotFound)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO parking.spot (sector_id, latitude, longitude)
			VALUES ($1, $2, $3)`,
			sectorID, spot.Lat, spot.Lng,
		); err != nil {
			return fmt.Errorf("insert spot (%v, %v): %w", spot.Lat, spot.Lng, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *Store) querySector(ctx context.Context, where string, arg any) (Sector, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, sector_code, base_price::text, max_capacity, open_hour, close_hour,
		       duration_limit_minutes, currency_code, created_at, updated_at
		FROM parking.sector `+where, arg,
	)
	var sec Sector
	var basePrice string
	err := row.Scan(
		&sec.ID, &sec.Code, &basePrice, &sec.MaxCapacity, &sec.OpenHour, &sec.CloseHour,
		&sec.DurationLimitMinutes, &sec.CurrencyCode, &sec.CreatedAt, &sec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sector{}, ErrSectorNotFound
	}
	if err != nil {
		return Sector{}, err
	}
	sec.BasePrice, err = decimal.NewFromString(basePrice)
	if err != nil {
		return Sector{}, fmt.Errorf("parse base price: %w", err)
	}
	return sec, nil
}

func (s *Store) cachedSector(ctx context.Context, key string) (Sector, bool) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return Sector{}, false
	}
	var sec Sector
	if err := json.Unmarshal(data, &sec); err != nil {
		return Sector{}, false
	}
	return sec, true
}

func (s *Store) cacheSector(ctx context.Context, key string, sec Sector) {
	data, err := json.Marshal(sec)
	if err != nil {
		return
	}
	s.redis.Set(ctx, key, data, s.cacheTTL)
}

func (s *Store) invalidateCache(ctx context.Context) {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, cachePrefix+"*", 100).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			s.redis.Del(ctx, keys...)
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}
