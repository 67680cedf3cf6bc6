// README: Sector and spot definitions provisioned from the garage import.
package garage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSectorNotFound = errors.New("sector not found")
	ErrSpotNotFound   = errors.New("spot not found")
)

// Sector is read-only once provisioned; pricing snapshots its base price at
// parking time rather than re-reading it.
type Sector struct {
	ID                   int64
	Code                 string
	BasePrice            decimal.Decimal
	MaxCapacity          int
	OpenHour             string
	CloseHour            string
	DurationLimitMinutes int
	CurrencyCode         string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Spot struct {
	ID        int64
	SectorID  int64
	Lat       float64
	Lng       float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SpotDefinition is an imported spot before its sector code is resolved to a
// sector id.
type SpotDefinition struct {
	SectorCode string
	Lat        float64
	Lng        float64
}
