// README: Garage provisioning; replaces the sector/spot layout from an import payload.
package garage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

var ErrEmptyImport = errors.New("garage import needs at least one sector and one spot")

// Inventory is the persistence collaborator for provisioning.
type Inventory interface {
	ReplaceAll(ctx context.Context, sectors []Sector, spots []SpotDefinition) error
}

type Service struct {
	inventory Inventory
	logger    *slog.Logger
}

func NewService(inventory Inventory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{inventory: inventory, logger: logger}
}

type SectorInput struct {
	Code                 string
	BasePrice            decimal.Decimal
	MaxCapacity          int
	OpenHour             string
	CloseHour            string
	DurationLimitMinutes int
}

type SpotInput struct {
	SectorCode string
	Lat        float64
	Lng        float64
}

type ImportCommand struct {
	Sectors []SectorInput
	Spots   []SpotInput
}

const defaultCurrency = "BRL"

// Import replaces the whole garage layout. Spots referencing an unknown
// sector code fail the import; a partial layout is never persisted.
func (s *Service) Import(ctx context.Context, cmd ImportCommand) error {
	if len(cmd.Sectors) == 0 || len(cmd.Spots) == 0 {
		return ErrEmptyImport
	}

	sectors := make([]Sector, 0, len(cmd.Sectors))
	for _, in := range cmd.Sectors {
		sectors = append(sectors, Sector{
			Code:                 in.Code,
			BasePrice:            in.BasePrice,
			MaxCapacity:          in.MaxCapacity,
			OpenHour:             in.OpenHour,
			CloseHour:            in.CloseHour,
			DurationLimitMinutes: in.DurationLimitMinutes,
			CurrencyCode:         defaultCurrency,
		})
	}
	spots := make([]SpotDefinition, 0, len(cmd.Spots))
	for _, in := range cmd.Spots {
		spots = append(spots, SpotDefinition{SectorCode: in.SectorCode, Lat: in.Lat, Lng: in.Lng})
	}

	if err := s.inventory.ReplaceAll(ctx, sectors, spots); err != nil {
		return err
	}
	s.logger.Info("garage layout replaced",
		"sectors", len(sectors),
		"spots", len(spots),
	)
	return nil
}
