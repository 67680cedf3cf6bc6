// README: Tariff calculator; converts parked time plus a snapshotted rate into an amount.
package billing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// GraceMinutes of parking are free of charge.
	GraceMinutes = 15
	// FirstHourMinutes are billed as one flat hour once the grace period is exceeded.
	FirstHourMinutes = 60
	// PeriodMinutes is the granularity of billing beyond the first hour.
	PeriodMinutes = 15
)

// ErrMissingBasePrice reports an event that carries a non-zero dynamic rate
// but no snapshotted sector price. That combination only occurs when the
// stored event data is corrupt, so it surfaces instead of pricing to zero.
var ErrMissingBasePrice = errors.New("missing sector base price for non-zero dynamic rate")

var (
	one     = decimal.NewFromInt(1)
	four    = decimal.NewFromInt(4)
	hundred = decimal.NewFromInt(100)
)

// Amount prices the interval [entryAt, endAt] under the snapshotted sector
// price and dynamic rate. durationLimitMinutes caps the billable time;
// zero or negative means no cap (sector unknown). The result is rounded
// half-up to two decimals at the final step only.
func Amount(entryAt, endAt time.Time, durationLimitMinutes int, basePrice *decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, error) {
	parkedMinutes := int64(endAt.Sub(entryAt) / time.Minute)
	if parkedMinutes < 0 {
		parkedMinutes = 0
	}
	totalMinutes := parkedMinutes
	if durationLimitMinutes > 0 && totalMinutes > int64(durationLimitMinutes) {
		totalMinutes = int64(durationLimitMinutes)
	}
	if totalMinutes <= GraceMinutes {
		return decimal.Zero, nil
	}
	hours := chargeableHours(totalMinutes - GraceMinutes)
	applied, err := appliedPrice(basePrice, rate)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return applied.Mul(hours).Round(2), nil
}

// chargeableHours maps billable minutes to hours: the first 60 minutes count
// as one flat hour, every started 15-minute period after that adds a quarter.
// The quarter conversion is rounded half-up to two decimals before the add;
// the stored billing history depends on that intermediate rounding.
func chargeableHours(chargeableMinutes int64) decimal.Decimal {
	if chargeableMinutes <= 0 {
		return decimal.Zero
	}
	if chargeableMinutes <= FirstHourMinutes {
		return one
	}
	remaining := chargeableMinutes - FirstHourMinutes
	periods := (remaining + PeriodMinutes - 1) / PeriodMinutes
	additional := decimal.NewFromInt(periods).DivRound(four, 2)
	return one.Add(additional)
}

// appliedPrice adjusts the base price by the dynamic rate percentage. The
// discount and surcharge branches are algebraically the same formula; both
// are kept so the arithmetic matches the recorded billing amounts step for
// step.
func appliedPrice(basePrice *decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, error) {
	switch {
	case rate.IsNegative():
		if basePrice == nil {
			return decimal.Decimal{}, ErrMissingBasePrice
		}
		return basePrice.Add(basePrice.Mul(rate.Div(hundred))), nil
	case rate.IsPositive():
		if basePrice == nil {
			return decimal.Decimal{}, ErrMissingBasePrice
		}
		return basePrice.Mul(rate.Div(hundred).Add(one)), nil
	default:
		if basePrice == nil {
			return decimal.Zero, nil
		}
		return *basePrice, nil
	}
}
