// README: Common value objects shared across modules.
package types

import "github.com/shopspring/decimal"

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

type Money struct {
	Amount   decimal.Decimal
	Currency string
}
