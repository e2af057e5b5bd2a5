package domain

import "github.com/shopspring/decimal"

// AmountPlaces is the fixed precision used for all balance comparisons.
const AmountPlaces = 2

// RoundAmount rounds d to AmountPlaces.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// AmountsEqual compares two amounts at fixed precision.
func AmountsEqual(a, b decimal.Decimal) bool {
	return RoundAmount(a).Equal(RoundAmount(b))
}
