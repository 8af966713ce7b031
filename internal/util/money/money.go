package money

import "github.com/shopspring/decimal"

// Conversions between NUMERIC(12,2) amounts and the processor's integer
// minor units. Only two-decimal currencies are supported.

func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

func FromMinorUnits(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Shift(-2)
}
