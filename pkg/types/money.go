package types

import "github.com/shopspring/decimal"

func init() {
	// Prices travel as JSON numbers in both directions.
	decimal.MarshalJSONWithoutQuotes = true
}

// RoundMoney rounds an amount to whole cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
