package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/shopfront/storefront/pkg/enums"
)

// Pricing holds the shipping tariff.
type Pricing struct {
	ExpressFee       decimal.Decimal
	FreeShippingOver decimal.Decimal
}

// DefaultPricing charges 9.99 for express delivery and ships free above 50.
func DefaultPricing() Pricing {
	return Pricing{
		ExpressFee:       decimal.RequireFromString("9.99"),
		FreeShippingOver: decimal.NewFromInt(50),
	}
}

// ShippingCost returns the surcharge for method given the cart subtotal.
// Orders whose subtotal exceeds the threshold ship free regardless of method.
func (p Pricing) ShippingCost(method enums.ShippingMethod, subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeShippingOver) {
		return decimal.Zero
	}
	if method == enums.ShippingMethodExpress {
		return p.ExpressFee
	}
	return decimal.Zero
}

// FinalTotal adds the shipping cost to the discounted cart total.
func (p Pricing) FinalTotal(method enums.ShippingMethod, subtotal, discountedTotal decimal.Decimal) decimal.Decimal {
	return discountedTotal.Add(p.ShippingCost(method, subtotal)).Round(2)
}

// RemainingForFreeShipping is how much more the shopper must add to ship free.
func (p Pricing) RemainingForFreeShipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeShippingOver) {
		return decimal.Zero
	}
	return p.FreeShippingOver.Sub(subtotal).Round(2)
}
