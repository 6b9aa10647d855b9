package shopapi

import "github.com/shopspring/decimal"

// RemoteCartLine is a line item as returned by the cart write API.
type RemoteCartLine struct {
	ID                 int             `json:"id"`
	Title              string          `json:"title"`
	Price              decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
	Total              decimal.Decimal `json:"total"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	DiscountedTotal    decimal.Decimal `json:"discountedTotal"`
	Thumbnail          string          `json:"thumbnail"`
}

// RemoteCart is the full cart representation returned after a write.
type RemoteCart struct {
	ID              int              `json:"id"`
	Products        []RemoteCartLine `json:"products"`
	Total           decimal.Decimal  `json:"total"`
	DiscountedTotal decimal.Decimal  `json:"discountedTotal"`
	UserID          int              `json:"userId"`
	TotalProducts   int              `json:"totalProducts"`
	TotalQuantity   int              `json:"totalQuantity"`
}
