package cart

import (
	"github.com/shopspring/decimal"

	"github.com/shopfront/storefront/pkg/shopapi"
	"github.com/shopfront/storefront/pkg/types"
)

var hundred = decimal.NewFromInt(100)

// LineItem is one product in the cart. At most one line exists per product id.
type LineItem struct {
	ProductID          int             `json:"id"`
	Title              string          `json:"title"`
	UnitPrice          decimal.Decimal `json:"price"`
	Quantity           int             `json:"quantity"`
	LineTotal          decimal.Decimal `json:"total"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	DiscountedTotal    decimal.Decimal `json:"discountedTotal"`
	Thumbnail          string          `json:"thumbnail,omitempty"`
}

func newLineItem(product types.Product, quantity int) LineItem {
	item := LineItem{
		ProductID:          product.ID,
		Title:              product.Title,
		UnitPrice:          product.Price,
		Quantity:           quantity,
		DiscountPercentage: product.DiscountPercentage,
		Thumbnail:          product.Thumbnail,
	}
	item.reprice()
	return item
}

// reprice recomputes the line totals from unit price, quantity and discount.
func (l *LineItem) reprice() {
	l.LineTotal = types.RoundMoney(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	discount := l.DiscountPercentage
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(hundred) {
		discount = hundred
	}
	factor := hundred.Sub(discount).Div(hundred)
	l.DiscountedTotal = types.RoundMoney(l.LineTotal.Mul(factor))
}

func (l LineItem) valid() bool {
	return l.ProductID > 0 && l.Quantity >= 1 && !l.UnitPrice.IsNegative()
}

// Cart is the persisted cart document.
type Cart struct {
	ID              *int            `json:"id"`
	UserID          int             `json:"userId"`
	Items           []LineItem      `json:"products"`
	TotalProducts   int             `json:"totalProducts"`
	TotalQuantity   int             `json:"totalQuantity"`
	Subtotal        decimal.Decimal `json:"total"`
	DiscountedTotal decimal.Decimal `json:"discountedTotal"`
	LocallyComputed bool            `json:"locallyComputed"`
}

func emptyCart(userID int) Cart {
	return Cart{UserID: userID, Items: []LineItem{}}
}

// clone returns a deep copy so callers cannot mutate store state.
func (c Cart) clone() Cart {
	out := c
	out.Items = append([]LineItem{}, c.Items...)
	if c.ID != nil {
		id := *c.ID
		out.ID = &id
	}
	return out
}

func (c *Cart) indexOf(productID int) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// recalculate derives the aggregates from the current line items.
func (c *Cart) recalculate() {
	c.TotalProducts = len(c.Items)
	c.TotalQuantity = 0
	c.Subtotal = decimal.Zero
	c.DiscountedTotal = decimal.Zero
	for _, item := range c.Items {
		c.TotalQuantity += item.Quantity
		c.Subtotal = c.Subtotal.Add(item.LineTotal)
		c.DiscountedTotal = c.DiscountedTotal.Add(item.DiscountedTotal)
	}
	c.Subtotal = types.RoundMoney(c.Subtotal)
	c.DiscountedTotal = types.RoundMoney(c.DiscountedTotal)
	if c.DiscountedTotal.GreaterThan(c.Subtotal) {
		c.DiscountedTotal = c.Subtotal
	}
}

// computeLocally reprices every line and recomputes the aggregates without the remote service.
func (c *Cart) computeLocally() {
	for i := range c.Items {
		c.Items[i].reprice()
	}
	c.recalculate()
	c.LocallyComputed = true
}

// adoptRemote replaces the line items with the remote representation.
func (c *Cart) adoptRemote(remote *shopapi.RemoteCart) {
	id := remote.ID
	c.ID = &id
	if remote.UserID > 0 {
		c.UserID = remote.UserID
	}
	thumbnails := make(map[int]string, len(c.Items))
	for _, item := range c.Items {
		thumbnails[item.ProductID] = item.Thumbnail
	}
	items := make([]LineItem, 0, len(remote.Products))
	for _, line := range remote.Products {
		item := LineItem{
			ProductID:          line.ID,
			Title:              line.Title,
			UnitPrice:          line.Price,
			Quantity:           line.Quantity,
			LineTotal:          types.RoundMoney(line.Total),
			DiscountPercentage: line.DiscountPercentage,
			DiscountedTotal:    types.RoundMoney(line.DiscountedTotal),
			Thumbnail:          line.Thumbnail,
		}
		if item.Thumbnail == "" {
			item.Thumbnail = thumbnails[item.ProductID]
		}
		items = append(items, item)
	}
	c.Items = items
	c.recalculate()
	c.LocallyComputed = false
}

func (c Cart) remoteProducts() []shopapi.CartProduct {
	out := make([]shopapi.CartProduct, 0, len(c.Items))
	for _, item := range c.Items {
		out = append(out, shopapi.CartProduct{ID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// Summary is the read-only projection of the cart handed to the presentation layer.
type Summary struct {
	Items                 []LineItem      `json:"items"`
	TotalProducts         int             `json:"totalProducts"`
	TotalQuantity         int             `json:"totalQuantity"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DiscountedTotal       decimal.Decimal `json:"discountedTotal"`
	LocallyComputed       bool            `json:"locallyComputed"`
	IsEmpty               bool            `json:"isEmpty"`
	FreeShippingRemaining decimal.Decimal `json:"freeShippingRemaining"`
}
