package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopfront/storefront/internal/cart"
	"github.com/shopfront/storefront/internal/checkout"
	pkgcheckout "github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/enums"
)

// CustomerInfo is the part of the checkout draft kept with an order. Card
// data is reduced to the last four digits.
type CustomerInfo struct {
	FirstName             string               `json:"firstName"`
	LastName              string               `json:"lastName"`
	Email                 string               `json:"email"`
	Phone                 string               `json:"phone"`
	Address               string               `json:"address"`
	City                  string               `json:"city"`
	PostalCode            string               `json:"postalCode"`
	Country               enums.Country        `json:"country"`
	ShippingMethod        enums.ShippingMethod `json:"shippingMethod"`
	PaymentMethod         enums.PaymentMethod  `json:"paymentMethod"`
	CardLast4             string               `json:"cardLast4,omitempty"`
	CardName              string               `json:"cardName,omitempty"`
	BillingSameAsShipping bool                 `json:"billingSameAsShipping"`
	Extra                 map[string]string    `json:"extra,omitempty"`
}

// Order is an immutable record of a placed order.
type Order struct {
	ID              int64             `json:"id"`
	Items           []cart.LineItem   `json:"items"`
	TotalQuantity   int               `json:"totalQuantity"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	DiscountedTotal decimal.Decimal   `json:"discountedTotal"`
	ShippingCost    decimal.Decimal   `json:"shippingCost"`
	Total           decimal.Decimal   `json:"total"`
	CustomerInfo    CustomerInfo      `json:"customerInfo"`
	OrderDate       time.Time         `json:"orderDate"`
	Status          enums.OrderStatus `json:"status"`
}

// Number is the order number shown to shoppers.
func (o Order) Number() string {
	return FormatOrderNumber(o.ID)
}

// FormatOrderNumber renders "#" followed by the last six digits of id,
// zero-padded to six.
func FormatOrderNumber(id int64) string {
	if id < 0 {
		id = -id
	}
	return fmt.Sprintf("#%06d", id%1000000)
}

func customerInfoFrom(draft checkout.Draft) CustomerInfo {
	info := CustomerInfo{
		FirstName:             draft.Shipping.FirstName,
		LastName:              draft.Shipping.LastName,
		Email:                 draft.Shipping.Email,
		Phone:                 draft.Shipping.Phone,
		Address:               draft.Shipping.Address,
		City:                  draft.Shipping.City,
		PostalCode:            draft.Shipping.PostalCode,
		Country:               draft.Shipping.Country,
		ShippingMethod:        draft.Shipping.Method,
		PaymentMethod:         draft.Payment.Method,
		BillingSameAsShipping: draft.Payment.BillingSameAsShipping,
	}
	if draft.Payment.Method == enums.PaymentMethodCard {
		info.CardLast4 = pkgcheckout.CardLast4(draft.Payment.CardNumber)
		info.CardName = draft.Payment.CardName
	}
	if len(draft.Extra) > 0 {
		info.Extra = make(map[string]string, len(draft.Extra))
		for k, v := range draft.Extra {
			info.Extra[k] = v
		}
	}
	return info
}
