package checkout

import (
	"strconv"
	"strings"

	"github.com/shopfront/storefront/internal/cart"
	pkgcheckout "github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/enums"
)

// ShippingDetails is the contact, address and delivery data collected on the shipping step.
type ShippingDetails struct {
	FirstName  string               `json:"firstName" validate:"required"`
	LastName   string               `json:"lastName" validate:"required"`
	Email      string               `json:"email" validate:"required,shopfront_email"`
	Phone      string               `json:"phone" validate:"required"`
	Address    string               `json:"address" validate:"required"`
	City       string               `json:"city" validate:"required"`
	PostalCode string               `json:"postalCode" validate:"required"`
	Country    enums.Country        `json:"country" validate:"required,country_code"`
	Method     enums.ShippingMethod `json:"shippingMethod" validate:"required,shipping_method"`
}

// PaymentDetails is the data collected on the payment step. Card fields are
// only required when paying by card.
type PaymentDetails struct {
	Method                enums.PaymentMethod `json:"paymentMethod" validate:"required,payment_method"`
	CardNumber            string              `json:"cardNumber,omitempty" validate:"required_if=Method card,omitempty,card_number"`
	ExpiryDate            string              `json:"expiryDate,omitempty" validate:"required_if=Method card,omitempty,card_expiry"`
	CVV                   string              `json:"cvv,omitempty" validate:"required_if=Method card,omitempty,card_cvv"`
	CardName              string              `json:"cardName,omitempty" validate:"required_if=Method card"`
	BillingSameAsShipping bool                `json:"billingSameAsShipping"`
}

// Draft accumulates checkout form data plus the cart snapshot it applies to.
type Draft struct {
	Shipping    ShippingDetails   `json:"shipping"`
	Payment     PaymentDetails    `json:"payment"`
	AcceptTerms bool              `json:"acceptTerms"`
	Extra       map[string]string `json:"extra,omitempty"`
	Cart        cart.Cart         `json:"cart"`
}

func newDraft(snapshot cart.Cart) Draft {
	return Draft{
		Shipping: ShippingDetails{Method: enums.ShippingMethodStandard},
		Payment: PaymentDetails{
			Method:                enums.PaymentMethodCard,
			BillingSameAsShipping: true,
		},
		Cart: snapshot,
	}
}

// Apply merges submitted form fields into the draft. Unknown keys are kept in Extra.
func (d *Draft) Apply(fields map[string]string) {
	for key, raw := range fields {
		value := strings.TrimSpace(raw)
		switch key {
		case "firstName":
			d.Shipping.FirstName = value
		case "lastName":
			d.Shipping.LastName = value
		case "email":
			d.Shipping.Email = value
		case "phone":
			d.Shipping.Phone = value
		case "address":
			d.Shipping.Address = value
		case "city":
			d.Shipping.City = value
		case "postalCode":
			d.Shipping.PostalCode = value
		case "country":
			d.Shipping.Country = enums.Country(strings.ToUpper(value))
		case "shipping", "shippingMethod":
			d.Shipping.Method = enums.ShippingMethod(strings.ToLower(value))
		case "paymentMethod":
			d.Payment.Method = enums.PaymentMethod(strings.ToLower(value))
		case "cardNumber":
			d.Payment.CardNumber = value
		case "expiryDate":
			d.Payment.ExpiryDate = value
		case "cvv":
			d.Payment.CVV = value
		case "cardName":
			d.Payment.CardName = value
		case "billingSameAsShipping":
			d.Payment.BillingSameAsShipping = parseFlag(value)
		case "acceptTerms":
			d.AcceptTerms = parseFlag(value)
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]string)
			}
			d.Extra[key] = value
		}
	}
}

// Masked returns a copy safe to show or store: the card number is reduced to
// its last four digits and the CVV is dropped.
func (d Draft) Masked() Draft {
	out := d.clone()
	out.Payment.CardNumber = pkgcheckout.MaskCardNumber(d.Payment.CardNumber)
	out.Payment.CVV = ""
	return out
}

func (d Draft) clone() Draft {
	out := d
	if d.Extra != nil {
		out.Extra = make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = v
		}
	}
	out.Cart.Items = append([]cart.LineItem{}, d.Cart.Items...)
	if d.Cart.ID != nil {
		id := *d.Cart.ID
		out.Cart.ID = &id
	}
	return out
}

func parseFlag(value string) bool {
	switch strings.ToLower(value) {
	case "on", "yes":
		return true
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
