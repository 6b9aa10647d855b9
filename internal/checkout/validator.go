package checkout

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	pkgcheckout "github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/enums"
)

const (
	msgRequired       = "This field is required"
	msgEmail          = "Please enter a valid email address"
	msgCardNumber     = "Please enter a valid card number"
	msgExpiry         = "Please enter a valid expiry date"
	msgCVV            = "Please enter a valid CVV"
	msgCountry        = "Please select a supported country"
	msgShippingMethod = "Please select a shipping method"
	msgPaymentMethod  = "Please select a payment method"
	msgInvalid        = "This field is invalid"
)

// ValidationResult reports whether a step may be left and why not.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Validator checks checkout steps. Expiry checks use the injected clock.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator builds a step validator; a nil clock uses time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	rules := map[string]validator.Func{
		"shopfront_email": func(fl validator.FieldLevel) bool {
			return pkgcheckout.IsValidEmail(fl.Field().String())
		},
		"card_number": func(fl validator.FieldLevel) bool {
			return pkgcheckout.IsValidCardNumber(fl.Field().String())
		},
		"card_expiry": func(fl validator.FieldLevel) bool {
			return pkgcheckout.IsValidExpiry(fl.Field().String(), v.now())
		},
		"card_cvv": func(fl validator.FieldLevel) bool {
			return pkgcheckout.IsValidCVV(fl.Field().String())
		},
		"country_code": func(fl validator.FieldLevel) bool {
			return enums.Country(fl.Field().String()).IsValid()
		},
		"shipping_method": func(fl validator.FieldLevel) bool {
			return enums.ShippingMethod(fl.Field().String()).IsValid()
		},
		"payment_method": func(fl validator.FieldLevel) bool {
			return enums.PaymentMethod(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range rules {
		// registration only fails on empty tags or nil funcs
		_ = v.validate.RegisterValidation(tag, fn)
	}
	return v
}

// Step validates the fields owned by step. The review step has no fields of its own.
func (v *Validator) Step(step enums.CheckoutStep, draft Draft) ValidationResult {
	var err error
	switch step {
	case enums.CheckoutStepShipping:
		err = v.validate.Struct(draft.Shipping)
	case enums.CheckoutStepPayment:
		payment := draft.Payment
		if payment.Method != enums.PaymentMethodCard {
			// card fields left over from an earlier choice are not checked
			payment.CardNumber, payment.ExpiryDate, payment.CVV, payment.CardName = "", "", "", ""
		}
		err = v.validate.Struct(payment)
	default:
		return ValidationResult{Valid: true}
	}
	return toResult(err)
}

func toResult(err error) ValidationResult {
	if err == nil {
		return ValidationResult{Valid: true}
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ValidationResult{Errors: map[string]string{"_": msgInvalid}}
	}
	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return ValidationResult{Errors: out}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return msgRequired
	case "shopfront_email":
		return msgEmail
	case "card_number":
		return msgCardNumber
	case "card_expiry":
		return msgExpiry
	case "card_cvv":
		return msgCVV
	case "country_code":
		return msgCountry
	case "shipping_method":
		return msgShippingMethod
	case "payment_method":
		return msgPaymentMethod
	}
	return msgInvalid
}
