package enums

import "fmt"

// CheckoutStep is one of the ordered stages of the checkout flow.
type CheckoutStep string

const (
	CheckoutStepShipping CheckoutStep = "shipping"
	CheckoutStepPayment  CheckoutStep = "payment"
	CheckoutStepReview   CheckoutStep = "review"
)

// checkoutSteps is ordered; Index relies on it.
var checkoutSteps = []CheckoutStep{
	CheckoutStepShipping,
	CheckoutStepPayment,
	CheckoutStepReview,
}

// String implements fmt.Stringer.
func (c CheckoutStep) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStep.
func (c CheckoutStep) IsValid() bool {
	return c.Index() >= 0
}

// Index returns the zero-based position of the step, or -1 when unknown.
func (c CheckoutStep) Index() int {
	for i, candidate := range checkoutSteps {
		if candidate == c {
			return i
		}
	}
	return -1
}

// Next returns the following step and false when c is the last one.
func (c CheckoutStep) Next() (CheckoutStep, bool) {
	idx := c.Index()
	if idx < 0 || idx+1 >= len(checkoutSteps) {
		return c, false
	}
	return checkoutSteps[idx+1], true
}

// Previous returns the preceding step and false when c is the first one.
func (c CheckoutStep) Previous() (CheckoutStep, bool) {
	idx := c.Index()
	if idx <= 0 {
		return c, false
	}
	return checkoutSteps[idx-1], true
}

// ParseCheckoutStep converts raw input into a CheckoutStep.
func ParseCheckoutStep(value string) (CheckoutStep, error) {
	for _, candidate := range checkoutSteps {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout step %q", value)
}
