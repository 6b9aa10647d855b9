package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shopfront/storefront/internal/cart"
	"github.com/shopfront/storefront/pkg/enums"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/logger"
)

type fakeCart struct {
	snapshot cart.Cart
}

func (f *fakeCart) Snapshot() cart.Cart { return f.snapshot }
func (f *fakeCart) IsEmpty() bool       { return len(f.snapshot.Items) == 0 }

type recordedEvent struct {
	eventType enums.EventType
	payload   any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingNotifier) Publish(_ context.Context, eventType enums.EventType, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{eventType: eventType, payload: payload})
	return nil
}

func (r *recordingNotifier) types() []enums.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]enums.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}

type stepCounter map[string]int

func (s stepCounter) IncValidationFailure(step string) { s[step]++ }

func cartWith(price string, quantity int) cart.Cart {
	p := decimal.RequireFromString(price)
	total := p.Mul(decimal.NewFromInt(int64(quantity)))
	return cart.Cart{
		UserID: 1,
		Items: []cart.LineItem{{
			ProductID: 7, Title: "Lamp", UnitPrice: p, Quantity: quantity,
			LineTotal: total, DiscountedTotal: total,
		}},
		TotalProducts:   1,
		TotalQuantity:   quantity,
		Subtotal:        total,
		DiscountedTotal: total,
	}
}

func newTestFlow(t *testing.T, c *fakeCart) (*Flow, *recordingNotifier, stepCounter) {
	t.Helper()
	notes := &recordingNotifier{}
	counts := stepCounter{}
	flow, err := NewFlow(Options{
		Cart:     c,
		Logger:   logger.Nop(),
		Notifier: notes,
		Metrics:  counts,
		Now:      func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return flow, notes, counts
}

func validShipping() map[string]string {
	return map[string]string{
		"firstName":  "Ada",
		"lastName":   "Lovelace",
		"email":      "ada@example.com",
		"phone":      "+45 12345678",
		"address":    "Main St 1",
		"city":       "Copenhagen",
		"postalCode": "2100",
		"country":    "dk",
		"shipping":   "express",
	}
}

func validCard() map[string]string {
	return map[string]string{
		"paymentMethod": "card",
		"cardNumber":    "4111 1111 1111 1111",
		"expiryDate":    "12/27",
		"cvv":           "123",
		"cardName":      "Ada Lovelace",
	}
}

func TestNewFlowRequiresCollaborators(t *testing.T) {
	_, err := NewFlow(Options{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = NewFlow(Options{Cart: &fakeCart{}})
	require.Error(t, err)
}

func TestStartRejectsEmptyCart(t *testing.T) {
	flow, notes, _ := newTestFlow(t, &fakeCart{})

	_, err := flow.Start(context.Background())
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	require.Equal(t, msgEmptyCart, pkgerrors.As(err).Message())
	require.False(t, flow.State().Active)
	require.Empty(t, notes.types())
}

func TestStartOpensShippingWithDefaults(t *testing.T) {
	flow, notes, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})

	state, err := flow.Start(context.Background())
	require.NoError(t, err)
	require.True(t, state.Active)
	require.Equal(t, enums.CheckoutStepShipping, state.Step)
	require.Equal(t, 1, state.StepNumber)
	require.Equal(t, enums.ShippingMethodStandard, state.Draft.Shipping.Method)
	require.Equal(t, enums.PaymentMethodCard, state.Draft.Payment.Method)
	require.True(t, state.Draft.Payment.BillingSameAsShipping)
	require.Equal(t, []enums.EventType{enums.EventCheckoutStep}, notes.types())
}

func TestAdvanceRequiresStart(t *testing.T) {
	flow, _, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})

	_, _, err := flow.Advance(context.Background())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
	_, err = flow.Update(context.Background(), validShipping())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestAdvanceReportsShippingErrors(t *testing.T) {
	flow, notes, counts := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)

	state, result, err := flow.Submit(ctx, map[string]string{
		"firstName": "  ",
		"email":     "not-an-email",
		"country":   "xx",
	})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, enums.CheckoutStepShipping, state.Step)
	require.Equal(t, msgRequired, result.Errors["firstName"])
	require.Equal(t, msgRequired, result.Errors["lastName"])
	require.Equal(t, msgEmail, result.Errors["email"])
	require.Equal(t, msgCountry, result.Errors["country"])
	require.NotContains(t, result.Errors, "shippingMethod")
	require.Equal(t, result.Errors, state.Errors)
	require.Equal(t, 1, counts[string(enums.CheckoutStepShipping)])
	require.Contains(t, notes.types(), enums.EventCheckoutValidation)
}

func TestFullWalkReachesReviewWithTotals(t *testing.T) {
	flow, _, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)

	state, result, err := flow.Submit(ctx, validShipping())
	require.NoError(t, err)
	require.True(t, result.Valid, "%v", result.Errors)
	require.Equal(t, enums.CheckoutStepPayment, state.Step)
	require.Equal(t, enums.CountryDenmark, state.Draft.Shipping.Country)

	state, result, err = flow.Submit(ctx, validCard())
	require.NoError(t, err)
	require.True(t, result.Valid, "%v", result.Errors)
	require.Equal(t, enums.CheckoutStepReview, state.Step)
	require.Equal(t, 3, state.StepNumber)

	require.Equal(t, "**** **** **** 1111", state.Draft.Payment.CardNumber)
	require.Empty(t, state.Draft.Payment.CVV)
	require.True(t, state.Totals.ShippingCost.Equal(decimal.RequireFromString("9.99")))
	require.True(t, state.Totals.FinalTotal.Equal(decimal.RequireFromString("49.99")))

	draft, err := flow.ReadyDraft()
	require.NoError(t, err)
	require.Equal(t, "4111 1111 1111 1111", draft.Payment.CardNumber)

	_, _, err = flow.Advance(ctx)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestPaymentCardFieldsValidated(t *testing.T) {
	flow, _, counts := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)
	_, _, err = flow.Submit(ctx, validShipping())
	require.NoError(t, err)

	_, result, err := flow.Submit(ctx, map[string]string{
		"cardNumber": "1234",
		"expiryDate": "09/26",
		"cvv":        "12",
	})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, msgCardNumber, result.Errors["cardNumber"])
	require.Equal(t, msgExpiry, result.Errors["expiryDate"])
	require.Equal(t, msgCVV, result.Errors["cvv"])
	require.Equal(t, msgRequired, result.Errors["cardName"])
	require.Equal(t, 1, counts[string(enums.CheckoutStepPayment)])
}

func TestNonCardPaymentSkipsCardFields(t *testing.T) {
	flow, _, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)
	_, _, err = flow.Submit(ctx, validShipping())
	require.NoError(t, err)

	state, result, err := flow.Submit(ctx, map[string]string{"paymentMethod": "MobilePay"})
	require.NoError(t, err)
	require.True(t, result.Valid, "%v", result.Errors)
	require.Equal(t, enums.CheckoutStepReview, state.Step)
}

func TestSwitchingAwayFromCardIgnoresPartialCard(t *testing.T) {
	flow, _, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)
	_, _, err = flow.Submit(ctx, validShipping())
	require.NoError(t, err)

	_, result, err := flow.Submit(ctx, map[string]string{"cardNumber": "123", "cvv": "1"})
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Equal(t, msgCardNumber, result.Errors["cardNumber"])

	state, result, err := flow.Submit(ctx, map[string]string{"paymentMethod": "paypal"})
	require.NoError(t, err)
	require.True(t, result.Valid, "%v", result.Errors)
	require.Equal(t, enums.CheckoutStepReview, state.Step)
}

func TestValidatorSkipsCardRulesForOtherMethods(t *testing.T) {
	v := NewValidator(func() time.Time { return time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC) })
	draft := Draft{Payment: PaymentDetails{Method: enums.PaymentMethodPayPal, CardNumber: "123", ExpiryDate: "13/01"}}
	result := v.Step(enums.CheckoutStepPayment, draft)
	if !result.Valid {
		t.Fatalf("expected paypal payment to be valid, got %v", result.Errors)
	}

	draft.Payment.Method = enums.PaymentMethodCard
	result = v.Step(enums.CheckoutStepPayment, draft)
	if result.Valid {
		t.Fatalf("expected card payment with partial card to be invalid")
	}
}

func TestEnteringReviewRequiresItems(t *testing.T) {
	c := &fakeCart{snapshot: cartWith("20", 2)}
	flow, _, _ := newTestFlow(t, c)
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)
	_, _, err = flow.Submit(ctx, validShipping())
	require.NoError(t, err)

	c.snapshot = cart.Cart{}
	_, _, err = flow.Submit(ctx, validCard())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	require.Equal(t, enums.CheckoutStepPayment, flow.State().Step)
}

func TestJumpToOnlyMovesBackward(t *testing.T) {
	flow, _, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)

	_, err = flow.JumpTo(ctx, enums.CheckoutStepReview)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	_, _, err = flow.Submit(ctx, validShipping())
	require.NoError(t, err)
	_, _, err = flow.Submit(ctx, validCard())
	require.NoError(t, err)

	state, err := flow.JumpTo(ctx, enums.CheckoutStepShipping)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStepShipping, state.Step)
	require.Equal(t, "Ada", state.Draft.Shipping.FirstName)

	_, err = flow.JumpTo(ctx, enums.CheckoutStep("bogus"))
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestBackFromShippingClosesCheckout(t *testing.T) {
	flow, notes, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)
	_, _, err = flow.Submit(ctx, validShipping())
	require.NoError(t, err)

	state, err := flow.Back(ctx)
	require.NoError(t, err)
	require.Equal(t, enums.CheckoutStepShipping, state.Step)

	state, err = flow.Back(ctx)
	require.NoError(t, err)
	require.False(t, state.Active)
	_, ok := flow.Draft()
	require.False(t, ok)
	require.Equal(t, enums.EventCheckoutClosed, notes.types()[len(notes.types())-1])
}

func TestCancelIsIdempotent(t *testing.T) {
	flow, notes, _ := newTestFlow(t, &fakeCart{snapshot: cartWith("20", 2)})
	ctx := context.Background()
	_, err := flow.Start(ctx)
	require.NoError(t, err)

	flow.Cancel(ctx)
	flow.Cancel(ctx)

	closed := 0
	for _, et := range notes.types() {
		if et == enums.EventCheckoutClosed {
			closed++
		}
	}
	require.Equal(t, 1, closed)
}

func TestUnknownFieldsKeptInExtra(t *testing.T) {
	d := newDraft(cart.Cart{})
	d.Apply(map[string]string{"giftNote": " hi ", "acceptTerms": "on"})
	require.Equal(t, "hi", d.Extra["giftNote"])
	require.True(t, d.AcceptTerms)
}
