package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopfront/storefront/internal/cart"
	pkgcheckout "github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/enums"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/logger"
)

const (
	msgEmptyCart  = "Your cart is empty"
	msgNotStarted = "checkout has not been started"

	ReasonCancelled = "cancelled"
	ReasonCompleted = "completed"
)

type cartReader interface {
	Snapshot() cart.Cart
	IsEmpty() bool
}

type notifier interface {
	Publish(ctx context.Context, eventType enums.EventType, payload any) error
}

type validationRecorder interface {
	IncValidationFailure(step string)
}

// Options wires a Flow. Cart and Logger are required.
type Options struct {
	Cart     cartReader
	Logger   *logger.Logger
	Notifier notifier
	Metrics  validationRecorder
	Pricing  pkgcheckout.Pricing
	Now      func() time.Time
}

// StepChanged is the payload of checkout.step_changed notifications.
type StepChanged struct {
	Step       enums.CheckoutStep `json:"step"`
	StepNumber int                `json:"stepNumber"`
	Previous   enums.CheckoutStep `json:"previous,omitempty"`
}

// ValidationFailed is the payload of checkout.validation_failed notifications.
type ValidationFailed struct {
	Step   enums.CheckoutStep `json:"step"`
	Errors map[string]string  `json:"errors"`
}

// Closed is the payload of checkout.closed notifications.
type Closed struct {
	Reason string `json:"reason"`
}

// Totals are the amounts shown on the review step.
type Totals struct {
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountedTotal decimal.Decimal `json:"discountedTotal"`
	ShippingCost    decimal.Decimal `json:"shippingCost"`
	FinalTotal      decimal.Decimal `json:"finalTotal"`
}

// State is the presentation view of the flow. Card data is masked.
type State struct {
	Active     bool               `json:"active"`
	Step       enums.CheckoutStep `json:"step,omitempty"`
	StepNumber int                `json:"stepNumber,omitempty"`
	Draft      *Draft             `json:"draft,omitempty"`
	Totals     *Totals            `json:"totals,omitempty"`
	Errors     map[string]string  `json:"errors,omitempty"`
}

// Flow is the three-step checkout state machine. Forward moves validate the
// step being left; backward moves never validate.
type Flow struct {
	mu         sync.Mutex
	active     bool
	step       enums.CheckoutStep
	draft      Draft
	lastErrors map[string]string

	cart      cartReader
	logg      *logger.Logger
	notifier  notifier
	metrics   validationRecorder
	pricing   pkgcheckout.Pricing
	validator *Validator
}

// NewFlow builds an idle checkout flow.
func NewFlow(opts Options) (*Flow, error) {
	if opts.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	pricing := opts.Pricing
	if pricing.ExpressFee.IsZero() && pricing.FreeShippingOver.IsZero() {
		pricing = pkgcheckout.DefaultPricing()
	}
	return &Flow{
		cart:      opts.Cart,
		logg:      opts.Logger,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		pricing:   pricing,
		validator: NewValidator(opts.Now),
	}, nil
}

// Start opens checkout on the shipping step with a fresh draft. An empty cart
// cannot be checked out.
func (f *Flow) Start(ctx context.Context) (State, error) {
	if f.cart.IsEmpty() {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
	}
	f.mu.Lock()
	previous := f.step
	if !f.active {
		previous = ""
	}
	f.active = true
	f.step = enums.CheckoutStepShipping
	f.draft = newDraft(f.cart.Snapshot())
	f.lastErrors = nil
	state := f.stateLocked()
	f.mu.Unlock()

	f.logg.Info(f.logg.WithCheckoutStep(ctx, string(enums.CheckoutStepShipping)), "checkout started")
	f.emit(ctx, enums.EventCheckoutStep, StepChanged{
		Step:       enums.CheckoutStepShipping,
		StepNumber: 1,
		Previous:   previous,
	})
	return state, nil
}

// Update merges form fields into the draft without validating or moving.
func (f *Flow) Update(ctx context.Context, fields map[string]string) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return State{}, pkgerrors.New(pkgerrors.CodeStateConflict, msgNotStarted)
	}
	f.draft.Apply(fields)
	return f.stateLocked(), nil
}

// Advance validates the current step and, when valid, moves to the next one.
// An invalid step is reported through the result, not the error.
func (f *Flow) Advance(ctx context.Context) (State, ValidationResult, error) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return State{}, ValidationResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, msgNotStarted)
	}
	from := f.step
	next, ok := from.Next()
	if !ok {
		f.mu.Unlock()
		return State{}, ValidationResult{}, pkgerrors.New(pkgerrors.CodeStateConflict, "already on the final step; place the order")
	}

	result := f.validator.Step(from, f.draft)
	if !result.Valid {
		f.lastErrors = result.Errors
		state := f.stateLocked()
		f.mu.Unlock()

		f.logg.Info(f.logg.WithCheckoutStep(ctx, string(from)), "checkout step invalid")
		if f.metrics != nil {
			f.metrics.IncValidationFailure(string(from))
		}
		f.emit(ctx, enums.EventCheckoutValidation, ValidationFailed{Step: from, Errors: result.Errors})
		return state, result, nil
	}

	if next == enums.CheckoutStepReview {
		if f.cart.IsEmpty() {
			f.mu.Unlock()
			return State{}, ValidationResult{}, pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
		}
		f.draft.Cart = f.cart.Snapshot()
	}
	f.step = next
	f.lastErrors = nil
	state := f.stateLocked()
	f.mu.Unlock()

	f.logg.Info(f.logg.WithCheckoutStep(ctx, string(next)), "checkout step changed")
	f.emit(ctx, enums.EventCheckoutStep, StepChanged{Step: next, StepNumber: next.Index() + 1, Previous: from})
	return state, result, nil
}

// Submit applies fields and then advances.
func (f *Flow) Submit(ctx context.Context, fields map[string]string) (State, ValidationResult, error) {
	if _, err := f.Update(ctx, fields); err != nil {
		return State{}, ValidationResult{}, err
	}
	return f.Advance(ctx)
}

// Back returns to the previous step. Going back from shipping leaves checkout.
func (f *Flow) Back(ctx context.Context) (State, error) {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return State{}, pkgerrors.New(pkgerrors.CodeStateConflict, msgNotStarted)
	}
	prev, ok := f.step.Previous()
	f.mu.Unlock()
	if !ok {
		return f.Cancel(ctx), nil
	}
	return f.JumpTo(ctx, prev)
}

// JumpTo moves to the current or an earlier step. Skipping ahead is refused.
func (f *Flow) JumpTo(ctx context.Context, step enums.CheckoutStep) (State, error) {
	if !step.IsValid() {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown checkout step %q", step))
	}
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return State{}, pkgerrors.New(pkgerrors.CodeStateConflict, msgNotStarted)
	}
	from := f.step
	if step.Index() > from.Index() {
		f.mu.Unlock()
		return State{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot skip ahead to %s", step)).
			WithDetails(map[string]any{"current": from, "requested": step})
	}
	f.step = step
	f.lastErrors = nil
	state := f.stateLocked()
	f.mu.Unlock()

	if step != from {
		f.emit(ctx, enums.EventCheckoutStep, StepChanged{Step: step, StepNumber: step.Index() + 1, Previous: from})
	}
	return state, nil
}

// Cancel leaves checkout and discards the draft. The cart is untouched.
func (f *Flow) Cancel(ctx context.Context) State {
	return f.close(ctx, ReasonCancelled)
}

// Complete closes checkout after an order was placed.
func (f *Flow) Complete(ctx context.Context) State {
	return f.close(ctx, ReasonCompleted)
}

func (f *Flow) close(ctx context.Context, reason string) State {
	f.mu.Lock()
	wasActive := f.active
	f.active = false
	f.step = ""
	f.draft = Draft{}
	f.lastErrors = nil
	f.mu.Unlock()

	if wasActive {
		f.logg.Info(f.logg.WithField(ctx, "reason", reason), "checkout closed")
		f.emit(ctx, enums.EventCheckoutClosed, Closed{Reason: reason})
	}
	return State{}
}

// State returns the current presentation view.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

// Draft returns an unmasked copy of the draft and whether checkout is active.
func (f *Flow) Draft() (Draft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return Draft{}, false
	}
	return f.draft.clone(), true
}

// ReadyDraft returns the draft when the flow is on the review step.
func (f *Flow) ReadyDraft() (Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return Draft{}, pkgerrors.New(pkgerrors.CodeStateConflict, msgNotStarted)
	}
	if f.step != enums.CheckoutStepReview {
		return Draft{}, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not on the review step").
			WithDetails(map[string]any{"current": f.step})
	}
	return f.draft.clone(), nil
}

// SetAcceptTerms records the terms checkbox on the review step.
func (f *Flow) SetAcceptTerms(accepted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		f.draft.AcceptTerms = accepted
	}
}

// Totals prices snapshot with the given shipping method.
func (f *Flow) Totals(snapshot cart.Cart, method enums.ShippingMethod) Totals {
	return Totals{
		Subtotal:        snapshot.Subtotal,
		DiscountedTotal: snapshot.DiscountedTotal,
		ShippingCost:    f.pricing.ShippingCost(method, snapshot.Subtotal),
		FinalTotal:      f.pricing.FinalTotal(method, snapshot.Subtotal, snapshot.DiscountedTotal),
	}
}

func (f *Flow) stateLocked() State {
	if !f.active {
		return State{}
	}
	masked := f.draft.Masked()
	totals := f.Totals(f.draft.Cart, f.draft.Shipping.Method)
	var errs map[string]string
	if len(f.lastErrors) > 0 {
		errs = make(map[string]string, len(f.lastErrors))
		for k, v := range f.lastErrors {
			errs[k] = v
		}
	}
	return State{
		Active:     true,
		Step:       f.step,
		StepNumber: f.step.Index() + 1,
		Draft:      &masked,
		Totals:     &totals,
		Errors:     errs,
	}
}

func (f *Flow) emit(ctx context.Context, eventType enums.EventType, payload any) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Publish(ctx, eventType, payload); err != nil {
		f.logg.WarnErr(ctx, "checkout notification failed", err)
	}
}
