package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopfront/storefront/internal/cart"
	"github.com/shopfront/storefront/internal/checkout"
	"github.com/shopfront/storefront/internal/events"
	pkgcheckout "github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/enums"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/kvstore"
	"github.com/shopfront/storefront/pkg/logger"
	"github.com/shopfront/storefront/pkg/pagination"
	"github.com/shopfront/storefront/pkg/types"
)

const (
	OpPlaceOrder = "place_order"

	msgTermsRequired = "Please accept the terms and conditions"
	msgEmptyCart     = "Your cart is empty"
	msgPlaceFailed   = "Failed to place order. Please try again."
)

type cartStore interface {
	IsEmpty() bool
	CheckOut(ctx context.Context, place func(snapshot cart.Cart) error) (cart.Summary, error)
}

type checkoutFlow interface {
	SetAcceptTerms(accepted bool)
	ReadyDraft() (checkout.Draft, error)
	Complete(ctx context.Context) checkout.State
}

type notifier interface {
	Publish(ctx context.Context, eventType enums.EventType, payload any) error
}

type orderRecorder interface {
	IncOrderPlaced()
	IncOrderFailed()
}

// Options wires the order service. Store, Cart and Logger are required.
type Options struct {
	Store    kvstore.Store
	Cart     cartStore
	Flow     checkoutFlow
	Logger   *logger.Logger
	Notifier notifier
	Metrics  orderRecorder
	Pricing  pkgcheckout.Pricing
	// Delay stands in for the payment gateway round trip.
	Delay time.Duration
	Now   func() time.Time
}

// Service places orders and serves the order log.
type Service interface {
	PlaceOrder(ctx context.Context, draft checkout.Draft) (*Order, error)
	Checkout(ctx context.Context, acceptTerms bool) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	Page(ctx context.Context, params pagination.Params) (*OrderPage, error)
	Get(ctx context.Context, id int64) (*Order, error)
}

type service struct {
	mu       sync.Mutex
	log      *orderLog
	cart     cartStore
	flow     checkoutFlow
	logg     *logger.Logger
	notifier notifier
	metrics  orderRecorder
	pricing  pkgcheckout.Pricing
	delay    time.Duration
	now      func() time.Time
}

func NewService(opts Options) (Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if opts.Cart == nil {
		return nil, fmt.Errorf("cart required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("delay must be non-negative")
	}
	if opts.Pricing.ExpressFee.IsZero() && opts.Pricing.FreeShippingOver.IsZero() {
		opts.Pricing = pkgcheckout.DefaultPricing()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		log:      &orderLog{store: opts.Store, logg: opts.Logger},
		cart:     opts.Cart,
		flow:     opts.Flow,
		logg:     opts.Logger,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		pricing:  opts.Pricing,
		delay:    opts.Delay,
		now:      opts.Now,
	}, nil
}

// PlaceOrder turns draft and the current cart into a confirmed order, appends
// it to the log and clears the cart. Nothing is placed unless the append succeeds.
func (s *service) PlaceOrder(ctx context.Context, draft checkout.Draft) (*Order, error) {
	order, err := s.place(ctx, draft)
	if err != nil {
		s.fail(ctx, err)
		return nil, err
	}

	orderCtx := s.logg.WithOrderID(ctx, order.ID)
	s.logg.Info(orderCtx, "order placed")
	if s.metrics != nil {
		s.metrics.IncOrderPlaced()
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(orderCtx, enums.EventOrderPlaced, *order); err != nil {
			s.logg.WarnErr(orderCtx, "order placed notification failed", err)
		}
	}
	return order, nil
}

func (s *service) place(ctx context.Context, draft checkout.Draft) (*Order, error) {
	if !draft.AcceptTerms {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgTermsRequired).
			WithDetails(map[string]string{"acceptTerms": msgTermsRequired})
	}

	if s.cart.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var order Order
	_, err := s.cart.CheckOut(ctx, func(snapshot cart.Cart) error {
		if len(snapshot.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, msgEmptyCart)
		}
		existing, err := s.log.read(ctx)
		if err != nil {
			return err
		}
		order = s.newOrder(draft, snapshot, s.log.lastID(existing))
		return s.log.append(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// newOrder snapshots the cart and draft into a confirmed order with an id above lastID.
func (s *service) newOrder(draft checkout.Draft, snapshot cart.Cart, lastID int64) Order {
	now := s.now().UTC()
	id := now.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	method := draft.Shipping.Method
	if !method.IsValid() {
		method = enums.ShippingMethodStandard
	}
	order := Order{
		ID:              id,
		Items:           append([]cart.LineItem{}, snapshot.Items...),
		TotalQuantity:   snapshot.TotalQuantity,
		Subtotal:        types.RoundMoney(snapshot.Subtotal),
		DiscountedTotal: types.RoundMoney(snapshot.DiscountedTotal),
		ShippingCost:    s.pricing.ShippingCost(method, snapshot.Subtotal),
		Total:           s.pricing.FinalTotal(method, snapshot.Subtotal, snapshot.DiscountedTotal),
		CustomerInfo:    customerInfoFrom(draft),
		OrderDate:       now,
		Status:          enums.OrderStatusConfirmed,
	}
	order.CustomerInfo.ShippingMethod = method
	return order
}

func (s *service) wait(ctx context.Context) error {
	if s.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return pkgerrors.Wrap(pkgerrors.CodeInternal, ctx.Err(), "order placement cancelled")
	case <-timer.C:
		return nil
	}
}

func (s *service) fail(ctx context.Context, err error) {
	if s.metrics != nil {
		s.metrics.IncOrderFailed()
	}
	if pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		s.logg.Info(s.logg.WithField(ctx, "reason", err.Error()), "order rejected")
	} else {
		s.logg.Error(ctx, "order placement failed", err)
	}
	if s.notifier == nil {
		return
	}
	message := msgPlaceFailed
	if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
		message = typed.Message()
	}
	_ = s.notifier.Publish(ctx, enums.EventOperationFailed, events.OperationFailed{
		Operation: OpPlaceOrder,
		Message:   message,
	})
}

// Checkout places the order held by the flow on its review step and closes
// the flow on success. On failure the flow stays on review.
func (s *service) Checkout(ctx context.Context, acceptTerms bool) (*Order, error) {
	if s.flow == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout flow not configured")
	}
	s.flow.SetAcceptTerms(acceptTerms)
	draft, err := s.flow.ReadyDraft()
	if err != nil {
		return nil, err
	}
	order, err := s.PlaceOrder(ctx, draft)
	if err != nil {
		return nil, err
	}
	s.flow.Complete(ctx)
	return order, nil
}

// List returns the order log, oldest first.
func (s *service) List(ctx context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.read(ctx)
}

// OrderPage is one newest-first page of the order log.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// Page returns orders newest first, starting below the cursor.
func (s *service) Page(ctx context.Context, params pagination.Params) (*OrderPage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID > list[j].ID })

	limit := pagination.NormalizeLimit(params.Limit)
	out := make([]Order, 0, limit)
	page := &OrderPage{}
	for _, o := range list {
		if cursor != nil && o.ID >= cursor.ID {
			continue
		}
		if len(out) == limit {
			page.NextCursor = pagination.EncodeCursor(pagination.Cursor{ID: out[len(out)-1].ID})
			break
		}
		out = append(out, o)
	}
	page.Orders = out
	return page, nil
}

func (s *service) Get(ctx context.Context, id int64) (*Order, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}
