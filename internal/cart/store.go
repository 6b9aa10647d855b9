package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopfront/storefront/internal/events"
	"github.com/shopfront/storefront/pkg/checkout"
	"github.com/shopfront/storefront/pkg/enums"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/kvstore"
	"github.com/shopfront/storefront/pkg/logger"
	"github.com/shopfront/storefront/pkg/metrics"
	"github.com/shopfront/storefront/pkg/shopapi"
	"github.com/shopfront/storefront/pkg/types"
)

// StorageKey is the durable record holding the current cart.
const StorageKey = "shopfront_cart"

// DefaultUserID is the demo user carts are created for.
const DefaultUserID = 1

const addFailedMessage = "Failed to add product to cart"

type remoteCarts interface {
	CreateCart(ctx context.Context, userID int, products []shopapi.CartProduct) (*shopapi.RemoteCart, error)
	UpdateCart(ctx context.Context, cartID int, products []shopapi.CartProduct) (*shopapi.RemoteCart, error)
}

type productLookup interface {
	Get(ctx context.Context, id int) (*types.Product, error)
}

type notifier interface {
	Publish(ctx context.Context, eventType enums.EventType, payload any) error
}

type syncRecorder interface {
	IncCartSync(result string)
}

// Options wires the cart store's collaborators. Store and Logger are required.
type Options struct {
	Store    kvstore.Store
	Logger   *logger.Logger
	Remote   remoteCarts
	Products productLookup
	Notifier notifier
	Metrics  syncRecorder
	Pricing  checkout.Pricing
	UserID   int
}

// ProductAdded is the payload of cart.product_added notifications.
type ProductAdded struct {
	ProductID     int    `json:"productId"`
	Title         string `json:"title"`
	Quantity      int    `json:"quantity"`
	TotalQuantity int    `json:"cartTotal"`
	Message       string `json:"message"`
}

// ProductRemoved is the payload of cart.product_removed notifications.
type ProductRemoved struct {
	ProductID     int    `json:"productId"`
	Title         string `json:"title"`
	TotalQuantity int    `json:"cartTotal"`
}

type pendingEvent struct {
	eventType enums.EventType
	payload   any
}

// Store owns the single cart. Mutations are serialized and each one runs to
// completion, remote sync included, before the next begins.
type Store struct {
	mu       sync.Mutex
	cart     Cart
	store    kvstore.Store
	logg     *logger.Logger
	remote   remoteCarts
	products productLookup
	notifier notifier
	metrics  syncRecorder
	pricing  checkout.Pricing
}

// NewStore restores the cart from durable storage, or starts empty when no
// well-formed record exists.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("kv store required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.UserID <= 0 {
		opts.UserID = DefaultUserID
	}
	if opts.Pricing.FreeShippingOver.IsZero() && opts.Pricing.ExpressFee.IsZero() {
		opts.Pricing = checkout.DefaultPricing()
	}
	s := &Store{
		store:    opts.Store,
		logg:     opts.Logger,
		remote:   opts.Remote,
		products: opts.Products,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		pricing:  opts.Pricing,
	}
	s.cart = s.load(ctx, opts.UserID)
	return s, nil
}

func (s *Store) load(ctx context.Context, userID int) Cart {
	raw, err := s.store.Get(ctx, StorageKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return emptyCart(userID)
	}
	if err != nil {
		s.logg.WarnErr(ctx, "error loading cart from storage", err)
		return emptyCart(userID)
	}

	var saved Cart
	if err := json.Unmarshal(raw, &saved); err != nil {
		s.logg.WarnErr(ctx, "discarding malformed saved cart", err)
		return emptyCart(userID)
	}
	seen := make(map[int]struct{}, len(saved.Items))
	for _, item := range saved.Items {
		if _, dup := seen[item.ProductID]; dup || !item.valid() {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", item.ProductID), "discarding saved cart with invalid line item")
			return emptyCart(userID)
		}
		seen[item.ProductID] = struct{}{}
	}
	if saved.Items == nil {
		saved.Items = []LineItem{}
	}
	if saved.UserID <= 0 {
		saved.UserID = userID
	}
	saved.recalculate()
	return saved
}

// AddItem adds quantity units of product, merging into an existing line for the same product.
func (s *Store) AddItem(ctx context.Context, product types.Product, quantity int) (Summary, error) {
	if quantity < 1 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if product.ID <= 0 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	s.mu.Lock()
	if idx := s.cart.indexOf(product.ID); idx >= 0 {
		s.cart.Items[idx].Quantity += quantity
		s.cart.Items[idx].reprice()
	} else {
		s.cart.Items = append(s.cart.Items, newLineItem(product, quantity))
	}
	summary := s.commitLocked(ctx)
	s.mu.Unlock()

	s.emit(ctx,
		pendingEvent{enums.EventCartChanged, summary},
		pendingEvent{enums.EventProductAdded, ProductAdded{
			ProductID:     product.ID,
			Title:         product.Title,
			Quantity:      quantity,
			TotalQuantity: summary.TotalQuantity,
			Message:       fmt.Sprintf("%s added to cart!", product.Title),
		}},
	)
	return summary, nil
}

// AddProductByID looks the product up in the catalog and adds it.
func (s *Store) AddProductByID(ctx context.Context, productID, quantity int) (Summary, error) {
	if s.products == nil {
		return Summary{}, pkgerrors.New(pkgerrors.CodeDependency, "product lookup not configured")
	}
	if quantity < 1 {
		return Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "product_id", productID), "error adding product to cart", err)
		s.emitFailed(ctx, "add_to_cart", addFailedMessage)
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) || pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			return Summary{}, err
		}
		return Summary{}, pkgerrors.Rephrase(err, addFailedMessage)
	}
	return s.AddItem(ctx, *product, quantity)
}

// RemoveItem deletes the line for productID. Missing products are a no-op.
func (s *Store) RemoveItem(ctx context.Context, productID int) (Summary, error) {
	s.mu.Lock()
	idx := s.cart.indexOf(productID)
	if idx < 0 {
		summary := s.summaryLocked()
		s.mu.Unlock()
		return summary, nil
	}
	removed := s.cart.Items[idx]
	s.cart.Items = append(s.cart.Items[:idx:idx], s.cart.Items[idx+1:]...)
	summary := s.commitLocked(ctx)
	s.mu.Unlock()

	s.emit(ctx,
		pendingEvent{enums.EventCartChanged, summary},
		pendingEvent{enums.EventProductRemoved, ProductRemoved{
			ProductID:     removed.ProductID,
			Title:         removed.Title,
			TotalQuantity: summary.TotalQuantity,
		}},
	)
	return summary, nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line; unknown products are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID, quantity int) (Summary, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	idx := s.cart.indexOf(productID)
	if idx < 0 {
		summary := s.summaryLocked()
		s.mu.Unlock()
		return summary, nil
	}
	s.cart.Items[idx].Quantity = quantity
	s.cart.Items[idx].reprice()
	summary := s.commitLocked(ctx)
	s.mu.Unlock()

	s.emit(ctx, pendingEvent{enums.EventCartChanged, summary})
	return summary, nil
}

// Clear empties the cart and synchronizes the empty list.
func (s *Store) Clear(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	s.cart.Items = []LineItem{}
	summary := s.commitLocked(ctx)
	s.mu.Unlock()

	s.emit(ctx,
		pendingEvent{enums.EventCartChanged, summary},
		pendingEvent{enums.EventCartCleared, summary},
	)
	return summary, nil
}

// CheckOut passes a snapshot of the cart to place and empties the cart once
// place succeeds. Other mutations wait until both have finished, so nothing
// added meanwhile is cleared without being ordered. place must not call back
// into the store.
func (s *Store) CheckOut(ctx context.Context, place func(snapshot Cart) error) (Summary, error) {
	s.mu.Lock()
	if err := place(s.cart.clone()); err != nil {
		s.mu.Unlock()
		return Summary{}, err
	}
	s.cart.Items = []LineItem{}
	summary := s.commitLocked(ctx)
	s.mu.Unlock()

	s.emit(ctx,
		pendingEvent{enums.EventCartChanged, summary},
		pendingEvent{enums.EventCartCleared, summary},
	)
	return summary, nil
}

// Summary returns the current totals and items.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

// Snapshot returns a copy of the full cart document.
func (s *Store) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.clone()
}

// IsEmpty reports whether the cart has no line items.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cart.Items) == 0
}

// Item returns the line for productID.
func (s *Store) Item(productID int) (LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.cart.indexOf(productID)
	if idx < 0 {
		return LineItem{}, false
	}
	return s.cart.Items[idx], true
}

// commitLocked synchronizes totals, persists the cart and returns the new summary.
func (s *Store) commitLocked(ctx context.Context) Summary {
	s.syncLocked(ctx)
	s.persistLocked(ctx)
	return s.summaryLocked()
}

// syncLocked mirrors the line items to the remote cart, falling back to a
// local computation on any failure.
func (s *Store) syncLocked(ctx context.Context) {
	if s.remote == nil {
		s.cart.computeLocally()
		s.recordSync(metrics.CartSyncDisabled)
		return
	}

	products := s.cart.remoteProducts()
	var (
		remote *shopapi.RemoteCart
		err    error
	)
	if s.cart.ID == nil {
		remote, err = s.remote.CreateCart(ctx, s.cart.UserID, products)
	} else {
		remote, err = s.remote.UpdateCart(ctx, *s.cart.ID, products)
	}
	if err == nil && remote == nil {
		err = errors.New("empty remote cart response")
	}
	if err != nil {
		logCtx := ctx
		if s.cart.ID != nil {
			logCtx = s.logg.WithCartID(ctx, *s.cart.ID)
		}
		s.logg.WarnErr(logCtx, "remote cart sync failed, computing totals locally", err)
		s.cart.computeLocally()
		s.recordSync(metrics.CartSyncFallback)
		return
	}
	s.cart.adoptRemote(remote)
	s.recordSync(metrics.CartSyncRemote)
}

func (s *Store) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.cart)
	if err != nil {
		s.logg.Error(ctx, "error encoding cart", err)
		return
	}
	if err := s.store.Set(ctx, StorageKey, raw); err != nil {
		s.logg.Error(ctx, "error saving cart to storage", err)
	}
}

func (s *Store) summaryLocked() Summary {
	snapshot := s.cart.clone()
	return Summary{
		Items:                 snapshot.Items,
		TotalProducts:         snapshot.TotalProducts,
		TotalQuantity:         snapshot.TotalQuantity,
		Subtotal:              snapshot.Subtotal,
		DiscountedTotal:       snapshot.DiscountedTotal,
		LocallyComputed:       snapshot.LocallyComputed,
		IsEmpty:               len(snapshot.Items) == 0,
		FreeShippingRemaining: s.pricing.RemainingForFreeShipping(snapshot.Subtotal),
	}
}

func (s *Store) recordSync(result string) {
	if s.metrics != nil {
		s.metrics.IncCartSync(result)
	}
}

func (s *Store) emit(ctx context.Context, pending ...pendingEvent) {
	if s.notifier == nil {
		return
	}
	for _, e := range pending {
		_ = s.notifier.Publish(ctx, e.eventType, e.payload)
	}
}

func (s *Store) emitFailed(ctx context.Context, operation, message string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Publish(ctx, enums.EventOperationFailed, events.OperationFailed{
		Operation: operation,
		Message:   message,
	})
}
