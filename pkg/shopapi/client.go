package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/types"
)

const (
	defaultBaseURL              = "https://dummyjson.com"
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

// Operation names reported to the observer.
const (
	OpListProducts       = "list_products"
	OpProductsByCategory = "products_by_category"
	OpSearchProducts     = "search_products"
	OpProduct            = "product"
	OpCreateCart         = "cart_add"
	OpUpdateCart         = "cart_update"
)

// Observer receives the outcome of every remote call.
type Observer interface {
	ObserveUpstream(operation string, duration time.Duration, err error)
}

// Client wraps the remote catalog read API and the best-effort cart write API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	observer   Observer
	now        func() time.Time
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every request made by the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithObserver reports call durations and outcomes.
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient builds the shop API client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client
}

// CartProduct is one line in a cart write request.
type CartProduct struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
}

type createCartRequest struct {
	UserID   int           `json:"userId"`
	Products []CartProduct `json:"products"`
}

type updateCartRequest struct {
	Products []CartProduct `json:"products"`
}

// ListProducts fetches the default product listing.
func (c *Client) ListProducts(ctx context.Context) (*types.ProductPage, error) {
	var page types.ProductPage
	if err := c.do(ctx, OpListProducts, http.MethodGet, "products", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ProductsByCategory fetches the products in one category.
func (c *Client) ProductsByCategory(ctx context.Context, category string) (*types.ProductPage, error) {
	trimmed := strings.TrimSpace(category)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	var page types.ProductPage
	path := "products/category/" + url.PathEscape(trimmed)
	if err := c.do(ctx, OpProductsByCategory, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchProducts runs a free-text product search.
func (c *Client) SearchProducts(ctx context.Context, query string) (*types.ProductPage, error) {
	var page types.ProductPage
	path := "products/search?" + url.Values{"q": []string{query}}.Encode()
	if err := c.do(ctx, OpSearchProducts, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Product fetches a single product by id.
func (c *Client) Product(ctx context.Context, id int) (*types.Product, error) {
	var product types.Product
	path := "products/" + strconv.Itoa(id)
	if err := c.do(ctx, OpProduct, http.MethodGet, path, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateCart creates a remote cart holding products for userID.
func (c *Client) CreateCart(ctx context.Context, userID int, products []CartProduct) (*RemoteCart, error) {
	var cart RemoteCart
	body := createCartRequest{UserID: userID, Products: nonNil(products)}
	if err := c.do(ctx, OpCreateCart, http.MethodPost, "carts/add", body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpdateCart replaces the line items of an existing remote cart.
func (c *Client) UpdateCart(ctx context.Context, cartID int, products []CartProduct) (*RemoteCart, error) {
	var cart RemoteCart
	body := updateCartRequest{Products: nonNil(products)}
	path := "carts/" + strconv.Itoa(cartID)
	if err := c.do(ctx, OpUpdateCart, http.MethodPut, path, body, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) (err error) {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "shop api client not configured")
	}
	started := c.now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveUpstream(op, c.now().Sub(started), err)
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, marshalErr, fmt.Sprintf("marshal %s request", op))
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", op))
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNetwork, err, fmt.Sprintf("execute %s request", op))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		return pkgerrors.Wrap(pkgerrors.CodeHTTP, cause, fmt.Sprintf("%s request failed", op)).WithUpstreamStatus(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("decode %s response", op))
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func nonNil(products []CartProduct) []CartProduct {
	if products == nil {
		return []CartProduct{}
	}
	return products
}
