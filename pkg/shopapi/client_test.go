package shopapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/shopfront/storefront/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(rt roundTripFunc, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL("http://shop.test/"), WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	return NewClient(opts...)
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) ObserveUpstream(op string, _ time.Duration, err error) {
	r.ops = append(r.ops, op)
	r.errs = append(r.errs, err)
}

func TestClientSearchProducts(t *testing.T) {
	var capturedURL string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		return jsonResponse(http.StatusOK, `{"products":[{"id":7,"title":"Phone","price":20,"discountPercentage":12.5,"stock":3}],"total":1,"skip":0,"limit":30}`), nil
	})

	page, err := client.SearchProducts(context.Background(), "smart phone")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if capturedURL != "http://shop.test/products/search?q=smart+phone" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if page.Total != 1 || len(page.Products) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if !page.Products[0].Price.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected price %s", page.Products[0].Price)
	}
}

func TestClientProductsByCategoryEscapesPath(t *testing.T) {
	var capturedPath string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		capturedPath = req.URL.EscapedPath()
		return jsonResponse(http.StatusOK, `{"products":[],"total":0,"skip":0,"limit":0}`), nil
	})

	if _, err := client.ProductsByCategory(context.Background(), "home-decoration"); err != nil {
		t.Fatalf("category: %v", err)
	}
	if capturedPath != "/products/category/home-decoration" {
		t.Fatalf("unexpected path %q", capturedPath)
	}

	if _, err := client.ProductsByCategory(context.Background(), "  "); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for blank category, got %v", err)
	}
}

func TestClientNon2xxIsHTTPError(t *testing.T) {
	observer := &recordingObserver{}
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"message":"Product with id '999' not found"}`), nil
	}, WithObserver(observer))

	_, err := client.Product(context.Background(), 999)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeHTTP {
		t.Fatalf("expected HTTP_ERROR, got %v", err)
	}
	if typed.UpstreamStatus() != http.StatusNotFound {
		t.Fatalf("expected upstream status 404, got %d", typed.UpstreamStatus())
	}
	if len(observer.ops) != 1 || observer.ops[0] != OpProduct || observer.errs[0] == nil {
		t.Fatalf("observer not notified correctly: %+v", observer)
	}
}

func TestClientTransportFailureIsNetworkError(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := client.ListProducts(context.Background())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNetwork) {
		t.Fatalf("expected NETWORK_ERROR, got %v", err)
	}
}

func TestClientUndecodableBodyIsDependencyError(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `<html>`), nil
	})

	_, err := client.ListProducts(context.Background())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}

func TestClientCreateCartRequest(t *testing.T) {
	var method, path string
	var payload map[string]any
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		method = req.Method
		path = req.URL.Path
		if req.Header.Get("Content-Type") != "application/json" {
			t.Fatalf("missing content type")
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return jsonResponse(http.StatusCreated, `{"id":51,"products":[{"id":7,"title":"Phone","price":20,"quantity":2,"total":40,"discountPercentage":10,"discountedTotal":36}],"total":40,"discountedTotal":36,"userId":1,"totalProducts":1,"totalQuantity":2}`), nil
	})

	cart, err := client.CreateCart(context.Background(), 1, []CartProduct{{ID: 7, Quantity: 2}})
	if err != nil {
		t.Fatalf("create cart: %v", err)
	}
	if method != http.MethodPost || path != "/carts/add" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if payload["userId"] != float64(1) {
		t.Fatalf("unexpected userId %v", payload["userId"])
	}
	products, ok := payload["products"].([]any)
	if !ok || len(products) != 1 {
		t.Fatalf("unexpected products %v", payload["products"])
	}
	if cart.ID != 51 || cart.TotalQuantity != 2 || !cart.DiscountedTotal.Equal(decimal.NewFromInt(36)) {
		t.Fatalf("unexpected cart %+v", cart)
	}
}

func TestClientUpdateCartSendsEmptyList(t *testing.T) {
	var method, path, body string
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		method = req.Method
		path = req.URL.Path
		raw, _ := io.ReadAll(req.Body)
		body = string(raw)
		return jsonResponse(http.StatusOK, `{"id":51,"products":[],"total":0,"discountedTotal":0,"userId":1,"totalProducts":0,"totalQuantity":0}`), nil
	})

	if _, err := client.UpdateCart(context.Background(), 51, nil); err != nil {
		t.Fatalf("update cart: %v", err)
	}
	if method != http.MethodPut || path != "/carts/51" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if body != `{"products":[]}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestClientHonorsContextCancellation(t *testing.T) {
	client := newTestClient(func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ListProducts(ctx); !pkgerrors.HasCode(err, pkgerrors.CodeNetwork) {
		t.Fatalf("expected NETWORK_ERROR on cancelled context, got %v", err)
	}
}
