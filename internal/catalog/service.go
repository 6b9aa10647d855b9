package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopfront/storefront/pkg/config"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/logger"
	"github.com/shopfront/storefront/pkg/shopapi"
	"github.com/shopfront/storefront/pkg/types"
)

const (
	allProductsTitle    = "All Products"
	productDetailsTitle = "Product Details"
)

// Operation labels used for metrics and logs.
const (
	OpListAll        = "list_all"
	OpListByCategory = "list_by_category"
	OpSearch         = "search"
	OpGet            = "get"
)

type productSource interface {
	ListProducts(ctx context.Context) (*types.ProductPage, error)
	ProductsByCategory(ctx context.Context, category string) (*types.ProductPage, error)
	SearchProducts(ctx context.Context, query string) (*types.ProductPage, error)
	Product(ctx context.Context, id int) (*types.Product, error)
}

type requestRecorder interface {
	IncCatalogRequest(operation string, err error)
}

// Listing is a display-limited page of products with its heading.
type Listing struct {
	Title    string          `json:"title"`
	Products []types.Product `json:"products"`
	Showing  int             `json:"showing"`
	Total    int             `json:"total"`
}

// Category is a browsable product category.
type Category struct {
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// Service exposes the catalog read operations used by the storefront.
type Service interface {
	ListAll(ctx context.Context) (*Listing, error)
	ListByCategory(ctx context.Context, category string) (*Listing, error)
	Search(ctx context.Context, query string) (*Listing, error)
	Get(ctx context.Context, id int) (*types.Product, error)
	Detail(ctx context.Context, id int) (*Listing, error)
	FeaturedCategories() []Category
}

type service struct {
	source   productSource
	cfg      config.CatalogConfig
	logg     *logger.Logger
	recorder requestRecorder
}

// NewService builds a catalog service over the remote product source.
func NewService(source productSource, cfg config.CatalogConfig, logg *logger.Logger, recorder requestRecorder) (Service, error) {
	if source == nil {
		return nil, fmt.Errorf("product source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		source:   source,
		cfg:      cfg,
		logg:     logg,
		recorder: recorder,
	}, nil
}

func (s *service) ListAll(ctx context.Context) (*Listing, error) {
	page, err := s.source.ListProducts(ctx)
	s.record(OpListAll, err)
	if err != nil {
		s.logg.Error(ctx, "error loading products", err)
		return nil, pkgerrors.Rephrase(err, "Failed to load products")
	}
	return newListing(allProductsTitle, page, s.cfg.AllProductsLimit), nil
}

func (s *service) ListByCategory(ctx context.Context, category string) (*Listing, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	page, err := s.source.ProductsByCategory(ctx, category)
	s.record(OpListByCategory, err)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "category", category), "error loading category products", err)
		return nil, pkgerrors.Rephrase(err, fmt.Sprintf("Failed to load %s products", category))
	}
	return newListing(FormatCategoryTitle(category), page, s.cfg.CategoryLimit), nil
}

func (s *service) Search(ctx context.Context, query string) (*Listing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	page, err := s.source.SearchProducts(ctx, query)
	s.record(OpSearch, err)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "query", query), "search error", err)
		return nil, pkgerrors.Rephrase(err, "Search failed. Please try again.")
	}
	return newListing(fmt.Sprintf(`Search: "%s"`, query), page, s.cfg.SearchLimit), nil
}

func (s *service) Get(ctx context.Context, id int) (*types.Product, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	product, err := s.source.Product(ctx, id)
	s.record(OpGet, err)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "product_id", id), "error loading product", err)
		if typed := pkgerrors.As(err); typed != nil && typed.UpstreamStatus() == http.StatusNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
		}
		return nil, pkgerrors.Rephrase(err, "Failed to load product")
	}
	return product, nil
}

func (s *service) Detail(ctx context.Context, id int) (*Listing, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	title := product.Title
	if title == "" {
		title = productDetailsTitle
	}
	return &Listing{
		Title:    title,
		Products: []types.Product{*product},
		Showing:  1,
		Total:    1,
	}, nil
}

func (s *service) FeaturedCategories() []Category {
	out := make([]Category, 0, len(s.cfg.FeaturedCategories))
	for _, slug := range s.cfg.FeaturedCategories {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			continue
		}
		out = append(out, Category{Slug: slug, Title: FormatCategoryTitle(slug)})
	}
	return out
}

func (s *service) record(op string, err error) {
	if s.recorder != nil {
		s.recorder.IncCatalogRequest(op, err)
	}
}

func newListing(title string, page *types.ProductPage, limit int) *Listing {
	products := page.Products
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	if products == nil {
		products = []types.Product{}
	}
	return &Listing{
		Title:    title,
		Products: products,
		Showing:  len(products),
		Total:    page.Total,
	}
}

// FormatCategoryTitle upper-cases the first letter and turns the first hyphen into a space.
func FormatCategoryTitle(category string) string {
	if category == "" {
		return ""
	}
	title := strings.ToUpper(category[:1]) + category[1:]
	return strings.Replace(title, "-", " ", 1)
}

var _ productSource = (*shopapi.Client)(nil)
