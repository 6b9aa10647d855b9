package controllers

import (
	"net/http"

	"github.com/shopfront/storefront/api/responses"
	"github.com/shopfront/storefront/api/validators"
	"github.com/shopfront/storefront/internal/catalog"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/logger"
)

// CatalogProducts lists products. ?q= searches and ?category= filters;
// without either the full listing is returned.
func CatalogProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		query := r.URL.Query()
		var (
			listing *catalog.Listing
			err     error
		)
		switch {
		case query.Has("q"):
			listing, err = svc.Search(r.Context(), validators.SanitizeString(query.Get("q"), validators.MaxQueryLength))
		case query.Has("category"):
			listing, err = svc.ListByCategory(r.Context(), validators.SanitizeString(query.Get("category"), validators.MaxQueryLength))
		default:
			listing, err = svc.ListAll(r.Context())
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// CatalogProduct returns one product with its detail heading.
func CatalogProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}

		id, err := validators.ParsePathInt(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.Detail(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, productDetailResponse{Title: listing.Title, Product: listing.Products[0]})
	}
}

func CatalogCategories(svc catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.FeaturedCategories())
	}
}

type productDetailResponse struct {
	Title   string `json:"title"`
	Product any    `json:"product"`
}
