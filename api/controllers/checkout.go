package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopfront/storefront/api/responses"
	"github.com/shopfront/storefront/api/validators"
	"github.com/shopfront/storefront/internal/checkout"
	"github.com/shopfront/storefront/pkg/enums"
	pkgerrors "github.com/shopfront/storefront/pkg/errors"
	"github.com/shopfront/storefront/pkg/logger"
)

// CheckoutFlow is the checkout state machine driven by the HTTP surface.
type CheckoutFlow interface {
	Start(ctx context.Context) (checkout.State, error)
	State() checkout.State
	Update(ctx context.Context, fields map[string]string) (checkout.State, error)
	Submit(ctx context.Context, fields map[string]string) (checkout.State, checkout.ValidationResult, error)
	Back(ctx context.Context) (checkout.State, error)
	JumpTo(ctx context.Context, step enums.CheckoutStep) (checkout.State, error)
	Cancel(ctx context.Context) checkout.State
}

type jumpRequest struct {
	Step string `json:"step" validate:"required,oneof=shipping payment review"`
}

func CheckoutStart(flow CheckoutFlow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		state, err := flow.Start(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, state)
	}
}

func CheckoutFetch(flow CheckoutFlow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		responses.WriteSuccess(w, flow.State())
	}
}

func CheckoutCancel(flow CheckoutFlow) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		responses.WriteSuccess(w, flow.Cancel(r.Context()))
	}
}

// CheckoutUpdateFields merges form fields into the draft without validating.
func CheckoutUpdateFields(flow CheckoutFlow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		fields, err := validators.DecodeJSONFields(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := flow.Update(r.Context(), fields)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// CheckoutSubmit merges fields and advances. An invalid step answers 422 with
// the per-field messages in meta.
func CheckoutSubmit(flow CheckoutFlow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		fields, err := validators.DecodeJSONFields(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, result, err := flow.Submit(r.Context(), fields)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if !result.Valid {
			status = http.StatusUnprocessableEntity
		}
		responses.WriteSuccessMeta(w, status, state, result)
	}
}

func CheckoutBack(flow CheckoutFlow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		state, err := flow.Back(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

func CheckoutJump(flow CheckoutFlow, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if flow == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout unavailable"))
			return
		}
		var payload jumpRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		step, err := enums.ParseCheckoutStep(strings.ToLower(payload.Step))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout step"))
			return
		}
		state, err := flow.JumpTo(r.Context(), step)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}
