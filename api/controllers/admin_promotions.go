package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven-backend/api/responses"
	"github.com/bookhaven/bookhaven-backend/api/validators"
	couponsvc "github.com/bookhaven/bookhaven-backend/internal/coupons"
	offersvc "github.com/bookhaven/bookhaven-backend/internal/offers"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	dbtypes "github.com/bookhaven/bookhaven-backend/pkg/db/types"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type createOfferRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Scope       string          `json:"scope" validate:"required"`
	Kind        string          `json:"kind" validate:"required"`
	Value       decimal.Decimal `json:"value" validate:"required"`
	Active      bool            `json:"active"`
	StartsAt    time.Time       `json:"starts_at" validate:"required"`
	EndsAt      time.Time       `json:"ends_at" validate:"required"`
	ProductIDs  []uuid.UUID     `json:"product_ids"`
	CategoryIDs []uuid.UUID     `json:"category_ids"`
}

// AdminOfferCreate registers a product or category offer.
func AdminOfferCreate(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createOfferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := enums.ParseOfferScope(payload.Scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid scope"))
			return
		}
		kind, err := enums.ParseDiscountKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}

		created, err := svc.CreateOffer(r.Context(), &models.Offer{
			Title:       validators.SanitizeString(payload.Title, 200),
			Scope:       scope,
			Kind:        kind,
			Value:       payload.Value,
			Active:      payload.Active,
			StartsAt:    payload.StartsAt,
			EndsAt:      payload.EndsAt,
			ProductIDs:  dbtypes.UUIDArray(payload.ProductIDs),
			CategoryIDs: dbtypes.UUIDArray(payload.CategoryIDs),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// AdminOfferList returns all offers for the back office.
func AdminOfferList(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offers, err := svc.ListOffers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"offers": offers})
	}
}

type updateOfferRequest struct {
	Title  *string          `json:"title" validate:"omitempty,max=200"`
	Value  *decimal.Decimal `json:"value"`
	Active *bool            `json:"active"`
	EndsAt *time.Time       `json:"ends_at"`
}

// AdminOfferUpdate patches an offer's tuning fields.
func AdminOfferUpdate(svc offersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateOfferRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := map[string]any{}
		if payload.Title != nil {
			updates["title"] = validators.SanitizeString(*payload.Title, 200)
		}
		if payload.Value != nil {
			updates["value"] = *payload.Value
		}
		if payload.Active != nil {
			updates["active"] = *payload.Active
		}
		if payload.EndsAt != nil {
			updates["ends_at"] = *payload.EndsAt
		}
		if len(updates) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}
		if err := svc.UpdateOffer(r.Context(), id, updates); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "updated"})
	}
}

type createCouponRequest struct {
	Code           string           `json:"code" validate:"required,max=40"`
	Kind           string           `json:"kind" validate:"required"`
	Value          decimal.Decimal  `json:"value" validate:"required"`
	MaxDiscount    *decimal.Decimal `json:"max_discount"`
	MinOrderAmount decimal.Decimal  `json:"min_order_amount"`
	Active         bool             `json:"active"`
	StartsAt       time.Time        `json:"starts_at" validate:"required"`
	ExpiresAt      time.Time        `json:"expires_at" validate:"required"`
	UsageLimit     int              `json:"usage_limit" validate:"min=0"`
	PerUserLimit   int              `json:"per_user_limit" validate:"min=0"`
	ProductIDs     []uuid.UUID      `json:"product_ids"`
	CategoryIDs    []uuid.UUID      `json:"category_ids"`
}

// AdminCouponCreate registers a coupon code.
func AdminCouponCreate(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseDiscountKind(payload.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}

		created, err := svc.CreateCoupon(r.Context(), &models.Coupon{
			Code:           strings.ToUpper(strings.TrimSpace(payload.Code)),
			Kind:           kind,
			Value:          payload.Value,
			MaxDiscount:    payload.MaxDiscount,
			MinOrderAmount: payload.MinOrderAmount,
			Active:         payload.Active,
			StartsAt:       payload.StartsAt,
			ExpiresAt:      payload.ExpiresAt,
			UsageLimit:     payload.UsageLimit,
			PerUserLimit:   payload.PerUserLimit,
			ProductIDs:     dbtypes.UUIDArray(payload.ProductIDs),
			CategoryIDs:    dbtypes.UUIDArray(payload.CategoryIDs),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// AdminCouponList returns all coupons with their usage counters.
func AdminCouponList(svc couponsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coupons, err := svc.ListCoupons(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"coupons": coupons})
	}
}
