package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bookhaven/bookhaven-backend/api/responses"
	"github.com/bookhaven/bookhaven-backend/api/validators"
	"github.com/bookhaven/bookhaven-backend/internal/products"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// ProductList serves the public catalog with cursor pagination.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters := products.ListFilters{
			Query:      strings.TrimSpace(r.URL.Query().Get("q")),
			ListedOnly: true,
		}
		if raw := r.URL.Query().Get("category_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid category_id"))
				return
			}
			filters.CategoryID = &id
		}

		list, err := svc.List(r.Context(), pageParams(r), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ProductGet serves a single product page.
func ProductGet(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// CategoryList serves the category tree for browse filters.
func CategoryList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": categories})
	}
}

type createProductRequest struct {
	Title        string          `json:"title" validate:"required,max=300"`
	Author       string          `json:"author" validate:"max=200"`
	Description  *string         `json:"description" validate:"omitempty,max=5000"`
	CategoryID   uuid.UUID       `json:"category_id" validate:"required"`
	RegularPrice decimal.Decimal `json:"regular_price" validate:"required"`
	SalePrice    decimal.Decimal `json:"sale_price" validate:"required"`
	Stock        int             `json:"stock" validate:"min=0"`
	ImageURL     *string         `json:"image_url"`
	IsListed     bool            `json:"is_listed"`
}

// AdminProductCreate adds a product to the catalog.
func AdminProductCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateProduct(r.Context(), &models.Product{
			Title:        validators.SanitizeString(payload.Title, 300),
			Author:       validators.SanitizeString(payload.Author, 200),
			Description:  payload.Description,
			CategoryID:   payload.CategoryID,
			RegularPrice: payload.RegularPrice,
			SalePrice:    payload.SalePrice,
			Stock:        payload.Stock,
			ImageURL:     payload.ImageURL,
			IsListed:     payload.IsListed,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

type updateProductRequest struct {
	Title        *string          `json:"title" validate:"omitempty,max=300"`
	Author       *string          `json:"author" validate:"omitempty,max=200"`
	Description  *string          `json:"description" validate:"omitempty,max=5000"`
	RegularPrice *decimal.Decimal `json:"regular_price"`
	SalePrice    *decimal.Decimal `json:"sale_price"`
	Stock        *int             `json:"stock" validate:"omitempty,min=0"`
	ImageURL     *string          `json:"image_url"`
	IsListed     *bool            `json:"is_listed"`
}

// AdminProductUpdate patches catalog fields.
func AdminProductUpdate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updates := map[string]any{}
		if payload.Title != nil {
			updates["title"] = validators.SanitizeString(*payload.Title, 300)
		}
		if payload.Author != nil {
			updates["author"] = validators.SanitizeString(*payload.Author, 200)
		}
		if payload.Description != nil {
			updates["description"] = payload.Description
		}
		if payload.RegularPrice != nil {
			updates["regular_price"] = *payload.RegularPrice
		}
		if payload.SalePrice != nil {
			updates["sale_price"] = *payload.SalePrice
		}
		if payload.Stock != nil {
			updates["stock"] = *payload.Stock
		}
		if payload.ImageURL != nil {
			updates["image_url"] = payload.ImageURL
		}
		if payload.IsListed != nil {
			updates["is_listed"] = *payload.IsListed
		}
		if len(updates) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update"))
			return
		}

		updated, err := svc.UpdateProduct(r.Context(), id, updates)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// AdminProductDelete soft-deletes a product.
func AdminProductDelete(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteProduct(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// AdminCategoryCreate adds a browse category.
func AdminCategoryCreate(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCategoryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		created, err := svc.CreateCategory(r.Context(), &models.Category{
			Name: validators.SanitizeString(payload.Name, 120),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}
