package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type catalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service manages the single active cart per user. Quantities are capped
// per product and by live stock, and every mutation refreshes the stored
// price snapshot so checkout never quotes a stale number.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalog
	cfg     config.CheckoutConfig
	logg    *logger.Logger
}

// NewService builds the cart service with the required dependencies.
func NewService(repo Repository, products catalog, cfg config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: products, cfg: cfg, logg: logg}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.getOrCreate(ctx, userID)
}

func (s *service) getOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindActiveByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	created, err := s.repo.Create(ctx, &models.Cart{UserID: userID, Status: enums.CartStatusActive})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// AddItem puts quantity of a product in the cart, coalescing with any
// existing row for the same product.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Purchasable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	total := quantity
	if existing != nil {
		total += existing.Quantity
	}
	if err := s.checkQuantity(product, total); err != nil {
		return nil, err
	}

	if existing != nil {
		err = s.repo.UpdateItem(ctx, existing.ID, map[string]any{
			"quantity":          total,
			"price_at_addition": product.SalePrice,
		})
	} else {
		err = s.repo.CreateItem(ctx, &models.CartItem{
			CartID:          cart.ID,
			ProductID:       productID,
			Quantity:        total,
			PriceAtAddition: product.SalePrice,
		})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return s.getOrCreate(ctx, userID)
}

// UpdateItemQuantity sets an absolute quantity; zero removes the row.
func (s *service) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.checkQuantity(product, quantity); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItem(ctx, item.ID, map[string]any{
		"quantity":          quantity,
		"price_at_addition": product.SalePrice,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.getOrCreate(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	cart, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, cart.ID, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.getOrCreate(ctx, userID)
}

// MarkConverted retires the cart once checkout turned it into an order.
// The next GetCart call starts a fresh one.
func (s *service) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if err := s.repo.WithTx(tx).UpdateStatus(ctx, cartID, enums.CartStatusConverted); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark cart converted")
	}
	return nil
}

func (s *service) checkQuantity(product *models.Product, quantity int) error {
	if s.cfg.MaxQtyPerProduct > 0 && quantity > s.cfg.MaxQtyPerProduct {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("at most %d units of a product per order", s.cfg.MaxQtyPerProduct))
	}
	if quantity > product.Stock {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("only %d units of %s in stock", product.Stock, product.Title))
	}
	return nil
}
