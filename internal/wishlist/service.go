package wishlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type catalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type cartAdder interface {
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error)
}

// Service manages a user's saved-for-later products.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	MoveToCart(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo    Repository
	catalog catalog
	cart    cartAdder
	logg    *logger.Logger
}

// NewService builds the wishlist service.
func NewService(repo Repository, cat catalog, cart cartAdder, logg *logger.Logger) (Service, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("wishlist repository required")
	case cat == nil:
		return nil, fmt.Errorf("product catalog required")
	case cart == nil:
		return nil, fmt.Errorf("cart service required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: cat, cart: cart, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wishlist")
	}
	return items, nil
}

// Add saves a product. Re-adding an already-saved product is a no-op.
func (s *service) Add(ctx context.Context, userID, productID uuid.UUID) error {
	product, err := s.catalog.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Purchasable() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	if _, err := s.repo.Find(ctx, userID, productID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check wishlist")
	}

	item := &models.WishlistItem{UserID: userID, ProductID: productID}
	if err := s.repo.Create(ctx, item); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save wishlist item")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	return nil
}

// MoveToCart adds one unit to the cart and drops the wishlist row. The
// row stays put when the cart rejects the product.
func (s *service) MoveToCart(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	if _, err := s.repo.Find(ctx, userID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wishlist item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist item")
	}

	cart, err := s.cart.AddItem(ctx, userID, productID, 1)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, userID, productID); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "failed to drop wishlist row after move to cart", err)
	}
	return cart, nil
}
