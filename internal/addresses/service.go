package addresses

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/types"
)

// CreateAddressInput carries a new shipping address.
type CreateAddressInput struct {
	FullName   string  `json:"full_name" validate:"required,max=120"`
	Phone      string  `json:"phone" validate:"required,max=20"`
	Line1      string  `json:"line1" validate:"required,max=200"`
	Line2      *string `json:"line2" validate:"omitempty,max=200"`
	City       string  `json:"city" validate:"required,max=80"`
	State      string  `json:"state" validate:"required,max=80"`
	PostalCode string  `json:"postal_code" validate:"required,max=12"`
	Country    string  `json:"country" validate:"omitempty,len=2"`
	IsDefault  bool    `json:"is_default"`
}

// Service manages a user's address book and produces the frozen copy
// orders carry.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateAddressInput) (*models.Address, error)
	Update(ctx context.Context, userID, addressID uuid.UUID, input CreateAddressInput) (*models.Address, error)
	Delete(ctx context.Context, userID, addressID uuid.UUID) error
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the address service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	addresses, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addresses, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateAddressInput) (*models.Address, error) {
	if input.IsDefault {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
	}
	address := &models.Address{
		UserID:     userID,
		FullName:   input.FullName,
		Phone:      input.Phone,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    country(input.Country),
		IsDefault:  input.IsDefault,
	}
	created, err := s.repo.Create(ctx, address)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, userID, addressID uuid.UUID, input CreateAddressInput) (*models.Address, error) {
	if _, err := s.load(ctx, userID, addressID); err != nil {
		return nil, err
	}
	if input.IsDefault {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
		}
	}
	updates := map[string]any{
		"full_name":   input.FullName,
		"phone":       input.Phone,
		"line1":       input.Line1,
		"line2":       input.Line2,
		"city":        input.City,
		"state":       input.State,
		"postal_code": input.PostalCode,
		"country":     country(input.Country),
		"is_default":  input.IsDefault,
	}
	if err := s.repo.Update(ctx, addressID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
	}
	return s.load(ctx, userID, addressID)
}

func (s *service) Delete(ctx context.Context, userID, addressID uuid.UUID) error {
	if _, err := s.load(ctx, userID, addressID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, addressID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return nil
}

// Snapshot freezes the address for storage on an order.
func (s *service) Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error) {
	address, err := s.load(ctx, userID, addressID)
	if err != nil {
		return types.AddressSnapshot{}, err
	}
	return address.Snapshot(), nil
}

// load fetches the address and hides rows owned by other users.
func (s *service) load(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	address, err := s.repo.FindByID(ctx, addressID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	if address.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}
	return address, nil
}

func country(code string) string {
	if code == "" {
		return "IN"
	}
	return code
}
