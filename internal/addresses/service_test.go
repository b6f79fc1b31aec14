package addresses

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakeRepo struct {
	addresses map[uuid.UUID]*models.Address
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var out []models.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	if a, ok := f.addresses[id]; ok {
		clone := *a
		return &clone, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) Create(ctx context.Context, address *models.Address) (*models.Address, error) {
	address.ID = uuid.New()
	f.addresses[address.ID] = address
	return address, nil
}

func (f *fakeRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	a, ok := f.addresses[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range updates {
		switch k {
		case "full_name":
			a.FullName = v.(string)
		case "phone":
			a.Phone = v.(string)
		case "line1":
			a.Line1 = v.(string)
		case "line2":
			a.Line2, _ = v.(*string)
		case "city":
			a.City = v.(string)
		case "state":
			a.State = v.(string)
		case "postal_code":
			a.PostalCode = v.(string)
		case "country":
			a.Country = v.(string)
		case "is_default":
			a.IsDefault = v.(bool)
		}
	}
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.addresses, id)
	return nil
}

func (f *fakeRepo) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	for _, a := range f.addresses {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
	return nil
}

func newAddressService(t *testing.T) (Service, *fakeRepo) {
	t.Helper()
	repo := &fakeRepo{addresses: make(map[uuid.UUID]*models.Address)}
	svc, err := NewService(repo, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func sample(isDefault bool) CreateAddressInput {
	return CreateAddressInput{
		FullName:   "A Reader",
		Phone:      "9999999999",
		Line1:      "12 Book Lane",
		City:       "Pune",
		State:      "MH",
		PostalCode: "411001",
		IsDefault:  isDefault,
	}
}

func TestCreateDefaultsCountryAndDemotesPrevious(t *testing.T) {
	svc, _ := newAddressService(t)
	userID := uuid.New()
	ctx := context.Background()

	first, err := svc.Create(ctx, userID, sample(true))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Country != "IN" {
		t.Fatalf("expected country default IN, got %s", first.Country)
	}

	second, err := svc.Create(ctx, userID, sample(true))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !second.IsDefault {
		t.Fatal("new address must be the default")
	}

	all, err := svc.List(ctx, userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defaults := 0
	for _, a := range all {
		if a.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func TestSnapshotFreezesFields(t *testing.T) {
	svc, _ := newAddressService(t)
	userID := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, sample(false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	snap, err := svc.Snapshot(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.FullName != "A Reader" || snap.City != "Pune" || snap.PostalCode != "411001" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestForeignAddressHidden(t *testing.T) {
	svc, _ := newAddressService(t)
	owner := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, owner, sample(false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Snapshot(ctx, uuid.New(), created.ID)
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign user, got %v", err)
	}

	if err := svc.Delete(ctx, uuid.New(), created.ID); pkgerrors.As(err) == nil {
		t.Fatal("foreign delete must be rejected")
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	svc, _ := newAddressService(t)
	userID := uuid.New()
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, sample(false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	input := sample(false)
	input.City = "Mumbai"
	updated, err := svc.Update(ctx, userID, created.ID, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.City != "Mumbai" {
		t.Fatalf("expected updated city, got %s", updated.City)
	}
}
