package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/multierr"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakeRetirer struct {
	retired int64
	err     error
	calls   int
}

func (f *fakeRetirer) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	return f.retired, f.err
}

func TestPromoExpiryRetiresBothKinds(t *testing.T) {
	offers := &fakeRetirer{retired: 2}
	coupons := &fakeRetirer{retired: 1}
	job, err := NewPromoExpiryJob(offers, coupons, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if offers.calls != 1 || coupons.calls != 1 {
		t.Fatalf("expected one call each, got offers=%d coupons=%d", offers.calls, coupons.calls)
	}
}

func TestPromoExpiryContinuesPastOfferFailure(t *testing.T) {
	offers := &fakeRetirer{err: errors.New("offers table locked")}
	coupons := &fakeRetirer{}
	job, err := NewPromoExpiryJob(offers, coupons, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected the offer failure to surface")
	}
	if coupons.calls != 1 {
		t.Fatal("coupon expiry should still run when offers fail")
	}
	if len(multierr.Errors(runErr)) != 1 {
		t.Fatalf("expected a single underlying error, got %v", runErr)
	}
}
