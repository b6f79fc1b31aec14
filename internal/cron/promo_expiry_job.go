package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type offerRetirer interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type couponRetirer interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// PromoExpiryJob flips expired offers and coupons to inactive so the
// pricing engine stops loading them as candidates.
type PromoExpiryJob struct {
	logg    *logger.Logger
	offers  offerRetirer
	coupons couponRetirer
	now     func() time.Time
}

// NewPromoExpiryJob builds the promotion expiry job.
func NewPromoExpiryJob(offers offerRetirer, coupons couponRetirer, logg *logger.Logger) (*PromoExpiryJob, error) {
	switch {
	case offers == nil:
		return nil, fmt.Errorf("offer repository required")
	case coupons == nil:
		return nil, fmt.Errorf("coupon repository required")
	case logg == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &PromoExpiryJob{
		logg:    logg,
		offers:  offers,
		coupons: coupons,
		now:     time.Now,
	}, nil
}

func (j *PromoExpiryJob) Name() string { return "promo_expiry" }

// Run retires both promotion kinds even if one side fails.
func (j *PromoExpiryJob) Run(ctx context.Context) error {
	now := j.now()
	var errs error

	retiredOffers, err := j.offers.DeactivateExpired(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("deactivate expired offers: %w", err))
	}
	retiredCoupons, err := j.coupons.DeactivateExpired(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("deactivate expired coupons: %w", err))
	}
	if errs != nil {
		return errs
	}

	if retiredOffers > 0 || retiredCoupons > 0 {
		ctx = j.logg.WithFields(ctx, map[string]any{
			"offers":  retiredOffers,
			"coupons": retiredCoupons,
		})
		j.logg.Info(ctx, "expired promotions retired")
	}
	return nil
}
