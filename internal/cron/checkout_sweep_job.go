package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

const consumedPendingRetention = 30 * 24 * time.Hour

type pendingPurger interface {
	PurgeStalePending(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// CheckoutSweepJob drops stale pending checkout records: expired ones the
// gateway never confirmed and consumed ones past the retention window.
type CheckoutSweepJob struct {
	logg  *logger.Logger
	repo  pendingPurger
	now   func() time.Time
	after time.Duration
}

// NewCheckoutSweepJob builds the pending checkout sweeper.
func NewCheckoutSweepJob(repo pendingPurger, logg *logger.Logger) (*CheckoutSweepJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &CheckoutSweepJob{
		logg:  logg,
		repo:  repo,
		now:   time.Now,
		after: consumedPendingRetention,
	}, nil
}

func (j *CheckoutSweepJob) Name() string { return "checkout_sweep" }

func (j *CheckoutSweepJob) Run(ctx context.Context) error {
	purged, err := j.repo.PurgeStalePending(ctx, j.now(), j.after)
	if err != nil {
		return fmt.Errorf("purge stale pending checkouts: %w", err)
	}
	if purged > 0 {
		j.logg.Info(j.logg.WithField(ctx, "purged", purged), "stale pending checkouts removed")
	}
	return nil
}
