package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakePurger struct {
	purged    int64
	err       error
	gotNow    time.Time
	gotWindow time.Duration
}

func (f *fakePurger) PurgeStalePending(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	f.gotNow = now
	f.gotWindow = retention
	return f.purged, f.err
}

func TestCheckoutSweepPurges(t *testing.T) {
	purger := &fakePurger{purged: 3}
	job, err := NewCheckoutSweepJob(purger, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	at := time.Date(2026, 8, 31, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return at }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !purger.gotNow.Equal(at) {
		t.Fatalf("expected purge cutoff %v, got %v", at, purger.gotNow)
	}
	if purger.gotWindow != consumedPendingRetention {
		t.Fatalf("expected retention %v, got %v", consumedPendingRetention, purger.gotWindow)
	}
}

func TestCheckoutSweepSurfacesError(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	job, err := NewCheckoutSweepJob(purger, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error when purge fails")
	}
}
