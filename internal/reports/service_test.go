package reports

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

type fakeRepo struct {
	summary *SummaryRow
	days    []DayRow
}

func (f *fakeRepo) SummarizeSales(ctx context.Context, from, to time.Time) (*SummaryRow, error) {
	return f.summary, nil
}

func (f *fakeRepo) SalesByDay(ctx context.Context, from, to time.Time) ([]DayRow, error) {
	return f.days, nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSalesSummaryAssemblesReport(t *testing.T) {
	repo := &fakeRepo{
		summary: &SummaryRow{
			OrderCount:     3,
			Gross:          dec("3000.00"),
			OfferDiscount:  dec("300.00"),
			CouponDiscount: dec("150.00"),
			Net:            dec("2550.00"),
			Refunded:       dec("407.14"),
		},
		days: []DayRow{
			{Day: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), OrderCount: 2, Net: dec("1700.00")},
			{Day: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), OrderCount: 1, Net: dec("850.00")},
		},
	}
	svc, err := NewService(repo, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	report, err := svc.SalesSummary(context.Background(), from, to)
	if err != nil {
		t.Fatalf("sales summary: %v", err)
	}
	if !report.TotalDiscount.Equal(dec("450.00")) {
		t.Fatalf("expected total discount 450.00, got %s", report.TotalDiscount)
	}
	if len(report.Days) != 2 || report.Days[0].Day != "2026-08-30" {
		t.Fatalf("unexpected day series %+v", report.Days)
	}
	if report.OrderCount != 3 || !report.Refunded.Equal(dec("407.14")) {
		t.Fatalf("unexpected totals %+v", report)
	}
}

func TestSalesSummaryWindowValidation(t *testing.T) {
	svc, err := NewService(&fakeRepo{summary: &SummaryRow{}}, logger.New(logger.Options{}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	now := time.Now()

	_, err = svc.SalesSummary(context.Background(), now, now)
	if de := pkgerrors.As(err); de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected empty-window rejection, got %v", err)
	}

	_, err = svc.SalesSummary(context.Background(), now.AddDate(-2, 0, 0), now)
	if de := pkgerrors.As(err); de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected oversized-window rejection, got %v", err)
	}
}
