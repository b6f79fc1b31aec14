package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
)

// maxWindow bounds a single report query.
const maxWindow = 366 * 24 * time.Hour

// SalesSummary is the admin sales report for a window.
type SalesSummary struct {
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	OrderCount     int64           `json:"order_count"`
	Gross          decimal.Decimal `json:"gross"`
	OfferDiscount  decimal.Decimal `json:"offer_discount"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	TotalDiscount  decimal.Decimal `json:"total_discount"`
	Net            decimal.Decimal `json:"net"`
	Refunded       decimal.Decimal `json:"refunded"`
	Days           []DailySales    `json:"days"`
}

// DailySales is one day of the series.
type DailySales struct {
	Day        string          `json:"day"`
	OrderCount int64           `json:"order_count"`
	Net        decimal.Decimal `json:"net"`
}

// Service produces back-office sales reports.
type Service interface {
	SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the reports service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// SalesSummary aggregates non-cancelled orders placed in [from, to).
func (s *service) SalesSummary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	if !to.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report window must end after it starts")
	}
	if to.Sub(from) > maxWindow {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report window is limited to one year")
	}

	row, err := s.repo.SummarizeSales(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize sales")
	}
	days, err := s.repo.SalesByDay(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales by day")
	}

	summary := &SalesSummary{
		From:           from,
		To:             to,
		OrderCount:     row.OrderCount,
		Gross:          row.Gross,
		OfferDiscount:  row.OfferDiscount,
		CouponDiscount: row.CouponDiscount,
		TotalDiscount:  row.OfferDiscount.Add(row.CouponDiscount),
		Net:            row.Net,
		Refunded:       row.Refunded,
		Days:           make([]DailySales, 0, len(days)),
	}
	for _, d := range days {
		summary.Days = append(summary.Days, DailySales{
			Day:        d.Day.Format("2006-01-02"),
			OrderCount: d.OrderCount,
			Net:        d.Net,
		})
	}
	return summary, nil
}
