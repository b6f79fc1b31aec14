package reports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const salesSummarySQL = `
SELECT
  COUNT(*) AS order_count,
  COALESCE(SUM(subtotal + offer_discount), 0) AS gross,
  COALESCE(SUM(offer_discount), 0) AS offer_discount,
  COALESCE(SUM(coupon_discount), 0) AS coupon_discount,
  COALESCE(SUM(total), 0) AS net,
  COALESCE(SUM(refunded_total), 0) AS refunded
FROM orders
WHERE status NOT IN ('cancelled')
  AND created_at >= ? AND created_at < ?
`

const salesByDaySQL = `
SELECT
  DATE_TRUNC('day', created_at)::date AS day,
  COUNT(*) AS order_count,
  COALESCE(SUM(total), 0) AS net
FROM orders
WHERE status NOT IN ('cancelled')
  AND created_at >= ? AND created_at < ?
GROUP BY day
ORDER BY day ASC
`

// SummaryRow aggregates order money columns over a window. Gross is the
// pre-discount merchandise value; Net is what customers were charged.
type SummaryRow struct {
	OrderCount     int64           `gorm:"column:order_count"`
	Gross          decimal.Decimal `gorm:"column:gross"`
	OfferDiscount  decimal.Decimal `gorm:"column:offer_discount"`
	CouponDiscount decimal.Decimal `gorm:"column:coupon_discount"`
	Net            decimal.Decimal `gorm:"column:net"`
	Refunded       decimal.Decimal `gorm:"column:refunded"`
}

// DayRow is one day of the breakdown series.
type DayRow struct {
	Day        time.Time       `gorm:"column:day"`
	OrderCount int64           `gorm:"column:order_count"`
	Net        decimal.Decimal `gorm:"column:net"`
}

// Repository runs the reporting aggregates.
type Repository interface {
	SummarizeSales(ctx context.Context, from, to time.Time) (*SummaryRow, error)
	SalesByDay(ctx context.Context, from, to time.Time) ([]DayRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reports repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SummarizeSales(ctx context.Context, from, to time.Time) (*SummaryRow, error) {
	var row SummaryRow
	err := r.db.WithContext(ctx).Raw(salesSummarySQL, from, to).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) SalesByDay(ctx context.Context, from, to time.Time) ([]DayRow, error) {
	var rows []DayRow
	err := r.db.WithContext(ctx).Raw(salesByDaySQL, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
