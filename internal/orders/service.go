package orders

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/refunds"
	"github.com/bookhaven/bookhaven-backend/internal/wallet"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/metrics"
	"github.com/bookhaven/bookhaven-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type walletLedger interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.CreditInput) (*models.WalletTransaction, error)
}

type couponFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
}

type stockRestorer interface {
	RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
}

// CancelOrderInput cancels every active item. UserID nil means an admin
// is acting; set, it scopes the lookup to the owner.
type CancelOrderInput struct {
	OrderID uuid.UUID
	UserID  *uuid.UUID
	Reason  string
}

// CancelItemInput cancels a single line item.
type CancelItemInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	UserID  *uuid.UUID
	Reason  string
}

// ReturnRequestInput opens a user return request on a delivered item.
type ReturnRequestInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	UserID  uuid.UUID
	Reason  string
}

// ResolveReturnInput settles a pending return request.
type ResolveReturnInput struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Approve bool
	Reason  string
}

// Service drives order settlement: whole-order transitions, item-level
// cancels and returns, refunds and the reconciliation that keeps the
// order status in step with its items.
type Service interface {
	CreateOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error)
	CancelItem(ctx context.Context, input CancelItemInput) (*models.Order, error)
	RequestReturn(ctx context.Context, input ReturnRequestInput) (*models.Order, error)
	ReturnItem(ctx context.Context, orderID, itemID uuid.UUID, reason string) (*models.Order, error)
	ResolveReturn(ctx context.Context, input ResolveReturnInput) (*models.Order, error)
}

type service struct {
	db      txRunner
	repo    Repository
	wallet  walletLedger
	refunds *refunds.Calculator
	coupons couponFinder
	stock   stockRestorer
	metrics *metrics.StorefrontMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the settlement service with the required dependencies.
func NewService(
	db txRunner,
	repo Repository,
	walletSvc walletLedger,
	calc *refunds.Calculator,
	coupons couponFinder,
	stock stockRestorer,
	m *metrics.StorefrontMetrics,
	logg *logger.Logger,
) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if calc == nil {
		return nil, fmt.Errorf("refund calculator required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon finder required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock restorer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:      db,
		repo:    repo,
		wallet:  walletSvc,
		refunds: calc,
		coupons: coupons,
		stock:   stock,
		metrics: m,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// NewOrderNumber mints a human-readable order number, BH-YYYYMMDD followed
// by six random digits. Uniqueness is enforced by the database index.
func NewOrderNumber(t time.Time) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// fall back to the clock so placement still works.
		return fmt.Sprintf("BH-%s-%06d", t.UTC().Format("20060102"), t.UnixNano()%1000000)
	}
	digits := make([]byte, 6)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return fmt.Sprintf("BH-%s-%s", t.UTC().Format("20060102"), digits)
}

// CreateOrder persists a new order after checking the creation identity:
// total = subtotal - couponDiscount + tax + shipping within a paisa.
// An empty order number is minted here.
func (s *service) CreateOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error) {
	if order == nil || len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	expected := order.Subtotal.Sub(order.CouponDiscount).Add(order.Tax).Add(order.Shipping)
	if order.Total.Sub(expected).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"total":    order.Total.StringFixed(2),
			"expected": expected.StringFixed(2),
		})
		s.logg.Error(ctx, "order creation identity violated", nil)
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order totals are inconsistent")
	}
	if order.OrderNumber == "" {
		order.OrderNumber = NewOrderNumber(s.now())
	}
	created, err := s.repo.WithTx(tx).Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, s.repo, orderID, nil)
}

func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	return s.load(ctx, s.repo, orderID, &userID)
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID, userID *uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if userID != nil && order.UserID != *userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	list, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// UpdateStatus applies an admin-driven whole-order transition. Cancelling
// flows through the full cancellation path so refunds and stock come along.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}
	if next == enums.OrderStatusCancelled {
		return s.CancelOrder(ctx, CancelOrderInput{OrderID: orderID, Reason: "cancelled by admin"})
	}

	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, nil)
		if err != nil {
			return err
		}
		if err := checkTransition(order.Status, next); err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{"status": next}
		switch next {
		case enums.OrderStatusProcessing:
			updates["processed_at"] = now
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			// Backfill missing intermediate timestamps so the order
			// timeline has no gaps. Display nicety, not a financial fact.
			if order.ShippedAt == nil {
				updates["shipped_at"] = now
			}
			if order.ProcessedAt == nil {
				updates["processed_at"] = now
			}
			if order.PaymentMethod == enums.PaymentMethodCOD {
				// Cash changes hands at the door.
				updates["payment_status"] = enums.PaymentStatusPaid
			}
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		out, err = s.load(ctx, repo, orderID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order status updated")
	return out, nil
}

// CancelOrder cancels every active item, restores stock and refunds the
// unrefunded remainder in one wallet credit.
func (s *service) CancelOrder(ctx context.Context, input CancelOrderInput) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID, input.UserID)
		if err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCancelled {
			out = order
			return nil
		}
		if err := checkTransition(order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}

		now := s.now()
		reason := input.Reason
		if reason == "" {
			reason = "order cancelled"
		}
		var stockErrs error
		for i := range order.Items {
			item := &order.Items[i]
			if item.Status != enums.OrderItemStatusActive {
				continue
			}
			if err := repo.UpdateItem(ctx, item.ID, map[string]any{
				"status":        enums.OrderItemStatusCancelled,
				"cancel_reason": reason,
				"cancelled_at":  now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order item")
			}
			item.Status = enums.OrderItemStatusCancelled
			if err := s.stock.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				stockErrs = multierr.Append(stockErrs, fmt.Errorf("product %s: %w", item.ProductID, err))
			}
		}
		s.logStockErrors(ctx, order.ID, stockErrs)

		decision := s.refunds.DecideWholeOrder(ctx, order)
		if err := s.applyRefund(ctx, tx, order, nil, enums.RefundKindCancellation,
			decision, fmt.Sprintf("refund for cancelled order %s", order.OrderNumber)); err != nil {
			return err
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cancelled order")
		}
		out, err = s.load(ctx, repo, order.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, input.OrderID.String()), "order cancelled")
	return out, nil
}

// CancelItem cancels one line item, refunding its frozen value. A second
// cancel of the same item is a no-op returning the current order.
func (s *service) CancelItem(ctx context.Context, input CancelItemInput) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID, input.UserID)
		if err != nil {
			return err
		}
		item, err := findItem(order, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status == enums.OrderItemStatusCancelled {
			out = order
			return nil
		}
		if item.Status != enums.OrderItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("item is %s and cannot be cancelled", item.Status))
		}
		if order.Status == enums.OrderStatusShipped || order.Status == enums.OrderStatusDelivered || order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s; items can no longer be cancelled, use the return flow", order.Status))
		}
		if err := s.couponGuard(ctx, order, item); err != nil {
			return err
		}

		now := s.now()
		reason := input.Reason
		if reason == "" {
			reason = "item cancelled"
		}
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"status":        enums.OrderItemStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order item")
		}
		item.Status = enums.OrderItemStatusCancelled

		if err := s.stock.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			s.logStockErrors(ctx, order.ID, err)
		}

		decision := s.refunds.Decide(ctx, order, item)
		if err := s.applyRefund(ctx, tx, order, &item.ID, enums.RefundKindCancellation,
			decision, fmt.Sprintf("refund for cancelled item %s", item.Title)); err != nil {
			return err
		}
		if err := s.reconcile(ctx, repo, order, now); err != nil {
			return err
		}
		out, err = s.load(ctx, repo, order.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, input.OrderID.String()), "order item cancelled")
	return out, nil
}

// RequestReturn opens a return request on a delivered item. Money only
// moves when an admin approves it.
func (s *service) RequestReturn(ctx context.Context, input ReturnRequestInput) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID, &input.UserID)
		if err != nil {
			return err
		}
		if order.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s; returns are accepted after delivery", order.Status))
		}
		item, err := findItem(order, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status == enums.OrderItemStatusReturnRequested {
			out = order
			return nil
		}
		if item.Status != enums.OrderItemStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("item is %s and cannot be returned", item.Status))
		}
		if err := s.couponGuard(ctx, order, item); err != nil {
			return err
		}

		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"status":        enums.OrderItemStatusReturnRequested,
			"return_reason": input.Reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request item return")
		}
		item.Status = enums.OrderItemStatusReturnRequested

		if err := s.reconcile(ctx, repo, order, s.now()); err != nil {
			return err
		}
		out, err = s.load(ctx, repo, order.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, input.OrderID.String()), "return requested")
	return out, nil
}

// ReturnItem is the direct admin path: active item straight to returned,
// with stock and refund side effects.
func (s *service) ReturnItem(ctx context.Context, orderID, itemID uuid.UUID, reason string) (*models.Order, error) {
	return s.settleReturn(ctx, orderID, itemID, reason, enums.OrderItemStatusActive)
}

// ResolveReturn settles a pending request: approval refunds and returns
// the item, rejection puts it back to active with the reject reason.
func (s *service) ResolveReturn(ctx context.Context, input ResolveReturnInput) (*models.Order, error) {
	if input.Approve {
		return s.settleReturn(ctx, input.OrderID, input.ItemID, input.Reason, enums.OrderItemStatusReturnRequested)
	}

	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID, nil)
		if err != nil {
			return err
		}
		item, err := findItem(order, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status != enums.OrderItemStatusReturnRequested {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("item is %s, not awaiting return resolution", item.Status))
		}
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"status":        enums.OrderItemStatusActive,
			"reject_reason": input.Reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject item return")
		}
		item.Status = enums.OrderItemStatusActive

		if err := s.reconcile(ctx, repo, order, s.now()); err != nil {
			return err
		}
		out, err = s.load(ctx, repo, order.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, input.OrderID.String()), "return rejected")
	return out, nil
}

func (s *service) settleReturn(ctx context.Context, orderID, itemID uuid.UUID, reason string, from enums.OrderItemStatus) (*models.Order, error) {
	var out *models.Order
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID, nil)
		if err != nil {
			return err
		}
		item, err := findItem(order, itemID)
		if err != nil {
			return err
		}
		if item.Status == enums.OrderItemStatusReturned {
			out = order
			return nil
		}
		if item.Status != from {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("item is %s and cannot be returned", item.Status))
		}
		if from == enums.OrderItemStatusActive {
			if err := s.couponGuard(ctx, order, item); err != nil {
				return err
			}
		}

		now := s.now()
		if reason == "" {
			reason = "item returned"
		}
		if err := repo.UpdateItem(ctx, item.ID, map[string]any{
			"status":        enums.OrderItemStatusReturned,
			"return_reason": reason,
			"returned_at":   now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return order item")
		}
		item.Status = enums.OrderItemStatusReturned

		if err := s.stock.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
			s.logStockErrors(ctx, order.ID, err)
		}

		decision := s.refunds.Decide(ctx, order, item)
		if err := s.applyRefund(ctx, tx, order, &item.ID, enums.RefundKindReturn,
			decision, fmt.Sprintf("refund for returned item %s", item.Title)); err != nil {
			return err
		}
		if err := s.reconcile(ctx, repo, order, now); err != nil {
			return err
		}
		out, err = s.load(ctx, repo, order.ID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order item returned")
	return out, nil
}

// applyRefund moves refund money per the calculator's decision: wallet
// credit plus refunded-total and payment-status bookkeeping, or a
// payment-failed flip for uncollected COD.
func (s *service) applyRefund(ctx context.Context, tx *gorm.DB, order *models.Order, itemID *uuid.UUID, kind enums.RefundKind, decision refunds.Decision, reason string) error {
	repo := s.repo.WithTx(tx)

	if decision.FailPayment {
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusFailed,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		order.PaymentStatus = enums.PaymentStatusFailed
		return nil
	}
	if !decision.ShouldRefund {
		return nil
	}

	if _, err := s.wallet.Credit(ctx, tx, wallet.CreditInput{
		UserID:      order.UserID,
		Amount:      decision.Amount,
		OrderID:     &order.ID,
		OrderItemID: itemID,
		RefundKind:  &kind,
		Reason:      reason,
	}); err != nil {
		return err
	}
	if err := repo.AddRefundedTotal(ctx, order.ID, decision.Amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update refunded total")
	}
	order.RefundedTotal = order.RefundedTotal.Add(decision.Amount)

	next := enums.PaymentStatusPartiallyRefunded
	if order.RefundedTotal.GreaterThanOrEqual(order.Total) {
		next = enums.PaymentStatusRefunded
	}
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"payment_status": next}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	order.PaymentStatus = next

	s.metrics.ObserveRefund(kind.String(), decision.Amount)
	return nil
}

// reconcile re-derives the whole-order status from item statuses and
// stamps terminal timestamps when the order settles.
func (s *service) reconcile(ctx context.Context, repo Repository, order *models.Order, now time.Time) error {
	counts := countItems(order.Items)
	derived := deriveOrderStatus(order.Status, counts)
	if counts.returnRequested == 0 && derived == order.Status &&
		(order.Status == enums.OrderStatusReturnRequested || order.Status == enums.OrderStatusPartialReturnRequested) {
		// The last pending request was rejected; fall back to wherever
		// fulfillment had reached.
		derived = fulfillmentStatus(order)
	}
	if derived == order.Status {
		return nil
	}
	updates := map[string]any{"status": derived}
	switch derived {
	case enums.OrderStatusCancelled:
		if order.CancelledAt == nil {
			updates["cancelled_at"] = now
		}
	case enums.OrderStatusReturned, enums.OrderStatusPartiallyReturned:
		if order.ReturnedAt == nil {
			updates["returned_at"] = now
		}
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile order status")
	}
	order.Status = derived
	return nil
}

// couponGuard refuses a partial cancel/return that would drag the
// remaining post-offer subtotal below the coupon's minimum order amount.
// The whole order can still be cancelled instead.
func (s *service) couponGuard(ctx context.Context, order *models.Order, excluded *models.OrderItem) error {
	if order.CouponID == nil {
		return nil
	}
	coupon, err := s.coupons.FindByID(ctx, *order.CouponID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "order coupon no longer exists, skipping minimum check")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order coupon")
	}
	if coupon.MinOrderAmount.Sign() <= 0 {
		return nil
	}

	remainder := decimal.Zero
	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == excluded.ID || item.Status != enums.OrderItemStatusActive {
			continue
		}
		remainder = remainder.Add(item.PriceBreakdown.PriceAfterOffer)
	}
	// Nothing left means this is effectively a full cancellation.
	if remainder.Sign() > 0 && remainder.LessThan(coupon.MinOrderAmount) {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("removing this item drops the order below the %s minimum of coupon %s; cancel the whole order instead",
				coupon.MinOrderAmount.StringFixed(2), coupon.Code))
	}
	return nil
}

// fulfillmentStatus recovers how far fulfillment had progressed from the
// stamped timestamps.
func fulfillmentStatus(order *models.Order) enums.OrderStatus {
	switch {
	case order.DeliveredAt != nil:
		return enums.OrderStatusDelivered
	case order.ShippedAt != nil:
		return enums.OrderStatusShipped
	case order.ProcessedAt != nil:
		return enums.OrderStatusProcessing
	default:
		return enums.OrderStatusPlaced
	}
}

func (s *service) logStockErrors(ctx context.Context, orderID uuid.UUID, err error) {
	if err == nil {
		return
	}
	// Stock restoration is best effort; a miss lags inventory but never
	// blocks the refund.
	s.logg.Error(s.logg.WithOrderID(ctx, orderID.String()), "stock restore failed", err)
}

func findItem(order *models.Order, itemID uuid.UUID) (*models.OrderItem, error) {
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
}
