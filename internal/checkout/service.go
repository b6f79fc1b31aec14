package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bookhaven/bookhaven-backend/internal/pricing"
	"github.com/bookhaven/bookhaven-backend/internal/wallet"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db/models"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	pkgerrors "github.com/bookhaven/bookhaven-backend/pkg/errors"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/metrics"
	"github.com/bookhaven/bookhaven-backend/pkg/razorpay"
	"github.com/bookhaven/bookhaven-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartManager interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

type couponManager interface {
	SessionCoupon(ctx context.Context, userID uuid.UUID) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error
	ReleaseUsage(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error
	ClearSession(ctx context.Context, userID uuid.UUID) error
}

type stockManager interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
	RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error
}

type walletPayer interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Debit(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) (*models.WalletTransaction, error)
	ReverseDebit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type orderCreator interface {
	CreateOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error)
}

type addressSource interface {
	Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error)
}

type gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string, notes map[string]string) (*razorpay.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

// PlaceOrderInput places a COD or wallet order in one step.
type PlaceOrderInput struct {
	UserID        uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
}

// PaymentOrder is the phase-one response of the gateway flow: what the
// client hands to the Razorpay widget, plus our token to verify against.
type PaymentOrder struct {
	Token          uuid.UUID       `json:"token"`
	GatewayOrderID string          `json:"gateway_order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
}

// VerifyPaymentInput completes the gateway flow.
type VerifyPaymentInput struct {
	UserID    uuid.UUID
	Token     uuid.UUID
	PaymentID string
	Signature string
}

// Service orchestrates order placement: pricing the basket, walking the
// placement saga, and the two-phase gateway checkout.
type Service interface {
	Preview(ctx context.Context, userID uuid.UUID) (*pricing.Quote, error)
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
	CreatePaymentOrder(ctx context.Context, userID, addressID uuid.UUID) (*PaymentOrder, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Order, error)
}

// Deps wires the placement orchestrator. Every field is required except
// Metrics.
type Deps struct {
	DB        txRunner
	Repo      Repository
	Cart      cartManager
	Builder   pricing.Builder
	Coupons   couponManager
	Stock     stockManager
	Wallet    walletPayer
	Orders    orderCreator
	Addresses addressSource
	Gateway   gateway
	Config    config.CheckoutConfig
	Metrics   *metrics.StorefrontMetrics
	Logger    *logger.Logger
}

type service struct {
	Deps
	now func() time.Time
}

// NewService builds the checkout orchestrator.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("db client required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case deps.Cart == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Builder == nil:
		return nil, fmt.Errorf("price builder required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon service required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("product stock service required")
	case deps.Wallet == nil:
		return nil, fmt.Errorf("wallet service required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("order service required")
	case deps.Addresses == nil:
		return nil, fmt.Errorf("address service required")
	case deps.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{Deps: deps, now: time.Now}, nil
}

// Preview prices the current basket without touching any state.
func (s *service) Preview(ctx context.Context, userID uuid.UUID) (*pricing.Quote, error) {
	quote, _, err := s.quoteBasket(ctx, userID)
	return quote, err
}

func (s *service) quoteBasket(ctx context.Context, userID uuid.UUID) (*pricing.Quote, *models.Cart, error) {
	cart, err := s.Cart.GetCart(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(cart.Items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	items := make([]pricing.BuildItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		item := pricing.BuildItem{
			ProductID: ci.ProductID,
			UnitPrice: ci.PriceAtAddition,
			Quantity:  ci.Quantity,
		}
		if ci.Product != nil {
			item.CategoryID = ci.Product.CategoryID
			item.Title = ci.Product.Title
			item.ImageURL = ci.Product.ImageURL
			if !ci.Product.Purchasable() {
				return nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("%s is no longer available", ci.Product.Title))
			}
			if ci.Quantity > ci.Product.Stock {
				return nil, nil, pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("only %d units of %s in stock", ci.Product.Stock, ci.Product.Title))
			}
		}
		items = append(items, item)
	}

	coupon, err := s.Coupons.SessionCoupon(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	quote, err := s.Builder.Build(ctx, pricing.BuildInput{
		UserID: userID,
		Items:  items,
		Coupon: coupon,
	})
	if err != nil {
		return nil, nil, err
	}
	return quote, cart, nil
}

// PlaceOrder settles a COD or wallet order in one transaction, walking
// the placement saga so any late failure unwinds the earlier steps.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.PaymentMethod != enums.PaymentMethodCOD && input.PaymentMethod != enums.PaymentMethodWallet {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be cod or wallet")
	}

	quote, cart, err := s.quoteBasket(ctx, input.UserID)
	if err != nil {
		s.Metrics.IncCheckoutFailure("quote")
		return nil, err
	}
	snapshot, err := s.Addresses.Snapshot(ctx, input.UserID, input.AddressID)
	if err != nil {
		s.Metrics.IncCheckoutFailure("address")
		return nil, err
	}

	if input.PaymentMethod == enums.PaymentMethodCOD &&
		s.Config.CODLimit.Sign() > 0 && quote.Total.GreaterThan(s.Config.CODLimit) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("cash on delivery is limited to orders up to %s", s.Config.CODLimit.StringFixed(2)))
	}
	if input.PaymentMethod == enums.PaymentMethodWallet {
		w, err := s.Wallet.Get(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		if w.Balance.LessThan(quote.Total) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance")
		}
	}

	order := orderFromQuote(input.UserID, snapshot, input.PaymentMethod, quote)
	if input.PaymentMethod == enums.PaymentMethodWallet {
		order.PaymentStatus = enums.PaymentStatusPaid
	}

	var placed *models.Order
	err = s.DB.WithTx(ctx, func(tx *gorm.DB) error {
		steps := s.placementSteps(order, quote, cart, &placed)
		if input.PaymentMethod == enums.PaymentMethodWallet {
			// The debit sits between the coupon counters and the order row.
			steps = insertStepBefore(steps, "create_order", sagaStep{
				name: "debit_wallet",
				action: func(ctx context.Context, tx *gorm.DB) error {
					_, err := s.Wallet.Debit(ctx, tx, wallet.DebitInput{
						UserID:  order.UserID,
						Amount:  order.Total,
						OrderID: &order.ID,
						Reason:  "order payment",
					})
					return err
				},
				compensate: func(ctx context.Context, tx *gorm.DB) error {
					return s.Wallet.ReverseDebit(ctx, tx, order.ID)
				},
			})
		}
		stage, err := runSaga(ctx, s.Logger, tx, steps)
		if err != nil {
			s.Metrics.IncCheckoutFailure(stage)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.finishPlacement(ctx, input.UserID, placed)
	return placed, nil
}

// placementSteps is the shared tail of both placement flows: stock,
// coupon counters, order row, cart conversion.
func (s *service) placementSteps(order *models.Order, quote *pricing.Quote, cart *models.Cart, placed **models.Order) []sagaStep {
	var decremented []models.OrderItem
	steps := []sagaStep{
		{
			name: "decrement_stock",
			action: func(ctx context.Context, tx *gorm.DB) error {
				for _, item := range order.Items {
					if err := s.Stock.DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
						return err
					}
					decremented = append(decremented, item)
				}
				return nil
			},
			compensate: func(ctx context.Context, tx *gorm.DB) error {
				var firstErr error
				for _, item := range decremented {
					if err := s.Stock.RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil && firstErr == nil {
						firstErr = err
					}
				}
				return firstErr
			},
		},
	}
	if quote.CouponID != nil {
		couponID := *quote.CouponID
		steps = append(steps, sagaStep{
			name: "redeem_coupon",
			action: func(ctx context.Context, tx *gorm.DB) error {
				return s.Coupons.Redeem(ctx, tx, couponID, order.UserID)
			},
			compensate: func(ctx context.Context, tx *gorm.DB) error {
				return s.Coupons.ReleaseUsage(ctx, tx, couponID, order.UserID)
			},
		})
	}
	steps = append(steps,
		sagaStep{
			name: "create_order",
			action: func(ctx context.Context, tx *gorm.DB) error {
				created, err := s.Orders.CreateOrder(ctx, tx, order)
				if err != nil {
					return err
				}
				*placed = created
				return nil
			},
		},
		sagaStep{
			name: "convert_cart",
			action: func(ctx context.Context, tx *gorm.DB) error {
				if cart == nil {
					return nil
				}
				return s.Cart.MarkConverted(ctx, tx, cart.ID)
			},
		},
	)
	return steps
}

func (s *service) finishPlacement(ctx context.Context, userID uuid.UUID, order *models.Order) {
	if err := s.Coupons.ClearSession(ctx, userID); err != nil {
		s.Logger.Warn(s.Logger.WithUserID(ctx, userID.String()), "failed to clear coupon session after placement")
	}
	s.Metrics.IncOrderPlaced(order.PaymentMethod.String())
	ctx = s.Logger.WithOrderID(s.Logger.WithUserID(ctx, userID.String()), order.ID.String())
	s.Logger.Info(ctx, "order placed")
}

// CreatePaymentOrder runs phase one of the gateway flow: price the
// basket, create the gateway order, park the frozen quote under a token.
func (s *service) CreatePaymentOrder(ctx context.Context, userID, addressID uuid.UUID) (*PaymentOrder, error) {
	quote, _, err := s.quoteBasket(ctx, userID)
	if err != nil {
		s.Metrics.IncCheckoutFailure("quote")
		return nil, err
	}
	snapshot, err := s.Addresses.Snapshot(ctx, userID, addressID)
	if err != nil {
		s.Metrics.IncCheckoutFailure("address")
		return nil, err
	}

	token := uuid.New()
	gwOrder, err := s.Gateway.CreateOrder(ctx, quote.Total, token.String(), map[string]string{
		"user_id": userID.String(),
	})
	if err != nil {
		s.Metrics.IncCheckoutFailure("gateway")
		return nil, err
	}

	raw, err := json.Marshal(quote)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "freeze quote snapshot")
	}
	pending := &models.PendingCheckout{
		Token:           token,
		UserID:          userID,
		QuoteSnapshot:   raw,
		ShippingAddress: snapshot,
		CouponID:        quote.CouponID,
		Amount:          quote.Total,
		GatewayOrderID:  gwOrder.ID,
		ExpiresAt:       s.now().Add(s.Config.PendingCheckoutTTL),
	}
	if _, err := s.Repo.CreatePending(ctx, pending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pending checkout")
	}

	return &PaymentOrder{
		Token:          token,
		GatewayOrderID: gwOrder.ID,
		Amount:         quote.Total,
		Currency:       gwOrder.Currency,
	}, nil
}

// VerifyPayment runs phase two: validate the gateway signature, then
// place the order from the frozen snapshot. Consumption is exactly-once;
// a replayed verification returns the already-placed order.
func (s *service) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*models.Order, error) {
	pending, err := s.Repo.FindPendingByToken(ctx, input.Token)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending checkout")
	}
	if pending.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	if pending.ConsumedAt != nil {
		order, err := s.Repo.FindOrderByGatewayOrderID(ctx, pending.GatewayOrderID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "payment already verified")
		}
		s.Logger.Info(s.Logger.WithOrderID(ctx, order.ID.String()), "payment verification replayed")
		return order, nil
	}
	if pending.Expired(s.now()) {
		s.Metrics.IncCheckoutFailure("expired")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session expired, start checkout again")
	}
	if !s.Gateway.VerifyPaymentSignature(pending.GatewayOrderID, input.PaymentID, input.Signature) {
		s.Metrics.IncCheckoutFailure("signature")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment signature verification failed")
	}

	var quote pricing.Quote
	if err := json.Unmarshal(pending.QuoteSnapshot, &quote); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode quote snapshot")
	}

	order := orderFromQuote(pending.UserID, pending.ShippingAddress, enums.PaymentMethodRazorpay, &quote)
	order.PaymentStatus = enums.PaymentStatusPaid
	order.RazorpayOrderID = &pending.GatewayOrderID
	paymentID := input.PaymentID
	order.RazorpayPaymentID = &paymentID

	cart, err := s.Cart.GetCart(ctx, pending.UserID)
	if err != nil {
		cart = nil
	}

	var placed *models.Order
	err = s.DB.WithTx(ctx, func(tx *gorm.DB) error {
		steps := s.placementSteps(order, &quote, cart, &placed)
		steps = append(steps, sagaStep{
			name: "consume_pending",
			action: func(ctx context.Context, tx *gorm.DB) error {
				if err := s.Repo.WithTx(tx).MarkConsumed(ctx, pending.ID, s.now()); err != nil {
					if err == gorm.ErrRecordNotFound {
						return pkgerrors.New(pkgerrors.CodeIdempotency, "payment already verified")
					}
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume pending checkout")
				}
				return nil
			},
		})
		stage, err := runSaga(ctx, s.Logger, tx, steps)
		if err != nil {
			s.Metrics.IncCheckoutFailure(stage)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.finishPlacement(ctx, pending.UserID, placed)
	return placed, nil
}

// orderFromQuote freezes a priced basket into the order row and items.
func orderFromQuote(userID uuid.UUID, address types.AddressSnapshot, method enums.PaymentMethod, quote *pricing.Quote) *models.Order {
	items := make([]models.OrderItem, 0, len(quote.Items))
	for _, iq := range quote.Items {
		items = append(items, models.OrderItem{
			ProductID:       iq.ProductID,
			Title:           iq.Title,
			ImageURL:        iq.ImageURL,
			OriginalPrice:   iq.OriginalPrice,
			DiscountedPrice: iq.DiscountedPrice,
			Quantity:        iq.Quantity,
			Status:          enums.OrderItemStatusActive,
			PriceBreakdown:  iq.Breakdown,
		})
	}
	return &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		ShippingAddress: address,
		PaymentMethod:   method,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusPlaced,
		Subtotal:        quote.Subtotal,
		Tax:             quote.Tax,
		Shipping:        quote.Shipping,
		OfferDiscount:   quote.OfferDiscount,
		CouponCode:      quote.CouponCode,
		CouponID:        quote.CouponID,
		CouponDiscount:  quote.CouponDiscount,
		Total:           quote.Total,
		Items:           items,
	}
}

func insertStepBefore(steps []sagaStep, name string, step sagaStep) []sagaStep {
	out := make([]sagaStep, 0, len(steps)+1)
	for _, existing := range steps {
		if existing.name == name {
			out = append(out, step)
		}
		out = append(out, existing)
	}
	return out
}
