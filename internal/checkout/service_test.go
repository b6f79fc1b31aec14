package checkout

import (
	"context"
	"errors"
	"testing"
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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeCart struct {
	cart      *models.Cart
	converted []uuid.UUID
}

func (f *fakeCart) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return f.cart, nil
}

func (f *fakeCart) MarkConverted(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	f.converted = append(f.converted, cartID)
	return nil
}

type fakeBuilder struct {
	quote *pricing.Quote
}

func (f *fakeBuilder) Build(ctx context.Context, input pricing.BuildInput) (*pricing.Quote, error) {
	return f.quote, nil
}

type fakeCoupons struct {
	session  *models.Coupon
	redeemed int
	released int
	cleared  int
}

func (f *fakeCoupons) SessionCoupon(ctx context.Context, userID uuid.UUID) (*models.Coupon, error) {
	return f.session, nil
}

func (f *fakeCoupons) Redeem(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error {
	f.redeemed++
	return nil
}

func (f *fakeCoupons) ReleaseUsage(ctx context.Context, tx *gorm.DB, couponID, userID uuid.UUID) error {
	f.released++
	return nil
}

func (f *fakeCoupons) ClearSession(ctx context.Context, userID uuid.UUID) error {
	f.cleared++
	return nil
}

type fakeStock struct {
	stock    map[uuid.UUID]int
	restored map[uuid.UUID]int
}

func (f *fakeStock) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if f.stock[productID] < quantity {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock")
	}
	f.stock[productID] -= quantity
	return nil
}

func (f *fakeStock) RestoreStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, quantity int) error {
	if f.restored == nil {
		f.restored = make(map[uuid.UUID]int)
	}
	f.restored[productID] += quantity
	f.stock[productID] += quantity
	return nil
}

type fakeWallet struct {
	balance  decimal.Decimal
	debits   []wallet.DebitInput
	reversed []uuid.UUID
}

func (f *fakeWallet) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return &models.Wallet{UserID: userID, Balance: f.balance}, nil
}

func (f *fakeWallet) Debit(ctx context.Context, tx *gorm.DB, input wallet.DebitInput) (*models.WalletTransaction, error) {
	if f.balance.LessThan(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance")
	}
	f.balance = f.balance.Sub(input.Amount)
	f.debits = append(f.debits, input)
	return &models.WalletTransaction{ID: uuid.New()}, nil
}

func (f *fakeWallet) ReverseDebit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	f.reversed = append(f.reversed, orderID)
	return nil
}

type fakeOrders struct {
	created []*models.Order
	err     error
}

func (f *fakeOrders) CreateOrder(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	if order.OrderNumber == "" {
		order.OrderNumber = "BH-20260831-123456"
	}
	f.created = append(f.created, order)
	return order, nil
}

type fakeAddresses struct{}

func (fakeAddresses) Snapshot(ctx context.Context, userID, addressID uuid.UUID) (types.AddressSnapshot, error) {
	return types.AddressSnapshot{FullName: "A Reader", Line1: "12 Book Lane", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN", Phone: "9999999999"}, nil
}

type fakeGateway struct {
	orders     []string
	validSig   string
	failCreate bool
}

func (f *fakeGateway) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string, notes map[string]string) (*razorpay.Order, error) {
	if f.failCreate {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
	}
	id := "order_" + receipt[:8]
	f.orders = append(f.orders, id)
	return &razorpay.Order{ID: id, Currency: "INR"}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return signature == f.validSig
}

type pendingStore struct {
	pendings map[uuid.UUID]*models.PendingCheckout
	orders   *fakeOrders
}

func (p *pendingStore) WithTx(tx *gorm.DB) Repository { return p }

func (p *pendingStore) CreatePending(ctx context.Context, pending *models.PendingCheckout) (*models.PendingCheckout, error) {
	pending.ID = uuid.New()
	p.pendings[pending.ID] = pending
	return pending, nil
}

func (p *pendingStore) FindPendingByToken(ctx context.Context, token uuid.UUID) (*models.PendingCheckout, error) {
	for _, pending := range p.pendings {
		if pending.Token == token {
			clone := *pending
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (p *pendingStore) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	pending, ok := p.pendings[id]
	if !ok || pending.ConsumedAt != nil {
		return gorm.ErrRecordNotFound
	}
	pending.ConsumedAt = &at
	return nil
}

func (p *pendingStore) PurgeStalePending(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	return 0, nil
}

func (p *pendingStore) FindOrderByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	for _, o := range p.orders.created {
		if o.RazorpayOrderID != nil && *o.RazorpayOrderID == gatewayOrderID {
			return o, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type env struct {
	svc     Service
	cart    *fakeCart
	coupons *fakeCoupons
	stock   *fakeStock
	wallet  *fakeWallet
	orders  *fakeOrders
	gateway *fakeGateway
	store   *pendingStore
}

func quoteFor(productID uuid.UUID, couponID *uuid.UUID) *pricing.Quote {
	q := &pricing.Quote{
		Items: []pricing.ItemQuote{{
			ProductID:       productID,
			Title:           "Book A",
			OriginalPrice:   dec("500.00"),
			DiscountedPrice: dec("450.00"),
			Quantity:        1,
			Breakdown: types.PriceBreakdown{
				OriginalPrice:   dec("500.00"),
				Subtotal:        dec("500.00"),
				OfferDiscount:   dec("50.00"),
				PriceAfterOffer: dec("450.00"),
				FinalPrice:      dec("450.00"),
			},
		}},
		Subtotal: dec("450.00"),
		Tax:      dec("36.00"),
		Shipping: dec("50.00"),
		Total:    dec("536.00"),
	}
	q.CouponID = couponID
	return q
}

func newEnv(t *testing.T, productID uuid.UUID, quote *pricing.Quote) *env {
	t.Helper()
	e := &env{
		cart: &fakeCart{cart: &models.Cart{
			ID:     uuid.New(),
			Status: enums.CartStatusActive,
			Items: []models.CartItem{{
				ProductID:       productID,
				Quantity:        1,
				PriceAtAddition: dec("500.00"),
				Product:         &models.Product{ID: productID, Title: "Book A", SalePrice: dec("500.00"), Stock: 5, IsListed: true},
			}},
		}},
		coupons: &fakeCoupons{},
		stock:   &fakeStock{stock: map[uuid.UUID]int{productID: 5}},
		wallet:  &fakeWallet{balance: dec("1000.00")},
		orders:  &fakeOrders{},
		gateway: &fakeGateway{validSig: "good-signature"},
	}
	e.store = &pendingStore{pendings: make(map[uuid.UUID]*models.PendingCheckout), orders: e.orders}

	svc, err := NewService(Deps{
		DB:        fakeTx{},
		Repo:      e.store,
		Cart:      e.cart,
		Builder:   &fakeBuilder{quote: quote},
		Coupons:   e.coupons,
		Stock:     e.stock,
		Wallet:    e.wallet,
		Orders:    e.orders,
		Addresses: fakeAddresses{},
		Gateway:   e.gateway,
		Config: config.CheckoutConfig{
			CODLimit:           dec("10000"),
			PendingCheckoutTTL: 30 * time.Minute,
		},
		Metrics: metrics.NewStorefrontMetrics(nil),
		Logger:  logger.New(logger.Options{}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	e.svc = svc
	return e
}

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	var events []string
	step := func(name string, fail bool) sagaStep {
		return sagaStep{
			name: name,
			action: func(ctx context.Context, tx *gorm.DB) error {
				if fail {
					return errors.New(name + " failed")
				}
				events = append(events, "do:"+name)
				return nil
			},
			compensate: func(ctx context.Context, tx *gorm.DB) error {
				events = append(events, "undo:"+name)
				return nil
			},
		}
	}

	stage, err := runSaga(context.Background(), logger.New(logger.Options{}), nil, []sagaStep{
		step("first", false), step("second", false), step("third", true),
	})
	if err == nil {
		t.Fatal("expected saga failure")
	}
	if stage != "third" {
		t.Fatalf("expected failing stage third, got %q", stage)
	}
	want := []string{"do:first", "do:second", "undo:second", "undo:first"}
	if len(events) != len(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, events)
		}
	}
}

func TestPlaceOrderWalletHappyPath(t *testing.T) {
	productID := uuid.New()
	e := newEnv(t, productID, quoteFor(productID, nil))

	order, err := e.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:        uuid.New(),
		AddressID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodWallet,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("wallet order must be paid, got %s", order.PaymentStatus)
	}
	if len(e.wallet.debits) != 1 || !e.wallet.debits[0].Amount.Equal(dec("536.00")) {
		t.Fatalf("expected one debit of 536.00, got %+v", e.wallet.debits)
	}
	if e.stock.stock[productID] != 4 {
		t.Fatalf("expected stock decremented to 4, got %d", e.stock.stock[productID])
	}
	if len(e.cart.converted) != 1 {
		t.Fatal("cart must be converted after placement")
	}
	if e.coupons.cleared != 1 {
		t.Fatal("coupon session must be cleared after placement")
	}
	if !order.Total.Sub(order.Subtotal.Sub(order.CouponDiscount).Add(order.Tax).Add(order.Shipping)).IsZero() {
		t.Fatalf("order identity violated: %+v", order)
	}
}

func TestPlaceOrderFailureUnwindsCouponAndStock(t *testing.T) {
	productID := uuid.New()
	couponID := uuid.New()
	e := newEnv(t, productID, quoteFor(productID, &couponID))
	e.orders.err = pkgerrors.New(pkgerrors.CodeDependency, "insert failed")

	_, err := e.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:        uuid.New(),
		AddressID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	if err == nil {
		t.Fatal("expected placement failure")
	}
	if e.coupons.redeemed != 1 || e.coupons.released != 1 {
		t.Fatalf("coupon counters must be rolled back, redeemed=%d released=%d", e.coupons.redeemed, e.coupons.released)
	}
	if e.stock.stock[productID] != 5 {
		t.Fatalf("stock must be restored to 5, got %d", e.stock.stock[productID])
	}
	if len(e.cart.converted) != 0 {
		t.Fatal("cart must stay active on failure")
	}
}

func TestPlaceOrderWalletDebitReversedOnLaterFailure(t *testing.T) {
	productID := uuid.New()
	e := newEnv(t, productID, quoteFor(productID, nil))
	e.orders.err = pkgerrors.New(pkgerrors.CodeDependency, "insert failed")

	_, err := e.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:        uuid.New(),
		AddressID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodWallet,
	})
	if err == nil {
		t.Fatal("expected placement failure")
	}
	if len(e.wallet.debits) != 1 || len(e.wallet.reversed) != 1 {
		t.Fatalf("wallet debit must be reversed, debits=%d reversed=%d", len(e.wallet.debits), len(e.wallet.reversed))
	}
}

func TestPlaceOrderCODCeiling(t *testing.T) {
	productID := uuid.New()
	quote := quoteFor(productID, nil)
	quote.Total = dec("10001.00")
	quote.Subtotal = dec("9915.00")
	quote.Tax = dec("36.00")
	e := newEnv(t, productID, quote)

	_, err := e.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:        uuid.New(),
		AddressID:     uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
	})
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected COD ceiling rejection, got %v", err)
	}
}

func TestGatewayFlowVerifyAndReplay(t *testing.T) {
	productID := uuid.New()
	e := newEnv(t, productID, quoteFor(productID, nil))
	userID := uuid.New()
	ctx := context.Background()

	payment, err := e.svc.CreatePaymentOrder(ctx, userID, uuid.New())
	if err != nil {
		t.Fatalf("create payment order: %v", err)
	}
	if payment.GatewayOrderID == "" || !payment.Amount.Equal(dec("536.00")) {
		t.Fatalf("unexpected payment order %+v", payment)
	}
	// Phase one must not touch stock or counters.
	if e.stock.stock[productID] != 5 {
		t.Fatalf("phase one must not move stock, got %d", e.stock.stock[productID])
	}

	order, err := e.svc.VerifyPayment(ctx, VerifyPaymentInput{
		UserID:    userID,
		Token:     payment.Token,
		PaymentID: "pay_123",
		Signature: "good-signature",
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid || order.PaymentMethod != enums.PaymentMethodRazorpay {
		t.Fatalf("unexpected order payment state %+v", order)
	}
	if order.RazorpayOrderID == nil || *order.RazorpayOrderID != payment.GatewayOrderID {
		t.Fatal("gateway order id must be recorded")
	}
	if e.stock.stock[productID] != 4 {
		t.Fatalf("verification must decrement stock, got %d", e.stock.stock[productID])
	}

	// Replaying the verification returns the same order without placing twice.
	replay, err := e.svc.VerifyPayment(ctx, VerifyPaymentInput{
		UserID:    userID,
		Token:     payment.Token,
		PaymentID: "pay_123",
		Signature: "good-signature",
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.ID != order.ID {
		t.Fatal("replay must return the original order")
	}
	if len(e.orders.created) != 1 {
		t.Fatalf("replay must not create a second order, got %d", len(e.orders.created))
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	productID := uuid.New()
	e := newEnv(t, productID, quoteFor(productID, nil))
	userID := uuid.New()
	ctx := context.Background()

	payment, err := e.svc.CreatePaymentOrder(ctx, userID, uuid.New())
	if err != nil {
		t.Fatalf("create payment order: %v", err)
	}
	_, err = e.svc.VerifyPayment(ctx, VerifyPaymentInput{
		UserID:    userID,
		Token:     payment.Token,
		PaymentID: "pay_123",
		Signature: "forged",
	})
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected signature rejection, got %v", err)
	}
	if len(e.orders.created) != 0 || e.stock.stock[productID] != 5 {
		t.Fatal("failed verification must leave no partial state")
	}
}

func TestVerifyPaymentExpired(t *testing.T) {
	productID := uuid.New()
	e := newEnv(t, productID, quoteFor(productID, nil))
	userID := uuid.New()
	ctx := context.Background()

	payment, err := e.svc.CreatePaymentOrder(ctx, userID, uuid.New())
	if err != nil {
		t.Fatalf("create payment order: %v", err)
	}
	for _, pending := range e.store.pendings {
		pending.ExpiresAt = time.Now().Add(-time.Minute)
	}

	_, err = e.svc.VerifyPayment(ctx, VerifyPaymentInput{
		UserID:    userID,
		Token:     payment.Token,
		PaymentID: "pay_123",
		Signature: "good-signature",
	})
	de := pkgerrors.As(err)
	if de == nil || de.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected expiry rejection, got %v", err)
	}
}
