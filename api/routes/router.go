package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bookhaven/bookhaven-backend/api/controllers"
	"github.com/bookhaven/bookhaven-backend/api/middleware"
	addresssvc "github.com/bookhaven/bookhaven-backend/internal/addresses"
	cartsvc "github.com/bookhaven/bookhaven-backend/internal/cart"
	checkoutsvc "github.com/bookhaven/bookhaven-backend/internal/checkout"
	couponsvc "github.com/bookhaven/bookhaven-backend/internal/coupons"
	offersvc "github.com/bookhaven/bookhaven-backend/internal/offers"
	ordersvc "github.com/bookhaven/bookhaven-backend/internal/orders"
	productsvc "github.com/bookhaven/bookhaven-backend/internal/products"
	reportsvc "github.com/bookhaven/bookhaven-backend/internal/reports"
	walletsvc "github.com/bookhaven/bookhaven-backend/internal/wallet"
	wishlistsvc "github.com/bookhaven/bookhaven-backend/internal/wishlist"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/enums"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Metrics http.Handler

	Products  productsvc.Service
	Cart      cartsvc.Service
	Coupons   couponsvc.Service
	Offers    offersvc.Service
	Checkout  checkoutsvc.Service
	Orders    ordersvc.Service
	Wallet    walletsvc.Service
	Wishlist  wishlistsvc.Service
	Addresses addresssvc.Service
	Reports   reportsvc.Service
}

// NewRouter builds the full route tree: public catalog, the
// authenticated storefront, and the admin back office.
func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	r := chi.NewRouter()

	var revoker middleware.TokenRevocationChecker
	var idemStore redis.IdempotencyStore
	if d.Redis != nil {
		revoker = d.Redis
		idemStore = d.Redis
	}

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(d.DB, d.Redis, logg))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	// Public catalog browsing needs no credentials.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductList(d.Products, logg))
		r.Get("/{id}", controllers.ProductGet(d.Products, logg))
	})
	r.Get("/api/v1/categories", controllers.CategoryList(d.Products, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(d.Config.JWT, revoker, logg),
			middleware.Idempotency(idemStore, logg),
		)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(d.Cart, logg))
			r.Post("/", controllers.CartAddItem(d.Cart, logg))
			r.Patch("/", controllers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{productId}", controllers.CartRemoveItem(d.Cart, logg))
			r.Post("/coupon", controllers.CartApplyCoupon(d.Coupons, d.Checkout, logg))
			r.Delete("/coupon", controllers.CartRemoveCoupon(d.Coupons, d.Checkout, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/preview", controllers.CheckoutPreview(d.Checkout, logg))
			r.Post("/", controllers.CheckoutPlace(d.Checkout, logg))
			r.Post("/razorpay", controllers.CheckoutRazorpay(d.Checkout, logg))
			r.Post("/razorpay/verify", controllers.CheckoutRazorpayVerify(d.Checkout, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(d.Orders, logg))
			r.Get("/{id}", controllers.OrderGet(d.Orders, logg))
			r.Post("/{id}/cancel", controllers.OrderCancel(d.Orders, logg))
			r.Post("/{id}/items/{itemId}/cancel", controllers.OrderCancelItem(d.Orders, logg))
			r.Post("/{id}/items/{itemId}/return", controllers.OrderReturnItem(d.Orders, logg))
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", controllers.WalletGet(d.Wallet, logg))
			r.Get("/transactions", controllers.WalletTransactions(d.Wallet, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistGet(d.Wishlist, logg))
			r.Post("/", controllers.WishlistAdd(d.Wishlist, logg))
			r.Delete("/{productId}", controllers.WishlistRemove(d.Wishlist, logg))
			r.Post("/{productId}/move-to-cart", controllers.WishlistMoveToCart(d.Wishlist, logg))
		})

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", controllers.AddressList(d.Addresses, logg))
			r.Post("/", controllers.AddressCreate(d.Addresses, logg))
			r.Put("/{id}", controllers.AddressUpdate(d.Addresses, logg))
			r.Delete("/{id}", controllers.AddressDelete(d.Addresses, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(d.Config.JWT, revoker, logg),
			middleware.RequireRole(enums.UserRoleAdmin.String(), logg),
			middleware.Idempotency(idemStore, logg),
		)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrderList(d.Orders, logg))
			r.Get("/{id}", controllers.AdminOrderGet(d.Orders, logg))
			r.Post("/{id}/status", controllers.AdminOrderUpdateStatus(d.Orders, logg))
			r.Post("/{id}/items/{itemId}/return/resolve", controllers.AdminOrderResolveReturn(d.Orders, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminProductCreate(d.Products, logg))
			r.Patch("/{id}", controllers.AdminProductUpdate(d.Products, logg))
			r.Delete("/{id}", controllers.AdminProductDelete(d.Products, logg))
		})
		r.Post("/categories", controllers.AdminCategoryCreate(d.Products, logg))

		r.Route("/offers", func(r chi.Router) {
			r.Get("/", controllers.AdminOfferList(d.Offers, logg))
			r.Post("/", controllers.AdminOfferCreate(d.Offers, logg))
			r.Patch("/{id}", controllers.AdminOfferUpdate(d.Offers, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.AdminCouponList(d.Coupons, logg))
			r.Post("/", controllers.AdminCouponCreate(d.Coupons, logg))
		})

		r.Get("/reports/sales", controllers.AdminSalesReport(d.Reports, logg))
	})

	return r
}
