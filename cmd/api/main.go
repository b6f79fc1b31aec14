package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookhaven/bookhaven-backend/api/routes"
	"github.com/bookhaven/bookhaven-backend/internal/addresses"
	"github.com/bookhaven/bookhaven-backend/internal/cart"
	"github.com/bookhaven/bookhaven-backend/internal/checkout"
	"github.com/bookhaven/bookhaven-backend/internal/coupons"
	"github.com/bookhaven/bookhaven-backend/internal/offers"
	"github.com/bookhaven/bookhaven-backend/internal/orders"
	"github.com/bookhaven/bookhaven-backend/internal/pricing"
	"github.com/bookhaven/bookhaven-backend/internal/products"
	"github.com/bookhaven/bookhaven-backend/internal/refunds"
	"github.com/bookhaven/bookhaven-backend/internal/reports"
	"github.com/bookhaven/bookhaven-backend/internal/wallet"
	"github.com/bookhaven/bookhaven-backend/internal/wishlist"
	"github.com/bookhaven/bookhaven-backend/pkg/config"
	"github.com/bookhaven/bookhaven-backend/pkg/db"
	"github.com/bookhaven/bookhaven-backend/pkg/logger"
	"github.com/bookhaven/bookhaven-backend/pkg/metrics"
	"github.com/bookhaven/bookhaven-backend/pkg/migrate"
	"github.com/bookhaven/bookhaven-backend/pkg/razorpay"
	"github.com/bookhaven/bookhaven-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	gorm := dbClient.DB()

	productSvc, err := products.NewService(products.NewRepository(gorm), logg)
	requireResource(ctx, logg, "product service", err)

	offerSvc, err := offers.NewService(offers.NewRepository(gorm), logg)
	requireResource(ctx, logg, "offer service", err)

	couponRepo := coupons.NewRepository(gorm)
	couponSvc, err := coupons.NewService(couponRepo, redisClient, logg)
	requireResource(ctx, logg, "coupon service", err)

	builder, err := pricing.NewBuilder(offerSvc, couponSvc, cfg.Checkout, logg)
	requireResource(ctx, logg, "pricing builder", err)

	cartSvc, err := cart.NewService(cart.NewRepository(gorm), productSvc, cfg.Checkout, logg)
	requireResource(ctx, logg, "cart service", err)

	walletSvc, err := wallet.NewService(wallet.NewRepository(gorm), logg)
	requireResource(ctx, logg, "wallet service", err)

	refundCalc, err := refunds.NewCalculator(logg)
	requireResource(ctx, logg, "refund calculator", err)

	orderSvc, err := orders.NewService(
		dbClient,
		orders.NewRepository(gorm),
		walletSvc,
		refundCalc,
		couponRepo,
		productSvc,
		storefrontMetrics,
		logg,
	)
	requireResource(ctx, logg, "order service", err)

	addressSvc, err := addresses.NewService(addresses.NewRepository(gorm), logg)
	requireResource(ctx, logg, "address service", err)

	gateway, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
	requireResource(ctx, logg, "razorpay client", err)

	checkoutSvc, err := checkout.NewService(checkout.Deps{
		DB:        dbClient,
		Repo:      checkout.NewRepository(gorm),
		Cart:      cartSvc,
		Builder:   builder,
		Coupons:   couponSvc,
		Stock:     productSvc,
		Wallet:    walletSvc,
		Orders:    orderSvc,
		Addresses: addressSvc,
		Gateway:   gateway,
		Config:    cfg.Checkout,
		Metrics:   storefrontMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	wishlistSvc, err := wishlist.NewService(wishlist.NewRepository(gorm), productSvc, cartSvc, logg)
	requireResource(ctx, logg, "wishlist service", err)

	reportSvc, err := reports.NewService(reports.NewRepository(gorm), logg)
	requireResource(ctx, logg, "report service", err)

	router := routes.NewRouter(routes.Deps{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),

		Products:  productSvc,
		Cart:      cartSvc,
		Coupons:   couponSvc,
		Offers:    offerSvc,
		Checkout:  checkoutSvc,
		Orders:    orderSvc,
		Wallet:    walletSvc,
		Wishlist:  wishlistSvc,
		Addresses: addressSvc,
		Reports:   reportSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
