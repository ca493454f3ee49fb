package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"foodorder/internal/config"
	"foodorder/internal/handler"
	"foodorder/internal/infra/db"
	"foodorder/internal/infra/lock"
	"foodorder/internal/infra/payment"
	infraRepo "foodorder/internal/infra/repository"
	"foodorder/internal/infra/telemetry"
	"foodorder/internal/logger"
	"foodorder/internal/server"
	"foodorder/internal/usecase"
	"foodorder/internal/validator"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	//.envは無くてもよい
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service:   "foodorder-api",
		Env:       cfg.GoEnv,
		Level:     cfg.LogLevel,
		AddSource: !cfg.IsProd(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//OTLPの送り先が無いときはdebugのときだけトレースを出す
	var traceOut io.Writer
	if cfg.LogLevel == "debug" {
		traceOut = os.Stderr
	}
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: "foodorder-api",
		Version:     "dev",
		Endpoint:    cfg.OTLPEndpoint,
		Out:         traceOut,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()

	//DB接続
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	foodRepo := infraRepo.NewFoodGormRepository(gormDB)
	storeRepo := infraRepo.NewStoreGormRepository(gormDB)
	customerRepo := infraRepo.NewCustomerGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)

	//複数台で動かすときはRedisでロック
	var locker usecase.Locker = lock.NewMemoryLocker()
	if cfg.RedisURL != "" {
		rc, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rc.Close()
		locker = lock.NewRedisLocker(rc)
	}

	//決済ゲートウェイ（起動時に1回だけ作る）
	stripeGW := payment.NewStripeGateway(cfg.Payment, log)
	gateway := usecase.NewGatewayAdapter(stripeGW, cfg.Payment.GatewayTimeout)
	checkout := usecase.CheckoutBuilder{Currency: cfg.Payment.Currency, FrontendURL: cfg.FEURL}

	//Usecase生成
	accountUC := usecase.NewAccountUsecase(customerRepo, storeRepo,
		validator.NewAccountValidator(customerRepo, storeRepo), cfg.JWTSecret, log)
	catalogUC := usecase.NewCatalogUsecase(foodRepo, storeRepo, log)
	cartUC := usecase.NewCartUsecase(txm, foodRepo, log)
	orderUC := usecase.NewOrderUsecase(txm, foodRepo, storeRepo, orderRepo, orderItemRepo,
		usecase.NewPricing(cfg.Pricing), gateway, checkout, log)
	paymentUC := usecase.NewPaymentUsecase(txm, orderRepo, gateway, stripeGW, locker, usecase.VerifyLockTTL(cfg.Payment.GatewayTimeout), log)
	storeOrderUC := usecase.NewStoreOrderUsecase(txm, orderRepo, orderItemRepo, log)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Account:    handler.NewAccountHandler(accountUC),
		Catalog:    handler.NewCatalogHandler(catalogUC),
		Cart:       handler.NewCartHandler(cartUC),
		Order:      handler.NewOrderHandler(orderUC),
		Payment:    handler.NewPaymentHandler(paymentUC),
		StoreOrder: handler.NewStoreOrderHandler(storeOrderUC),
		Stores:     storeRepo,
	})

	//Server起動
	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Start(ctx, addr, e, log)
}
