package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/infra/auth"
	"bookstore/internal/infra/db"
	"bookstore/internal/infra/lock"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/logger"
	"bookstore/internal/scheduler"
	"bookstore/internal/server"
	"bookstore/internal/usecase"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envは無くてもよい
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel)

	//DB接続
	gormDB, err := db.Connect(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("connect db")
	}
	if err := db.Migrate(gormDB); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.WithError(err).Fatal("sql db")
	}
	defer sqlDB.Close()

	clock := &realClock{}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB, clock)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	bookRepo := infraRepo.NewBookGormRepository(gormDB)
	ppRepo := infraRepo.NewPickupPointGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB, clock)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)

	tokens := auth.NewJWTProvider(cfg.JWTSecret, 15*time.Minute)

	//Usecase生成
	cartUC := usecase.NewCartUsecase(txm, cartRepo, cartRepo, bookRepo, clock)
	orderUC := usecase.NewOrderUsecase(txm, clock)
	staffUC := usecase.NewStaffOrderUsecase(txm, clock)
	queryUC := usecase.NewOrderQueryUsecase(orderRepo, orderItemRepo, bookRepo, ppRepo, userRepo, auditRepo)
	reconcileUC := usecase.NewReconcileUsecase(txm, orderRepo, orderItemRepo, clock, cfg.PickupDeadline)

	//Server
	e := server.New(log, server.Handlers{
		Tokens:   tokens,
		Users:    userRepo,
		Health:   handler.NewHealthHandler(sqlDB),
		Cart:     handler.NewCartHandler(cartUC),
		Order:    handler.NewOrderHandler(orderUC, queryUC),
		Payment:  handler.NewPaymentHandler(orderUC, cfg.PaymentWebhookSecret),
		StaffOrd: handler.NewStaffOrderHandler(staffUC, queryUC),
	})

	//定期処理（REDIS_ADDRがあればレプリカ間でロック）
	var locker scheduler.Locker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, cfg.SweepLockTTL)
	}
	runner := scheduler.NewRunner(log, locker,
		scheduler.Job{
			Name:     "cancel-expired-orders",
			Interval: cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				return reconcileUC.CancelExpiredOrders(ctx).Err
			},
		},
		scheduler.Job{
			Name:     "mark-overdue-rentals",
			Interval: cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				return reconcileUC.MarkOverdueRentals(ctx).Err
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()

	addr := ":" + cfg.Port
	if cfg.Port != "" && cfg.Port[0] == ':' {
		addr = cfg.Port
	}
	log.WithField("addr", addr).Info("server starting")

	if err := server.Start(ctx, e, addr); err != nil {
		log.WithError(err).Error("server stopped")
		stop()
	}
	wg.Wait()
	log.Info("bye")
}
