package main

import (
	"context"
	"log"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/infra/redis"
	"github.com/example/goshop/internal/repository/mysql"
	"github.com/example/goshop/internal/server"
	"github.com/example/goshop/internal/service"
)

func main() {
	cfg, err := config.Load("./config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := mysql.Open(&cfg.MySQL)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	redisClient, err := redis.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}

	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	monitor := service.NewMonitor(prometheus.DefaultRegisterer)
	productSvc := service.NewProductService(productRepo)
	pricingSvc := service.NewPricingService(productRepo, &cfg.Shipping)
	orderSvc := service.NewOrderService(orderRepo, pricingSvc, monitor)
	stockSvc := service.NewStockService(db, redisClient, monitor, logger)

	app := iris.New()
	server.RegisterAdminRoutes(app, &server.AdminAPI{
		Orders:   orderSvc,
		Products: productSvc,
		Stock:    stockSvc,
		Gatherer: prometheus.DefaultGatherer,
		JWT:      &cfg.JWT,
		Logger:   logger,
	})

	iris.RegisterOnInterrupt(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
		_ = redisClient.Close()
		_ = mysql.Close(db)
	})

	addr := cfg.AdminServer.Addr()
	logger.Info("admin server listening", zap.String("addr", addr))
	if err := app.Listen(addr, iris.WithoutInterruptHandler); err != nil {
		logger.Fatal("failed to run admin server", zap.Error(err))
	}
}
