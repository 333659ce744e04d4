package main

import (
	"context"
	"log"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/infra/mq"
	"github.com/example/goshop/internal/infra/paystack"
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

	// 基础设施：先连好再开始服务
	db, err := mysql.Open(&cfg.MySQL)
	if err != nil {
		logger.Fatal("failed to connect mysql", zap.Error(err))
	}
	mqConn, err := mq.New(&cfg.RabbitMQ)
	if err != nil {
		logger.Fatal("failed to connect rabbitmq", zap.Error(err))
	}

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	monitor := service.NewMonitor(prometheus.DefaultRegisterer)
	gateway := paystack.New(&cfg.Paystack)
	publisher := service.NewQueuePublisher(mqConn)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	productSvc := service.NewProductService(productRepo)
	pricingSvc := service.NewPricingService(productRepo, &cfg.Shipping)
	orderSvc := service.NewOrderService(orderRepo, pricingSvc, monitor)
	paymentSvc := service.NewPaymentService(orderSvc, userRepo, gateway, publisher, monitor, logger)

	app := iris.New()
	server.RegisterRoutes(app, &server.API{
		Users:    userSvc,
		Products: productSvc,
		Orders:   orderSvc,
		Payments: paymentSvc,
		JWT:      &cfg.JWT,
		Logger:   logger,
	})

	// 优雅退出：先排空在途请求，再关外部连接
	iris.RegisterOnInterrupt(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Shutdown(ctx)
		_ = mqConn.Close()
		_ = mysql.Close(db)
	})

	addr := cfg.Server.Addr()
	logger.Info("web server listening", zap.String("addr", addr))
	if err := app.Listen(addr, iris.WithoutInterruptHandler); err != nil {
		logger.Fatal("failed to run web server", zap.Error(err))
	}
}
