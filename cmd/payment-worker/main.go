package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/example/goshop/internal/config"
	"github.com/example/goshop/internal/infra/mq"
	"github.com/example/goshop/internal/infra/redis"
	"github.com/example/goshop/internal/repository/mysql"
	"github.com/example/goshop/internal/service"
)

// 消费 payment_confirmed 队列，对已支付订单执行幂等库存扣减。
// 手动确认模式：处理成功才 Ack，暂时性失败 Nack 重回队列。
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
	mqConn, err := mq.New(&cfg.RabbitMQ)
	if err != nil {
		logger.Fatal("failed to connect rabbitmq", zap.Error(err))
	}
	defer mqConn.Close()
	redisClient, err := redis.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	monitor := service.NewMonitor(prometheus.DefaultRegisterer)
	stockSvc := service.NewStockService(db, redisClient, monitor, logger)

	ch, err := mqConn.Channel()
	if err != nil {
		logger.Fatal("failed to open channel", zap.Error(err))
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(service.PaymentConfirmedQueue, true, false, false, false, nil); err != nil {
		logger.Fatal("failed to declare queue", zap.Error(err))
	}

	msgs, err := ch.Consume(service.PaymentConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal("failed to consume", zap.Error(err))
	}

	logger.Info("payment worker started, waiting for messages")

	for d := range msgs {
		var m service.ConfirmedMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			logger.Warn("invalid message, dropping", zap.Error(err))
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}

		if err := stockSvc.DecrementForOrder(context.Background(), m.OrderID); err != nil {
			logger.Error("stock decrement failed, requeueing",
				zap.Int64("order_id", m.OrderID), zap.Error(err))
			_ = d.Nack(false, true)
			continue
		}

		logger.Info("stock decremented",
			zap.Int64("order_id", m.OrderID),
			zap.String("reference", m.Reference))
		if err := d.Ack(false); err != nil {
			logger.Warn("failed to ack message", zap.Error(err))
		}
	}
}
