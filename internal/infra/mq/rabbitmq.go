package mq

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/goshop/internal/config"
)

// New 建立 RabbitMQ 连接。调用方持有句柄并在退出时 Close。
func New(cfg *config.RabbitMQConfig) (*amqp.Connection, error) {
	return amqp.Dial(cfg.URL)
}
