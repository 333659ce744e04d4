package service

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PaymentConfirmedQueue 支付确认消息队列名
const PaymentConfirmedQueue = "payment_confirmed"

// ConfirmedMessage 支付确认消息体，worker 侧据此扣减库存
type ConfirmedMessage struct {
	OrderID   int64  `json:"order_id"`
	Reference string `json:"reference"`
}

type queuePublisher struct {
	conn *amqp.Connection
}

// NewQueuePublisher 基于 RabbitMQ 的确认消息发布器
func NewQueuePublisher(conn *amqp.Connection) ConfirmedPublisher {
	return &queuePublisher{conn: conn}
}

func (p *queuePublisher) PublishConfirmed(ctx context.Context, orderID int64, reference string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(PaymentConfirmedQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(&ConfirmedMessage{
		OrderID:   orderID,
		Reference: reference,
	})
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		"",
		PaymentConfirmedQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}
