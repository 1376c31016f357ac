package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// WalletEvent is the message emitted after a settled money movement.
// Consumers drive notifications and analytics off it; nothing in the money
// path depends on delivery.
type WalletEvent struct {
	OperationID string    `json:"operationId,omitempty"`
	Kind        string    `json:"kind"`
	UserID      string    `json:"userId"`
	PeerID      string    `json:"peerId,omitempty"`
	Amount      int64     `json:"amount"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Publisher pushes wallet events onto a durable RabbitMQ queue. Publish
// failures are logged and swallowed: event delivery is best effort and must
// never fail a transaction that has already settled.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *logrus.Logger
}

func NewPublisher(url, queue string, log *logrus.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, queue: queue, log: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, ev WalletEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).Error("[EVENTS] event not serializable, dropped")
		return
	}
	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	})
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"kind":    ev.Kind,
			"user_id": ev.UserID,
		}).Error("[EVENTS] publish failed, event dropped")
	}
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
