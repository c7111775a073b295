package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/surajs41/RideEasy-Rental/internal/notify"
)

type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	DLX      string
	Prefetch int
	Name     string
}

// Acknowledger is the part of amqp.Delivery the consumer settles.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Consumer drains the emit queue into the broker.
type Consumer struct {
	cfg     ConsumerConfig
	emitter notify.Emitter

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(cfg ConsumerConfig, emitter notify.Emitter) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	return &Consumer{cfg: cfg, emitter: emitter}
}

func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbit dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel failed: %w", err)
	}

	fail := func(format string, err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf(format, err)
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail("declare exchange failed: %w", err)
	}

	args := amqp.Table{}
	if c.cfg.DLX != "" {
		args["x-dead-letter-exchange"] = c.cfg.DLX
		if err := ch.ExchangeDeclare(c.cfg.DLX, "topic", true, false, false, false, nil); err != nil {
			return fail("declare dlx failed: %w", err)
		}
		if _, err := ch.QueueDeclare(c.cfg.Queue+".dlq", true, false, false, false, nil); err != nil {
			return fail("declare dlq failed: %w", err)
		}
		if err := ch.QueueBind(c.cfg.Queue+".dlq", "#", c.cfg.DLX, false, nil); err != nil {
			return fail("bind dlq failed: %w", err)
		}
	}

	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fail("declare queue failed: %w", err)
	}
	if err := ch.QueueBind(q.Name, "notification.emit.*", c.cfg.Exchange, false, nil); err != nil {
		return fail("bind queue failed: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fail("set qos failed: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, c.cfg.Name, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume failed: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.Handle(ctx, d.RoutingKey, d.Body, &d)
		}
	}
}

// Handle emits one queued request. Malformed or invalid requests are
// dead-lettered, emit failures are requeued.
func (c *Consumer) Handle(ctx context.Context, key string, body []byte, ack Acknowledger) {
	var req notify.Request
	if err := json.Unmarshal(body, &req); err != nil {
		log.Printf("[mq] drop undecodable message key=%s: %v", key, err)
		_ = ack.Nack(false, false)
		return
	}

	if _, err := c.emitter.Emit(ctx, req); err != nil {
		if errors.Is(err, notify.ErrInvalidRequest) {
			log.Printf("[mq] drop invalid request key=%s: %v", key, err)
			_ = ack.Nack(false, false)
			return
		}
		log.Printf("[mq] emit failed key=%s: %v -> Nack&requeue", key, err)
		_ = ack.Nack(false, true)
		return
	}

	_ = ack.Ack(false)
}
