package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/streadway/amqp"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
)

const defaultPublishTimeout = 5 * time.Second

// RabbitConfig describes the outgoing exchange.
type RabbitConfig struct {
	Exchange     string
	ExchangeType string
	Timeout      time.Duration
}

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes events to a topic exchange with the event topic
// as routing key and waits for the broker to confirm each message.
type RabbitPublisher struct {
	cfg      RabbitConfig
	ch       amqpChannel
	confirms chan amqp.Confirmation

	mu  sync.Mutex
	tag uint64
}

// NewRabbitPublisher opens a confirm-mode channel on conn and declares the exchange.
func NewRabbitPublisher(conn *amqp.Connection, cfg RabbitConfig) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open producer channel")
	}
	p, err := newRabbitPublisher(ch, cfg)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return p, nil
}

func newRabbitPublisher(ch amqpChannel, cfg RabbitConfig) (*RabbitPublisher, error) {
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPublishTimeout
	}
	if err := ch.Confirm(false); err != nil {
		return nil, errors.Wrap(err, "enable publisher confirms")
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	err := ch.ExchangeDeclare(
		cfg.Exchange,
		cfg.ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "declare exchange %s", cfg.Exchange)
	}
	obs.Logger.Info("rabbitmq_exchange_declared", "exchange", cfg.Exchange, "type", cfg.ExchangeType)
	return &RabbitPublisher{cfg: cfg, ch: ch, confirms: confirms}, nil
}

// Publish sends ev and blocks until the broker acks it, the confirm timeout
// elapses or ctx is done.
func (p *RabbitPublisher) Publish(ctx context.Context, ev model.DomainEvent) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.Publish(p.cfg.Exchange, ev.Topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.ProducedAt,
		Headers:      amqp.Table{"key": ev.Key},
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", ev.Topic)
	}
	p.tag++
	want := p.tag

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()
	for {
		select {
		case c, ok := <-p.confirms:
			if !ok {
				return errors.New("publisher channel closed")
			}
			if c.DeliveryTag < want {
				// late confirm of a publish that already timed out
				continue
			}
			if !c.Ack {
				return errors.Errorf("broker nacked %s", ev.Topic)
			}
			obs.Logger.Debug("event_published", "topic", ev.Topic, "key", ev.Key, "tag", c.DeliveryTag)
			return nil
		case <-timer.C:
			return errors.Errorf("confirm timeout for %s", ev.Topic)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *RabbitPublisher) Close() error { return p.ch.Close() }

// ConsumerConfig binds a durable queue to the event exchange.
type ConsumerConfig struct {
	Exchange     string
	ExchangeType string
	Queue        string
	BindingKey   string
	Prefetch     int
	Tag          string
}

// Message is a decoded delivery awaiting settlement.
type Message struct {
	Envelope
	d amqp.Delivery
}

// Ack settles the message as processed.
func (m Message) Ack() error { return m.d.Ack(false) }

// Reject drops the message without requeueing it.
func (m Message) Reject() error { return m.d.Nack(false, false) }

// Requeue returns the message to the queue for another attempt.
func (m Message) Requeue() error { return m.d.Nack(false, true) }

// RabbitConsumer delivers messages from a bound queue with manual acks.
type RabbitConsumer struct {
	cfg        ConsumerConfig
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
	log        *slog.Logger
}

// NewRabbitConsumer declares the exchange, queue and binding and starts consuming.
func NewRabbitConsumer(conn *amqp.Connection, cfg ConsumerConfig) (*RabbitConsumer, error) {
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open consumer channel")
	}
	fail := func(err error) (*RabbitConsumer, error) {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return fail(errors.Wrap(err, "set qos"))
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		return fail(errors.Wrapf(err, "declare exchange %s", cfg.Exchange))
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fail(errors.Wrapf(err, "declare queue %s", cfg.Queue))
	}
	if err := ch.QueueBind(cfg.Queue, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		return fail(errors.Wrapf(err, "bind %s to %s", cfg.Queue, cfg.Exchange))
	}
	deliveries, err := ch.Consume(cfg.Queue, cfg.Tag, false, false, false, false, nil)
	if err != nil {
		return fail(errors.Wrap(err, "register consumer"))
	}
	obs.Logger.Info("rabbitmq_consumer_started", "queue", cfg.Queue, "binding", cfg.BindingKey)
	return &RabbitConsumer{cfg: cfg, ch: ch, deliveries: deliveries, log: obs.Logger}, nil
}

// Run hands every decodable delivery to handle until ctx is done or the
// channel closes. handle owns settlement of the message. Undecodable
// deliveries are acked and dropped.
func (c *RabbitConsumer) Run(ctx context.Context, handle func(Message)) error {
	return consume(ctx, c.deliveries, handle, c.log)
}

func (c *RabbitConsumer) Close() error { return c.ch.Close() }

func consume(ctx context.Context, deliveries <-chan amqp.Delivery, handle func(Message), log *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			env, err := Decode(d.Body)
			if err != nil {
				log.Warn("event_dropped", "routing_key", d.RoutingKey, "message_id", d.MessageId, "error", err)
				if err := d.Ack(false); err != nil {
					log.Error("ack_failed", "message_id", d.MessageId, "error", err)
				}
				continue
			}
			handle(Message{Envelope: env, d: d})
		}
	}
}
