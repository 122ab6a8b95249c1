package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher is the part of *amqp091.Channel the AMQP sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Message is the JSON body of a published event.
type Message struct {
	Event     string `json:"event"`
	Params    Params `json:"params,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

const (
	amqpQueueSize      = 256
	amqpPublishTimeout = 5 * time.Second
)

// AMQP publishes events to a durable direct exchange. Log only enqueues;
// a background goroutine publishes. Events are dropped when the queue is full
// and publish failures are logged, never returned.
type AMQP struct {
	pub        Publisher
	exchange   string
	routingKey string
	logger     *slog.Logger
	now        func() time.Time

	queue   chan Message
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	closer  func() error
}

// NewAMQP creates a sink publishing through pub and starts its worker.
func NewAMQP(pub Publisher, exchange, routingKey string, logger *slog.Logger) *AMQP {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AMQP{
		pub:        pub,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
		now:        time.Now,
		queue:      make(chan Message, amqpQueueSize),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go a.run()
	return a
}

// DialAMQP connects to url, declares the exchange and returns a sink that
// owns the connection.
func DialAMQP(url, exchange, routingKey string, logger *slog.Logger) (*AMQP, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	a := NewAMQP(channel, exchange, routingKey, logger)
	a.closer = func() error {
		channel.Close()
		return conn.Close()
	}
	return a, nil
}

// Log implements Sink. Events logged after Close are discarded.
func (a *AMQP) Log(ctx context.Context, event string, params Params) {
	select {
	case <-a.done:
		return
	default:
	}

	msg := Message{Event: event, Params: params, Timestamp: a.now().UnixMilli()}
	select {
	case a.queue <- msg:
	default:
		a.logger.WarnContext(ctx, "Analytics queue full, dropping event", "event", event)
	}
}

// Close stops accepting events, publishes what is queued and releases the
// connection if the sink owns one.
func (a *AMQP) Close() error {
	var err error
	a.once.Do(func() {
		close(a.done)
		<-a.stopped
		if a.closer != nil {
			err = a.closer()
		}
	})
	return err
}

func (a *AMQP) run() {
	defer close(a.stopped)
	for {
		select {
		case msg := <-a.queue:
			a.publish(msg)
		case <-a.done:
			for {
				select {
				case msg := <-a.queue:
					a.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (a *AMQP) publish(msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		a.logger.Warn("Failed to encode analytics event", "event", msg.Event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), amqpPublishTimeout)
	defer cancel()

	err = a.pub.PublishWithContext(
		ctx,
		a.exchange,   // exchange
		a.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.UnixMilli(msg.Timestamp),
			Type:         msg.Event,
			Body:         body,
		},
	)
	if err != nil {
		a.logger.Warn("Failed to publish analytics event", "event", msg.Event, "error", err)
		return
	}
	a.logger.Debug("Published analytics event", "event", msg.Event, "exchange", a.exchange)
}
