package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/metrics"
)

// dialTimeout bounds a redial on the request path.
const dialTimeout = 2 * time.Second

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// connectFunc opens a channel with the exchange declared.  The returned
// closer releases the underlying connection.
type connectFunc func() (channel, func() error, error)

// Publisher sends reservation events to the topic exchange over one
// long-lived channel.  A failed publish drops the channel and the next call
// redials.  Three consecutive failures open a circuit breaker and publishes
// fail fast until it half-opens.
type Publisher struct {
	connect connectFunc
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

// NewPublisher returns a publisher for the broker at url.  It connects
// lazily on the first Publish.
func NewPublisher(url string) *Publisher {
	return newPublisher(dialer(url))
}

func newPublisher(connect connectFunc) *Publisher {
	return &Publisher{
		connect: connect,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "rabbitmq-publisher",
			MaxRequests: 1,
			Timeout:     15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

func dialer(url string) connectFunc {
	return func() (channel, func() error, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: 10 * time.Second,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("channel open: %w", err)
		}
		if err := declareExchange(ch); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return ch, conn.Close, nil
	}
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// Publish sends ev with its Type as routing key.  Messages are persistent.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.send(ctx, ev.Type, msg)
	})
	switch {
	case err == nil:
		metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventsPublished.WithLabelValues(ev.Type, "breaker_open").Inc()
	default:
		metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
	}
	return err
}

func (p *Publisher) send(ctx context.Context, key string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		ch, closeConn, err := p.connect()
		if err != nil {
			return err
		}
		p.ch, p.closeConn = ch, closeConn
	}
	if err := p.ch.PublishWithContext(ctx, ExchangeName, key, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.closeConn != nil {
		_ = p.closeConn()
	}
	p.ch, p.closeConn = nil, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}
