package queue

import (
	"context"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/metrics"
	"github.com/abdghn/youapp-be-test/internal/models"
)

// Connection is the part of an AMQP connection the publisher uses.
type Connection interface {
	Channel() (Channel, error)
	IsClosed() bool
	Close() error
}

// Channel is the part of an AMQP channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// DialFunc opens a broker connection.
type DialFunc func(ctx context.Context, url string) (Connection, error)

type amqpConnection struct{ *amqp.Connection }

func (c amqpConnection) Channel() (Channel, error) { return c.Connection.Channel() }

// DialAMQP returns a DialFunc bounded by timeout or by ctx's deadline,
// whichever comes first. The bound covers the TCP connect and the AMQP
// handshake.
func DialAMQP(timeout time.Duration) DialFunc {
	return func(ctx context.Context, url string) (Connection, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		dial := func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Deadline: deadline}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// cleared by the client once the handshake completes
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		}
		conn, err := amqp.DialConfig(url, amqp.Config{Dial: dial})
		if err != nil {
			return nil, err
		}
		return amqpConnection{conn}, nil
	}
}

// AMQP publishes to a durable queue on the default exchange. One connection
// and one channel are shared by every caller. The one-slot guard serializes
// connection setup and publishes since a channel is not safe for concurrent
// writers; waiting for it honours the caller's context.
type AMQP struct {
	url   string
	queue string
	dial  DialFunc

	guard chan struct{}
	conn  Connection
	ch    Channel
}

func NewAMQP(url, queue string, dial DialFunc) *AMQP {
	return &AMQP{url: url, queue: queue, dial: dial, guard: make(chan struct{}, 1)}
}

func (a *AMQP) lock(ctx context.Context) error {
	select {
	case a.guard <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperr.PublishUnavailable(ctx.Err(), "wait for broker connection")
	}
}

func (a *AMQP) unlock() { <-a.guard }

func (a *AMQP) Connect(ctx context.Context) error {
	if err := a.lock(ctx); err != nil {
		return err
	}
	defer a.unlock()
	return a.connectLocked(ctx)
}

func (a *AMQP) connectLocked(ctx context.Context) error {
	if a.conn != nil && !a.conn.IsClosed() {
		return nil
	}
	a.resetLocked()

	conn, err := a.dial(ctx, a.url)
	if err != nil {
		return apperr.PublishUnavailable(err, "dial broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return apperr.PublishUnavailable(err, "open channel")
	}
	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return apperr.PublishUnavailable(err, "declare queue %s", a.queue)
	}
	a.conn, a.ch = conn, ch
	metrics.IncQueueConnect()
	logger.Info("queue connected", logger.FieldKV("queue", a.queue))
	return nil
}

// resetLocked drops the cached connection so the next call redials.
func (a *AMQP) resetLocked() {
	if a.ch != nil {
		_ = a.ch.Close()
	}
	if a.conn != nil && !a.conn.IsClosed() {
		_ = a.conn.Close()
	}
	a.conn, a.ch = nil, nil
}

func (a *AMQP) Publish(ctx context.Context, msg *models.Message) error {
	body, err := Encode(msg)
	if err != nil {
		return apperr.PublishUnavailable(err, "encode message %s", msg.ID)
	}

	if err := a.lock(ctx); err != nil {
		return err
	}
	defer a.unlock()
	if err := a.connectLocked(ctx); err != nil {
		return err
	}
	err = a.ch.PublishWithContext(ctx, "", a.queue, false, false, amqp.Publishing{
		ContentType:  ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Timestamp:    msg.CreatedAt,
		Body:         body,
	})
	if err != nil {
		a.resetLocked()
		return apperr.PublishUnavailable(err, "publish message %s", msg.ID)
	}
	metrics.IncMsgPublished()
	logger.Debug("message published", logger.FieldKV("message_id", msg.ID), logger.FieldKV("queue", a.queue))
	return nil
}

func (a *AMQP) Close() error {
	_ = a.lock(context.Background())
	defer a.unlock()
	var err error
	if a.ch != nil {
		err = a.ch.Close()
	}
	if a.conn != nil && !a.conn.IsClosed() {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	a.conn, a.ch = nil, nil
	return err
}
