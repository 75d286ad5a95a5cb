// Package dispatch orchestrates sending a message: durable write first, then a
// best-effort publish to the queue.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/metrics"
	"github.com/abdghn/youapp-be-test/internal/models"
	"github.com/abdghn/youapp-be-test/internal/queue"
	"github.com/abdghn/youapp-be-test/internal/store"
)

// DefaultPublishTimeout bounds a publish when none is configured.
const DefaultPublishTimeout = 5 * time.Second

// Observer is notified of every message sent successfully. It runs after
// the publish attempt and cannot fail the send.
type Observer func(msg *models.Message)

type Dispatcher struct {
	messages       store.MessageStore
	publisher      queue.Publisher
	publishTimeout time.Duration
	observers      []Observer
	publishFailing atomic.Bool
}

func New(messages store.MessageStore, publisher queue.Publisher, publishTimeout time.Duration) *Dispatcher {
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &Dispatcher{messages: messages, publisher: publisher, publishTimeout: publishTimeout}
}

// Observe registers fn to run after each successful send. Not safe to call
// once the dispatcher is serving.
func (d *Dispatcher) Observe(fn Observer) {
	d.observers = append(d.observers, fn)
}

// Send persists the message and then publishes it. A store failure is
// returned before anything is published. A publish failure is logged and
// dropped; the persisted record is returned either way.
func (d *Dispatcher) Send(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	msg, err := d.messages.CreateMessage(ctx, senderID, receiverID, content)
	if err != nil {
		return nil, err
	}
	metrics.IncMsgPersisted()

	d.publish(ctx, msg)
	for _, fn := range d.observers {
		fn(msg)
	}
	return msg, nil
}

func (d *Dispatcher) publish(ctx context.Context, msg *models.Message) {
	// the record is already stored; a caller hanging up must not abort delivery
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.publishTimeout)
	defer cancel()

	err := d.publisher.Publish(pctx, msg)
	d.publishFailing.Store(err != nil)
	if err != nil {
		metrics.IncPublishFailure()
		logger.Error("publish failed, message stored but not queued", err,
			logger.FieldKV("message_id", msg.ID),
			logger.FieldKV("receiver_id", msg.ReceiverID))
	}
}

// QueueHealthy reports whether the most recent publish succeeded.
func (d *Dispatcher) QueueHealthy() bool {
	return !d.publishFailing.Load()
}

// GetMessages lists the inbox of receiverID.
func (d *Dispatcher) GetMessages(ctx context.Context, receiverID string) ([]models.MessageView, error) {
	return d.messages.ListForReceiver(ctx, receiverID)
}
