package queue

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/logger"
	"github.com/abdghn/youapp-be-test/internal/metrics"
	"github.com/abdghn/youapp-be-test/internal/models"
)

// Kafka publishes to a topic named after the queue, keyed by message id.
type Kafka struct {
	broker string
	topic  string
	dialer *kafka.Dialer

	mu     sync.Mutex
	writer *kafka.Writer
}

func NewKafka(broker, topic string, dialTimeout time.Duration) *Kafka {
	return &Kafka{
		broker: broker,
		topic:  topic,
		dialer: &kafka.Dialer{Timeout: dialTimeout},
	}
}

func (k *Kafka) Connect(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.connectLocked(ctx)
}

func (k *Kafka) connectLocked(ctx context.Context) error {
	if k.writer != nil {
		return nil
	}
	if err := k.ensureTopic(ctx); err != nil {
		return apperr.PublishUnavailable(err, "create topic %s", k.topic)
	}
	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(k.broker),
		Topic:        k.topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    &kafka.Transport{Dial: (&net.Dialer{Timeout: k.dialer.Timeout}).DialContext},
	}
	metrics.IncQueueConnect()
	logger.Info("queue connected", logger.FieldKV("topic", k.topic), logger.FieldKV("broker", k.broker))
	return nil
}

// ensureTopic creates the topic on the cluster controller. An existing
// topic counts as success.
func (k *Kafka) ensureTopic(ctx context.Context) error {
	conn, err := k.dialer.DialContext(ctx, "tcp", k.broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	ctrl, err := k.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafka.TopicConfig{Topic: k.topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

func (k *Kafka) Publish(ctx context.Context, msg *models.Message) error {
	body, err := Encode(msg)
	if err != nil {
		return apperr.PublishUnavailable(err, "encode message %s", msg.ID)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.connectLocked(ctx); err != nil {
		return err
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.ID),
		Value:   body,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte(ContentType)}},
		Time:    msg.CreatedAt,
	})
	if err != nil {
		_ = k.writer.Close()
		k.writer = nil
		return apperr.PublishUnavailable(err, "publish message %s", msg.ID)
	}
	metrics.IncMsgPublished()
	logger.Debug("message published", logger.FieldKV("message_id", msg.ID), logger.FieldKV("topic", k.topic))
	return nil
}

func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.writer == nil {
		return nil
	}
	err := k.writer.Close()
	k.writer = nil
	return err
}
