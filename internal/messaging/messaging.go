package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/procura/internal/config"
)

// HeaderEventType carries the domain event name on every published message.
const HeaderEventType = "event_type"

const (
	retryBackoff    = 500 * time.Millisecond
	maxRetryBackoff = 30 * time.Second

	memoryRedeliveryDelay = 10 * time.Millisecond
)

// Message is a message published to or consumed from the bus.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Time      time.Time
}

// EventType returns the event name header, if any.
func (m Message) EventType() string {
	return m.Headers[HeaderEventType]
}

// Handler processes an inbound message.
type Handler func(context.Context, Message) error

// Client is the pluggable messaging abstraction.
type Client interface {
	Publish(ctx context.Context, msg Message) error
	Consume(ctx context.Context, handler Handler) error
	Topic() string
}

// Module wires the messaging client.
var Module = fx.Provide(NewClient)

// NewClient builds a messaging client based on configuration.
func NewClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	if !cfg.Messaging.Enabled || cfg.Messaging.Driver == "noop" {
		logger.Info("messaging disabled; using noop client")
		return noopClient{topic: cfg.Messaging.Kafka.Topic}, nil
	}

	switch cfg.Messaging.Driver {
	case "kafka":
		return newKafkaClient(lc, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported messaging driver: %s", cfg.Messaging.Driver)
	}
}

type noopClient struct {
	topic string
}

func (n noopClient) Publish(context.Context, Message) error { return nil }

func (n noopClient) Consume(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (n noopClient) Topic() string { return n.topic }

// MemoryClient is an in-process bus. Published messages are delivered to
// Consume in order; a failed handler causes redelivery of the same message.
type MemoryClient struct {
	topic string
	ch    chan Message

	mu     sync.Mutex
	offset int64
}

// NewMemoryClient returns a MemoryClient buffering up to size messages.
func NewMemoryClient(topic string, size int) *MemoryClient {
	return &MemoryClient{topic: topic, ch: make(chan Message, size)}
}

func (m *MemoryClient) Publish(ctx context.Context, msg Message) error {
	m.mu.Lock()
	msg.Offset = m.offset
	m.offset++
	m.mu.Unlock()

	msg.Topic = m.topic
	if msg.Time.IsZero() {
		msg.Time = time.Now().UTC()
	}
	select {
	case m.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MemoryClient) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-m.ch:
			for handler(ctx, msg) != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(memoryRedeliveryDelay):
				}
			}
		}
	}
}

func (m *MemoryClient) Topic() string { return m.topic }

type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) *kafkaClient {
	k := cfg.Messaging.Kafka

	writer := &kafka.Writer{
		Addr:         kafka.TCP(k.Brokers...),
		Topic:        k.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger, errors: true},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          k.Topic,
		MinBytes:       k.MinBytes,
		MaxBytes:       k.MaxBytes,
		CommitInterval: k.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  k.ConnectTimeout,
			ClientID: k.ClientID,
		},
	})

	client := &kafkaClient{writer: writer, reader: reader, topic: k.Topic, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")
			return errors.Join(writer.Close(), reader.Close())
		},
	})

	return client
}

// Publish writes msg keyed by order id so events of one order stay on one
// partition and keep their order.
func (k *kafkaClient) Publish(ctx context.Context, msg Message) error {
	out := kafka.Message{Key: msg.Key, Value: msg.Value}
	for key, value := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: key, Value: []byte(value)})
	}
	return k.writer.WriteMessages(ctx, out)
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if err := k.handle(ctx, msg, handler); err != nil {
			return err
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err), zap.Int64("offset", msg.Offset))
		}
	}
}

// handle retries handler on msg until it succeeds or ctx ends. Offsets are
// committed in order, so a failed message must not be skipped.
func (k *kafkaClient) handle(ctx context.Context, msg kafka.Message, handler Handler) error {
	in := fromKafka(msg)
	backoff := retryBackoff
	for {
		err := handler(ctx, in)
		if err == nil {
			return nil
		}
		k.logger.Error("message handler failed",
			zap.Error(err),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Duration("retry_in", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff < maxRetryBackoff {
			backoff *= 2
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

func fromKafka(msg kafka.Message) Message {
	out := Message{
		Topic:     msg.Topic,
		Key:       append([]byte(nil), msg.Key...),
		Value:     append([]byte(nil), msg.Value...),
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Time:      msg.Time,
	}
	if len(msg.Headers) > 0 {
		out.Headers = make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			out.Headers[h.Key] = string(h.Value)
		}
	}
	return out
}

type kafkaLogger struct {
	logger *zap.Logger
	errors bool
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	if k.errors {
		k.logger.Sugar().Warnf(msg, args...)
		return
	}
	k.logger.Sugar().Debugf(msg, args...)
}
