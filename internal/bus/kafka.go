package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
)

// Compile-time check: KafkaBus implements Bus.
var _ Bus = (*KafkaBus)(nil)

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	ClientID      string
	Version       string // e.g. "2.8.0"
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if c.Topic == "" {
		c.Topic = "elasticpress.content"
	}
	if c.ClientID == "" {
		c.ClientID = "elasticpress"
	}
	if c.Version == "" {
		c.Version = "2.8.0"
	}
	return c
}

// KafkaBus publishes events to a Kafka topic and consumes them through a
// consumer group. Events are JSON encoded and keyed by content type so
// events for one type stay ordered.
type KafkaBus struct {
	cfg      KafkaConfig
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	closers  []func() error
	logger   *zap.Logger

	mu       sync.RWMutex
	handlers []Handler
	closed   bool
	started  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewKafkaBus connects to the brokers in cfg.
func NewKafkaBus(cfg KafkaConfig, logger *zap.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New("kafka consumer group cannot be empty")
	}
	cfg = cfg.withDefaults()

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid kafka version: %w", err)
	}

	sc := sarama.NewConfig()
	sc.Version = version
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Retry.Max = 3
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true
	sc.Net.DialTimeout = 10 * time.Second
	sc.Net.ReadTimeout = 10 * time.Second
	sc.Net.WriteTimeout = 10 * time.Second

	client, err := sarama.NewClient(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	group, err := sarama.NewConsumerGroupFromClient(cfg.ConsumerGroup, client)
	if err != nil {
		_ = producer.Close()
		_ = client.Close()
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	b := newKafkaBus(cfg, producer, group, logger)
	b.closers = append(b.closers, client.Close)
	return b, nil
}

func newKafkaBus(cfg KafkaConfig, producer sarama.SyncProducer, group sarama.ConsumerGroup, logger *zap.Logger) *KafkaBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaBus{
		cfg:      cfg.withDefaults(),
		producer: producer,
		group:    group,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish sends e to the configured topic.
func (b *KafkaBus) Publish(_ context.Context, e event.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: b.cfg.Topic,
		Key:   sarama.StringEncoder(e.ContentType),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(e.ID)},
		},
	}
	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish to kafka: %w", err)
	}
	return nil
}

// Subscribe registers h. The consumer group starts with the first subscriber.
func (b *KafkaBus) Subscribe(_ context.Context, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	b.handlers = append(b.handlers, h)

	if !b.started && b.group != nil {
		b.started = true
		b.wg.Add(2)
		go b.consume()
		go b.logErrors()
	}
	return nil
}

func (b *KafkaBus) consume() {
	defer b.wg.Done()

	handler := &consumerGroupHandler{bus: b}
	for {
		if err := b.group.Consume(b.ctx, []string{b.cfg.Topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			b.logger.Warn("kafka consume failed", zap.String("topic", b.cfg.Topic), zap.Error(err))
		}
		select {
		case <-b.ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (b *KafkaBus) logErrors() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case err, ok := <-b.group.Errors():
			if !ok {
				return
			}
			b.logger.Warn("kafka consumer error", zap.Error(err))
		}
	}
}

// dispatch runs every handler for one message payload.
func (b *KafkaBus) dispatch(ctx context.Context, data []byte) {
	var e event.Event
	if err := json.Unmarshal(data, &e); err != nil {
		b.logger.Warn("drop malformed event", zap.Error(err))
		return
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_id", e.ID),
				zap.String("kind", string(e.Kind)),
				zap.Error(err),
			)
		}
	}
}

// Close stops consuming and releases Kafka resources.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()

	var errs []error
	if b.group != nil {
		if err := b.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer group: %w", err))
		}
	}
	b.wg.Wait()
	if err := b.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	bus *KafkaBus
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim dispatches messages and marks each one processed, including
// malformed ones.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok || msg == nil {
				return nil
			}
			h.bus.dispatch(session.Context(), msg.Value)
			session.MarkMessage(msg, "")
		}
	}
}

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
