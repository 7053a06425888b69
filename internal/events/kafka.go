package events

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/animus-labs/nativepack/internal/platform/env"
)

const DefaultTopic = "nativepack.events"

// KafkaConfig selects brokers and topic. No brokers means events are discarded.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func KafkaConfigFromEnv() KafkaConfig {
	topic := strings.TrimSpace(env.String("NATIVEPACK_KAFKA_TOPIC", ""))
	if topic == "" {
		topic = DefaultTopic
	}
	return KafkaConfig{
		Brokers: env.List("NATIVEPACK_KAFKA_BROKERS", nil),
		Topic:   topic,
	}
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaNotifier produces events keyed by run id so a run's events stay ordered.
type KafkaNotifier struct {
	client producer
	topic  string
	mu     sync.RWMutex
	closed bool
}

func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	return &KafkaNotifier{client: client, topic: topic}, nil
}

func (n *KafkaNotifier) Notify(ctx context.Context, event Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return fmt.Errorf("notifier is closed")
	}
	value, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(event.RunID),
		Value: value,
	}
	if err := n.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.client.Close()
	return nil
}

// FromEnv returns a Kafka notifier when brokers are configured, Discard otherwise.
func FromEnv() (Notifier, error) {
	cfg := KafkaConfigFromEnv()
	if !cfg.Enabled() {
		return Discard{}, nil
	}
	return NewKafkaNotifier(cfg)
}
