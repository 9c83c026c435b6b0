package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/apache/pulsar-client-go/pulsar"
)

// PulsarConfig holds the outcome broker's address.
type PulsarConfig struct {
	Host string
	Port int
}

// URL renders the pulsar service URL.
func (c PulsarConfig) URL() string {
	return fmt.Sprintf("pulsar://%s:%d", c.Host, c.Port)
}

// PulsarProducer publishes outcome events. Producers are created
// lazily, one per topic, and reused for the lifetime of the client.
type PulsarProducer struct {
	client pulsar.Client

	mu        sync.Mutex
	producers map[string]pulsar.Producer
}

// NewPulsarProducer connects the pulsar client.
func NewPulsarProducer(cfg PulsarConfig) (*PulsarProducer, error) {
	client, err := pulsar.NewClient(pulsar.ClientOptions{URL: cfg.URL()})
	if err != nil {
		return nil, fmt.Errorf("connect to pulsar: %w", err)
	}
	return &PulsarProducer{
		client:    client,
		producers: make(map[string]pulsar.Producer),
	}, nil
}

// Produce publishes payload on topic, creating the topic's producer on
// first use.
func (p *PulsarProducer) Produce(ctx context.Context, topic string, payload []byte) error {
	producer, err := p.producer(topic)
	if err != nil {
		return err
	}
	if _, err := producer.Send(ctx, &pulsar.ProducerMessage{Payload: payload}); err != nil {
		return fmt.Errorf("produce on %q: %w", topic, err)
	}
	return nil
}

func (p *PulsarProducer) producer(topic string) (pulsar.Producer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if producer, ok := p.producers[topic]; ok {
		return producer, nil
	}
	producer, err := p.client.CreateProducer(pulsar.ProducerOptions{Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("create producer for %q: %w", topic, err)
	}
	p.producers[topic] = producer
	return producer, nil
}

// Close closes every open producer and the client.
func (p *PulsarProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, producer := range p.producers {
		producer.Close()
	}
	p.client.Close()
}
