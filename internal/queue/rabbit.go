// Package queue connects the worker to its message brokers: RabbitMQ
// for inbound transfer requests and Pulsar for outcome events.
package queue

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// RabbitConfig holds the consumer's connection parameters.
type RabbitConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Queue         string
	PrefetchCount int
}

// URL renders the AMQP connection string.
func (c RabbitConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.Username, c.Password, c.Host, c.Port)
}

// Consumer owns one connection and one channel on the transfer-request
// queue. Deliveries are acknowledged manually by the worker.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	closed  chan *amqp.Error
	log     zerolog.Logger
}

// NewConsumer connects, applies the prefetch window and declares the
// queue as durable.
func NewConsumer(cfg RabbitConfig, log zerolog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.Qos(cfg.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	if _, err := channel.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", cfg.Queue, err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		queue:   cfg.Queue,
		closed:  closed,
		log:     log,
	}, nil
}

// Consume starts delivering messages under the given consumer tag.
func (c *Consumer) Consume(tag string) (<-chan amqp.Delivery, error) {
	deliveries, err := c.channel.Consume(
		c.queue,
		tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume queue %q: %w", c.queue, err)
	}
	return deliveries, nil
}

// Cancel stops the flow of new deliveries for the tag. In-flight
// messages stay un-acked until their handlers finish.
func (c *Consumer) Cancel(tag string) error {
	return c.channel.Cancel(tag, false)
}

// Closed signals a broker-side connection loss.
func (c *Consumer) Closed() <-chan *amqp.Error {
	return c.closed
}

// Close shuts down the channel and connection.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return err
	}
	return c.conn.Close()
}
