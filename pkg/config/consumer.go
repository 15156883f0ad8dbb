package config

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// Consumer reads messages from one durable queue
type Consumer struct {
	channel amqpChannel
	queue   string
}

// NewConsumer opens a channel on conn and declares the queue
func NewConsumer(conn *amqp.Connection, queueName string) (*Consumer, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return newConsumer(ch, queueName)
}

func newConsumer(ch amqpChannel, queueName string) (*Consumer, error) {
	name, err := declareQueue(ch, queueName)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Consumer{channel: ch, queue: name}, nil
}

// Consume hands each message body to handler until ctx is done or the
// channel closes. Messages the handler rejects are requeued.
func (c *Consumer) Consume(ctx context.Context, handler func([]byte) error) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", c.queue, err)
	}

	log.Infof("Consuming from queue %s", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(msg.Body); err != nil {
				log.Errorf("Handle msg failed: %v", err)
				_ = msg.Nack(false, true)
			} else {
				_ = msg.Ack(false)
			}
		}
	}
}

// Close closes the consumer's channel
func (c *Consumer) Close() error {
	return c.channel.Close()
}
