package config

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// Publisher sends JSON messages to one durable queue
type Publisher struct {
	channel amqpChannel
	queue   string
}

// NewPublisher opens a channel on conn and declares the queue
func NewPublisher(conn *amqp.Connection, queueName string) (*Publisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	return newPublisher(ch, queueName)
}

func newPublisher(ch amqpChannel, queueName string) (*Publisher, error) {
	name, err := declareQueue(ch, queueName)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{channel: ch, queue: name}, nil
}

// Publish marshals message to JSON and publishes it as a persistent message
func (p *Publisher) Publish(ctx context.Context, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Debugf("Published message to queue %s: %s", p.queue, string(body))
	return nil
}

// Close closes the publisher's channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
