package config

import (
	"context"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// RabbitMQConfig locates the broker that receives link events
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	VHost    string
	Queue    string
}

// Enabled reports whether a broker is configured
func (c RabbitMQConfig) Enabled() bool {
	return c.Host != ""
}

// URL builds the amqp:// connection string
func (c RabbitMQConfig) URL() (string, error) {
	port := 5672
	if c.Port != "" {
		p, err := strconv.Atoi(c.Port)
		if err != nil {
			return "", fmt.Errorf("invalid rabbitmq port %q: %w", c.Port, err)
		}
		port = p
	}
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     port,
		Username: c.User,
		Password: c.Password,
		Vhost:    vhost,
	}
	return uri.String(), nil
}

// DialRabbitMQ connects to the broker, trying up to attempts times
func DialRabbitMQ(ctx context.Context, cfg RabbitMQConfig, attempts int, retryDelay time.Duration) (*amqp.Connection, error) {
	url, err := cfg.URL()
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		conn, dialErr := amqp.Dial(url)
		if dialErr == nil {
			log.Infof("Connected to RabbitMQ at %s", cfg.Host)
			return conn, nil
		}
		err = dialErr

		if i < attempts-1 {
			log.Warnf("Failed to connect to RabbitMQ (attempt %d/%d): %v. Retrying in %v...", i+1, attempts, err, retryDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
}

// amqpChannel is the part of *amqp.Channel the publisher and consumer use
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

func declareQueue(ch amqpChannel, queueName string) (string, error) {
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return "", fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return q.Name, nil
}
