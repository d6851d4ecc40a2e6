package queue

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minitru/bunnyAI/internal/config"

	"github.com/rabbitmq/amqp091-go"
)

// RefreshQueue carries knowledge graph and analysis refresh requests.
const RefreshQueue = "refresh_queue"

const (
	retrySuffix = "_retry"
	dlqSuffix   = "_dlq"
	retryDelay  = 10 * time.Second
	// MaxRetries is the number of redeliveries before a message is parked.
	MaxRetries = 10
)

// Publisher is the subset of *amqp091.Channel used to publish.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Declarer is the subset of *amqp091.Channel used to declare queues.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// URL builds the broker address from the RabbitMQ settings.
func URL(cfg config.Config) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.RabbitUser, cfg.RabbitPassword),
		Host:   cfg.RabbitHost + ":" + cfg.RabbitPort,
		Path:   "/",
	}
	return u.String()
}

func Init(cfg config.Config) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(URL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue with a dead-letter queue and a retry
// queue that routes expired messages back to it.
func SetupQueues(ch Declarer, queueNames ...string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", name, err)
		}

		dlqName := name + dlqSuffix
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", dlqName, err)
		}

		retryName := name + retrySuffix
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare %s: %w", retryName, err)
		}
	}
	return nil
}

// PublishFIFO sends a persistent message to the default exchange.
func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte, headers amqp091.Table) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.PublishWithContext(ctx, "", queueName, false, false, publishing)
}
