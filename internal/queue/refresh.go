package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/minitru/bunnyAI/pkg/cache"
	"github.com/minitru/bunnyAI/pkg/common"
	"github.com/minitru/bunnyAI/pkg/leaselock"
	"github.com/minitru/bunnyAI/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rabbitmq/amqp091-go"
)

// RefreshMessage asks a worker to regenerate one cached artifact of a book.
type RefreshMessage struct {
	JobID       string    `json:"job_id"`
	Kind        string    `json:"kind"`
	BookID      string    `json:"book_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRefreshMessage(kind, bookID string) (RefreshMessage, error) {
	id, err := gonanoid.New()
	if err != nil {
		return RefreshMessage{}, err
	}
	msg := RefreshMessage{JobID: id, Kind: kind, BookID: bookID, RequestedAt: time.Now().UTC()}
	return msg, msg.validate()
}

func (m RefreshMessage) validate() error {
	if m.BookID == "" {
		return &common.BadRequestError{Reason: "book_id is required"}
	}
	switch m.Kind {
	case cache.KindKnowledgeGraph, cache.KindAnalysis:
		return nil
	}
	return &common.BadRequestError{Reason: fmt.Sprintf("unknown refresh kind %q", m.Kind)}
}

// PublishRefresh enqueues msg on RefreshQueue.
func PublishRefresh(ctx context.Context, ch Publisher, msg RefreshMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := PublishFIFO(ctx, ch, RefreshQueue, data, nil); err != nil {
		return fmt.Errorf("failed to publish refresh: %w", err)
	}
	logger.Info("[Queue] refresh enqueued", "job_id", msg.JobID, "kind", msg.Kind, "book_id", msg.BookID)
	return nil
}

// Refresher regenerates cached artifacts.
type Refresher interface {
	Refresh(ctx context.Context, bookID string) (common.KnowledgeGraph, error)
	RefreshAnalysis(ctx context.Context, bookID string) (common.BookAnalysis, error)
}

// Locker is satisfied by *leaselock.Locker.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// RefreshHandler runs refresh messages one book at a time across workers.
type RefreshHandler struct {
	refresher Refresher
	locker    Locker
	lease     leaselock.Options
}

func NewRefreshHandler(refresher Refresher, locker Locker, lease leaselock.Options) *RefreshHandler {
	return &RefreshHandler{refresher: refresher, locker: locker, lease: lease}
}

// Handle decodes and runs one message. Undecodable messages and unknown
// books are reported with ErrPoison so they skip the retry queue. A refresh already running on
// another worker counts as handled.
func (h *RefreshHandler) Handle(ctx context.Context, body []byte) error {
	var msg RefreshMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return errors.Join(ErrPoison, fmt.Errorf("failed to decode refresh message: %w", err))
	}
	if err := msg.validate(); err != nil {
		return errors.Join(ErrPoison, err)
	}

	key := leaselock.RefreshKey(msg.Kind, msg.BookID)
	err := h.locker.WithLease(ctx, key, h.lease, func(ctx context.Context) error {
		return h.run(ctx, msg)
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] refresh already running elsewhere", "job_id", msg.JobID, "key", key)
		return nil
	}
	if permanent(err) {
		return errors.Join(ErrPoison, err)
	}
	return err
}

// permanent reports failures a redelivery cannot fix, such as a book with
// no chunks.
func permanent(err error) bool {
	var notFound *common.NotFoundError
	var bad *common.BadRequestError
	return errors.As(err, &notFound) || errors.As(err, &bad)
}

func (h *RefreshHandler) run(ctx context.Context, msg RefreshMessage) error {
	start := time.Now()
	switch msg.Kind {
	case cache.KindAnalysis:
		if _, err := h.refresher.RefreshAnalysis(ctx, msg.BookID); err != nil {
			return err
		}
	default:
		g, err := h.refresher.Refresh(ctx, msg.BookID)
		if err != nil {
			return err
		}
		logger.Info("[Queue] graph refreshed", "book_id", msg.BookID, "entities", len(g.Entities), "relationships", len(g.Relationships))
	}
	logger.Info("[Queue] refresh done", "job_id", msg.JobID, "kind", msg.Kind, "book_id", msg.BookID, "duration", time.Since(start))
	return nil
}

// ErrPoison marks a message that can never succeed.
var ErrPoison = errors.New("poison message")

// Retries returns the x-retries header of d.
func Retries(d amqp091.Delivery) int {
	switch v := d.Headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleFailure sends d to the retry queue of queueName, or to its
// dead-letter queue once MaxRetries is reached or the failure is poison.
// d is acked after a successful publish and requeued otherwise.
func HandleFailure(ctx context.Context, ch Publisher, d amqp091.Delivery, queueName string, cause error) error {
	retries := Retries(d)

	target := queueName + retrySuffix
	headers := amqp091.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	if retries >= MaxRetries || errors.Is(cause, ErrPoison) {
		target = queueName + dlqSuffix
		headers["x-error"] = cause.Error()
		logger.Warn("[Queue] sending message to DLQ", "dlq", target, "retries", retries, "err", cause)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	if err := PublishFIFO(ctx, ch, target, d.Body, headers); err != nil {
		logger.Error("[Queue] failed to publish failed message", "queue", target, "err", err)
		return errors.Join(err, d.Nack(false, true))
	}
	return d.Ack(false)
}
