package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"content-planner/internal/domain"
	"content-planner/internal/infra/metrics"
)

// RabbitGenerationQueue реализует очередь задач генерации поверх AMQP.
type RabbitGenerationQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	consumeOnce sync.Once
	deliveries  <-chan amqp.Delivery
	consumeErr  error
}

var _ domain.GenerationQueue = (*RabbitGenerationQueue)(nil)

// NewRabbitGenerationQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitGenerationQueue(amqpURL, queue string) (*RabbitGenerationQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	return &RabbitGenerationQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует задачу в очередь.
func (q *RabbitGenerationQueue) Enqueue(ctx context.Context, job domain.GenerationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	start := time.Now()
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.RequestedAt,
		Body:         payload,
	})
	metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err)
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Receive ждёт следующую задачу. Подтверждение выполняется через AckFunc.
func (q *RabbitGenerationQueue) Receive(ctx context.Context) (domain.GenerationJob, domain.AckFunc, error) {
	q.consumeOnce.Do(func() {
		q.deliveries, q.consumeErr = q.ch.Consume(q.queue, "", false, false, false, false, nil)
	})
	if q.consumeErr != nil {
		return domain.GenerationJob{}, nil, fmt.Errorf("consume: %w", q.consumeErr)
	}
	for {
		select {
		case <-ctx.Done():
			return domain.GenerationJob{}, nil, ctx.Err()
		case d, ok := <-q.deliveries:
			if !ok {
				return domain.GenerationJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.GenerationJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				// Битое сообщение не вернётся в очередь.
				_ = d.Nack(false, false)
				continue
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

// Close закрывает канал и соединение.
func (q *RabbitGenerationQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return err
	}
	return q.conn.Close()
}
