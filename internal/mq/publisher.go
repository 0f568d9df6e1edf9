package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ryabinin/cascade/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobPending    MessageType = "job.pending"
	MessageTypeTaskReady     MessageType = "task.ready"
	MessageTypeTaskCompleted MessageType = "task.completed"
)

// TaskKind — вид единицы работы для worker'а.
type TaskKind string

const (
	// TaskKindSubtask — обычный subtask одного batch'а.
	TaskKindSubtask TaskKind = "subtask"

	// TaskKindAggregate — редукция результатов batch'а.
	// Выполняется на том же worker-субстрате, что и subtasks.
	TaskKindAggregate TaskKind = "aggregate"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobPendingPayload — payload для сообщения о новом job.
type JobPendingPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// AggregateSpec — спецификация aggregate-задачи.
//
// Results передаются как типизированный список SubtaskResult;
// worker, не сумевший декодировать вход в эту форму, падает
// с malformed-ошибкой вместо попытки угадать формат.
type AggregateSpec struct {
	TaskID   string                 `json:"task_id"`
	Username string                 `json:"username"`
	Batch    int                    `json:"batch"`
	Results  []domain.SubtaskResult `json:"results"`
}

// TaskReadyPayload — payload для сообщения о готовой единице работы.
// Заполнено ровно одно из Subtask/Aggregate в соответствии с Kind.
type TaskReadyPayload struct {
	JobID     uuid.UUID       `json:"job_id"`
	Kind      TaskKind        `json:"kind"`
	Subtask   *domain.Subtask `json:"subtask,omitempty"`
	Aggregate *AggregateSpec  `json:"aggregate,omitempty"`
}

// TaskID возвращает идентификатор единицы работы независимо от Kind.
func (p TaskReadyPayload) TaskID() string {
	switch p.Kind {
	case TaskKindSubtask:
		if p.Subtask != nil {
			return p.Subtask.TaskID
		}
	case TaskKindAggregate:
		if p.Aggregate != nil {
			return p.Aggregate.TaskID
		}
	}
	return ""
}

// TaskCompletedPayload — payload для сообщения о завершённой единице работы.
type TaskCompletedPayload struct {
	JobID  uuid.UUID `json:"job_id"`
	TaskID string    `json:"task_id"`
	Kind   TaskKind  `json:"kind"`

	// Status — SUCCEEDED или FAILED.
	Status string `json:"status"`

	// Result — результат subtask (Kind == subtask, Status == SUCCEEDED).
	Result *domain.SubtaskResult `json:"result,omitempty"`

	// Aggregate — результат редукции (Kind == aggregate, Status == SUCCEEDED).
	Aggregate *domain.AggregateResult `json:"aggregate,omitempty"`

	// Error — текст ошибки при Status == FAILED.
	Error string `json:"error,omitempty"`
}

// Статусы завершения единиц работы.
const (
	TaskStatusSucceeded = "SUCCEEDED"
	TaskStatusFailed    = "FAILED"
)

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJobPending публикует событие о новом job, ожидающем выполнения.
// Потребитель: Orchestrator.
func (p *Publisher) PublishJobPending(ctx context.Context, jobID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobPending,
		Payload:   JobPendingPayload{JobID: jobID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyPending, msg)
}

// PublishTaskReady публикует единицу работы, готовую к выполнению.
// Потребитель: Worker.
func (p *Publisher) PublishTaskReady(ctx context.Context, payload TaskReadyPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskReady,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyReady, msg)
}

// PublishTaskCompleted публикует событие о завершённой единице работы.
// Потребитель: Orchestrator (completion router).
func (p *Publisher) PublishTaskCompleted(ctx context.Context, payload TaskCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyCompleted, msg)
}
