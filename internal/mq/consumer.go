package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ryabinin/cascade/internal/telemetry"
)

// Handler обрабатывает одно сообщение. nil — сообщение подтверждается;
// error — инфраструктурный сбой, сообщение вернётся в очередь один раз,
// повторный сбой отправляет его в DLQ.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — распарсенное сообщение вместе с исходной AMQP-доставкой.
// Ack/nack решает consumer; handler'ы только читают Message.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Consumer потребляет одну очередь и проводит через себя поток
// cascade-сообщений: проверяет тип против контракта очереди, логирует
// доменные идентификаторы (job_id, task_id) и применяет ack-политику.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	accept   map[MessageType]struct{}
	handler  Handler
	prefetch int

	stopFn context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Accept — типы сообщений, которые эта очередь обязана нести.
	// Сообщение другого типа — ошибка топологии, уходит в DLQ
	// без вызова handler'а.
	Accept []MessageType

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — окно неподтверждённых доставок.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	accept := make(map[MessageType]struct{}, len(cfg.Accept))
	for _, t := range cfg.Accept {
		accept[t] = struct{}{}
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		accept:   accept,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл потребления. Блокируется до отмены контекста
// или вызова Stop; разрывы соединения переживает через reconnect.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.stopFn = cancel

	for {
		stream, err := c.openStream()
		if err != nil {
			c.logger.Error("failed to open delivery stream", "queue", c.queue, "error", err)
			if waitErr := c.awaitReconnect(ctx); waitErr != nil {
				return waitErr
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.drain(ctx, stream); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("delivery stream closed, reconnecting", "queue", c.queue)
			if waitErr := c.awaitReconnect(ctx); waitErr != nil {
				return waitErr
			}
		}
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.stopFn != nil {
		c.stopFn()
	}
}

// openStream настраивает prefetch-окно и начинает потребление очереди.
func (c *Consumer) openStream() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	stream, err := ch.Consume(
		c.queue,
		"",    // consumer tag выдаёт брокер
		false, // ack вручную
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return stream, nil
}

// awaitReconnect ждёт восстановления соединения или отмены контекста.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, resuming consumer", "queue", c.queue)
		return nil
	}
}

// drain читает доставки из потока до его закрытия.
func (c *Consumer) drain(ctx context.Context, stream <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-stream:
			if !ok {
				return fmt.Errorf("delivery stream closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch обрабатывает одну доставку и решает её судьбу.
//
// Политика: нечитаемое тело и чужой тип — сразу в DLQ (повтор ничего
// не исправит); сбой handler'а — один requeue, повторный сбой — DLQ.
// Логические неудачи subtask'ов сюда не попадают: worker публикует их
// как FAILED-завершения и подтверждает доставку.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("unreadable message body",
			"queue", c.queue,
			"error", err,
		)
		c.deadLetter(raw, "malformed")
		return
	}

	corr := correlation(&msg)

	if _, ok := c.accept[msg.Type]; !ok {
		c.logger.Error("message type not expected on this queue",
			append([]any{"queue", c.queue, "type", msg.Type}, corr...)...,
		)
		c.deadLetter(raw, "unexpected_type")
		return
	}

	c.logger.Debug("received message",
		append([]any{"queue", c.queue, "type", msg.Type, "redelivered", raw.Redelivered}, corr...)...,
	)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		if raw.Redelivered {
			c.logger.Error("handler failed on redelivery, dead-lettering",
				append([]any{"queue", c.queue, "type", msg.Type, "error", err}, corr...)...,
			)
			c.deadLetter(raw, "handler_failure")
			return
		}
		c.logger.Warn("handler failed, requeueing once",
			append([]any{"queue", c.queue, "type", msg.Type, "error", err}, corr...)...,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
	telemetry.MessagesConsumed.WithLabelValues(c.queue).Inc()
}

// deadLetter отклоняет доставку без requeue.
// На очередях без DLX-привязки сообщение при этом теряется; для
// jobs.pending это покрыто polling fallback'ом оркестратора.
func (c *Consumer) deadLetter(raw amqp.Delivery, reason string) {
	raw.Nack(false, false)
	telemetry.MessagesDeadLettered.WithLabelValues(c.queue, reason).Inc()
}

// correlation извлекает доменные идентификаторы сообщения для логов.
// Ошибки декодирования здесь не фатальны: хвост атрибутов просто пуст.
func correlation(msg *Message) []any {
	switch msg.Type {
	case MessageTypeJobPending:
		if p, err := ParsePayload[JobPendingPayload](msg); err == nil {
			return []any{"job_id", p.JobID}
		}
	case MessageTypeTaskReady:
		if p, err := ParsePayload[TaskReadyPayload](msg); err == nil {
			return []any{"job_id", p.JobID, "task_id", p.TaskID(), "kind", p.Kind}
		}
	case MessageTypeTaskCompleted:
		if p, err := ParsePayload[TaskCompletedPayload](msg); err == nil {
			return []any{"job_id", p.JobID, "task_id", p.TaskID, "kind", p.Kind, "status", p.Status}
		}
	}
	return nil
}

// ParsePayload декодирует payload сообщения в типизированную форму.
// Payload после общего анмаршала — map; прогон через json даёт
// строгую структуру без ручного маппинга полей.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
