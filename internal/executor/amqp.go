package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/mq"
)

// AMQPExecutor исполняет единицы работы через RabbitMQ.
//
// Submit публикует task.ready; worker fleet потребляет очередь, исполняет
// и публикует task.completed; Router (его consumer живёт в оркестраторе)
// разрешает ожидающие handles по ключу корреляции.
type AMQPExecutor struct {
	publisher *mq.Publisher
	router    *Router
	logger    *slog.Logger
}

// NewAMQPExecutor создаёт новый AMQPExecutor.
func NewAMQPExecutor(publisher *mq.Publisher, router *Router, logger *slog.Logger) *AMQPExecutor {
	return &AMQPExecutor{
		publisher: publisher,
		router:    router,
		logger:    logger,
	}
}

// Submit отправляет один subtask на исполнение.
func (e *AMQPExecutor) Submit(ctx context.Context, jobID uuid.UUID, spec domain.Subtask) (Handle, error) {
	ch, err := e.router.register(jobID, spec.TaskID)
	if err != nil {
		return nil, err
	}

	payload := mq.TaskReadyPayload{
		JobID:   jobID,
		Kind:    mq.TaskKindSubtask,
		Subtask: &spec,
	}
	if err := e.publisher.PublishTaskReady(ctx, payload); err != nil {
		e.router.abandon(jobID, spec.TaskID)
		return nil, fmt.Errorf("publish subtask %s: %w", spec.TaskID, err)
	}

	return &amqpHandle{router: e.router, jobID: jobID, taskID: spec.TaskID, ch: ch}, nil
}

// SubmitAll отправляет batch subtasks одним fan-out'ом.
func (e *AMQPExecutor) SubmitAll(ctx context.Context, jobID uuid.UUID, specs []domain.Subtask) (JoinedHandle, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyBatch
	}

	handles := make([]*amqpHandle, 0, len(specs))

	// Сначала регистрируем всех ожидателей: завершение не может обогнать
	// регистрацию, даже если worker отвечает мгновенно
	for _, spec := range specs {
		ch, err := e.router.register(jobID, spec.TaskID)
		if err != nil {
			for _, h := range handles {
				e.router.abandon(jobID, h.taskID)
			}
			return nil, err
		}
		handles = append(handles, &amqpHandle{router: e.router, jobID: jobID, taskID: spec.TaskID, ch: ch})
	}

	for i, spec := range specs {
		payload := mq.TaskReadyPayload{
			JobID:   jobID,
			Kind:    mq.TaskKindSubtask,
			Subtask: &specs[i],
		}
		if err := e.publisher.PublishTaskReady(ctx, payload); err != nil {
			for _, h := range handles {
				e.router.abandon(jobID, h.taskID)
			}
			return nil, fmt.Errorf("publish subtask %s: %w", spec.TaskID, err)
		}
	}

	e.logger.Debug("batch dispatched", "job_id", jobID, "count", len(specs))

	return &amqpJoined{jobID: jobID, router: e.router, handles: handles}, nil
}

// SubmitAggregate отправляет редукцию batch'а на worker fleet.
func (e *AMQPExecutor) SubmitAggregate(ctx context.Context, jobID uuid.UUID, batch int, username string, results []domain.SubtaskResult) (AggregateHandle, error) {
	taskID := aggregateTaskID(username, batch)

	ch, err := e.router.register(jobID, taskID)
	if err != nil {
		return nil, err
	}

	payload := mq.TaskReadyPayload{
		JobID: jobID,
		Kind:  mq.TaskKindAggregate,
		Aggregate: &mq.AggregateSpec{
			TaskID:   taskID,
			Username: username,
			Batch:    batch,
			Results:  results,
		},
	}
	if err := e.publisher.PublishTaskReady(ctx, payload); err != nil {
		e.router.abandon(jobID, taskID)
		return nil, fmt.Errorf("publish aggregate %s: %w", taskID, err)
	}

	return &amqpAggregate{router: e.router, jobID: jobID, taskID: taskID, ch: ch}, nil
}

// aggregateTaskID возвращает идентификатор aggregate-стадии batch'а.
func aggregateTaskID(username string, batch int) string {
	return fmt.Sprintf("%s-agg%d", username, batch)
}

// --- Handles ---

// amqpHandle — ожидание одного subtask.
type amqpHandle struct {
	router *Router
	jobID  uuid.UUID
	taskID string
	ch     <-chan mq.TaskCompletedPayload
}

// Join блокируется до завершения subtask.
func (h *amqpHandle) Join(ctx context.Context) (domain.SubtaskResult, error) {
	select {
	case <-ctx.Done():
		h.router.abandon(h.jobID, h.taskID)
		return domain.SubtaskResult{}, ctx.Err()

	case payload := <-h.ch:
		if payload.Status != mq.TaskStatusSucceeded {
			return domain.SubtaskResult{}, fmt.Errorf("%w: %s: %s", ErrTaskFailed, h.taskID, payload.Error)
		}
		if payload.Result == nil {
			return domain.SubtaskResult{}, fmt.Errorf("%w: %s: missing subtask result", ErrMalformedResult, h.taskID)
		}
		return *payload.Result, nil
	}
}

// amqpJoined — barrier по всем участникам batch'а.
type amqpJoined struct {
	jobID   uuid.UUID
	router  *Router
	handles []*amqpHandle
}

// Join ждёт всех участников в порядке отправки.
// Первая ошибка прерывает ожидание; оставшиеся handles бросаются.
func (j *amqpJoined) Join(ctx context.Context) ([]domain.SubtaskResult, error) {
	results := make([]domain.SubtaskResult, 0, len(j.handles))

	for i, h := range j.handles {
		result, err := h.Join(ctx)
		if err != nil {
			for _, rest := range j.handles[i+1:] {
				j.router.abandon(j.jobID, rest.taskID)
			}
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// amqpAggregate — ожидание aggregate-стадии.
type amqpAggregate struct {
	router *Router
	jobID  uuid.UUID
	taskID string
	ch     <-chan mq.TaskCompletedPayload
}

// Join блокируется до завершения редукции.
func (h *amqpAggregate) Join(ctx context.Context) (domain.AggregateResult, error) {
	select {
	case <-ctx.Done():
		h.router.abandon(h.jobID, h.taskID)
		return domain.AggregateResult{}, ctx.Err()

	case payload := <-h.ch:
		if payload.Status != mq.TaskStatusSucceeded {
			return domain.AggregateResult{}, fmt.Errorf("%w: %s: %s", ErrTaskFailed, h.taskID, payload.Error)
		}
		if payload.Aggregate == nil {
			return domain.AggregateResult{}, fmt.Errorf("%w: %s: missing aggregate result", ErrMalformedResult, h.taskID)
		}
		return *payload.Aggregate, nil
	}
}
