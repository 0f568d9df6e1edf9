package worker

import (
	"context"
	"errors"

	"github.com/ryabinin/cascade/internal/mq"
	"github.com/ryabinin/cascade/internal/telemetry"
)

// handleTaskReady обрабатывает одну единицу работы из tasks.ready.
//
// Логическая ошибка выполнения — это валидный исход: она уезжает в
// tasks.completed со статусом FAILED, сообщение ack'ается. Nack (и retry
// на уровне очереди) получает только инфраструктурный сбой публикации.
func (w *Worker) handleTaskReady(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskReadyPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse task.ready payload", "error", err)
		return err
	}

	taskID := payload.TaskID()
	logger := telemetry.WithTaskID(telemetry.WithJobID(w.logger, payload.JobID.String()), taskID)
	logger.Debug("executing task", "kind", payload.Kind)

	result, execErr := w.execute(ctx, payload)

	completed := mq.TaskCompletedPayload{
		JobID:  payload.JobID,
		TaskID: taskID,
		Kind:   payload.Kind,
	}

	switch {
	case execErr == nil:
		completed.Status = mq.TaskStatusSucceeded
		completed.Result = result.Subtask
		completed.Aggregate = result.Aggregate
		logger.Debug("task succeeded")

	case errors.Is(execErr, context.Canceled), errors.Is(execErr, context.DeadlineExceeded):
		// Останавливаемся: сообщение вернётся в очередь другому worker'у
		return execErr

	default:
		completed.Status = mq.TaskStatusFailed
		completed.Error = execErr.Error()
		logger.Warn("task failed", "error", execErr)
	}

	if err := w.publisher.PublishTaskCompleted(ctx, completed); err != nil {
		logger.Error("failed to publish task.completed", "error", err)
		return err
	}

	return nil
}

// execute выбирает executor по виду задачи и выполняет её.
func (w *Worker) execute(ctx context.Context, payload mq.TaskReadyPayload) (*ExecutionResult, error) {
	executor, err := w.registry.Get(payload.Kind)
	if err != nil {
		return nil, err
	}
	return executor.Execute(ctx, payload)
}
