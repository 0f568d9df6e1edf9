package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/mq"
)

// Router раскладывает события task.completed по ожидающим handles.
//
// Ключ корреляции — "{job_id}/{task_id}": task_id детерминирован и может
// совпадать у конкурентных jobs одного пользователя, job_id делает ключ
// уникальным в пределах системы.
//
// Завершение без зарегистрированного ожидателя отбрасывается: так ведут
// себя поздние результаты fan-out'ов, заброшенных после ошибки.
type Router struct {
	logger *slog.Logger

	mu      sync.Mutex
	waiting map[string]chan mq.TaskCompletedPayload
}

// NewRouter создаёт новый Router.
func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		logger:  logger,
		waiting: make(map[string]chan mq.TaskCompletedPayload),
	}
}

// correlationKey строит ключ ожидания для пары (job, task).
func correlationKey(jobID uuid.UUID, taskID string) string {
	return jobID.String() + "/" + taskID
}

// register создаёт ожидателя для пары (job, task).
// Канал буферизован: доставка завершения не блокирует consumer.
func (r *Router) register(jobID uuid.UUID, taskID string) (<-chan mq.TaskCompletedPayload, error) {
	key := correlationKey(jobID, taskID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.waiting[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, key)
	}

	ch := make(chan mq.TaskCompletedPayload, 1)
	r.waiting[key] = ch
	return ch, nil
}

// abandon снимает ожидателя: его поздний результат будет отброшен.
func (r *Router) abandon(jobID uuid.UUID, taskID string) {
	key := correlationKey(jobID, taskID)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiting, key)
}

// HandleCompleted — mq.Handler для очереди tasks.completed.
func (r *Router) HandleCompleted(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.TaskCompletedPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse task.completed payload", "error", err)
		return err
	}

	r.dispatch(payload)
	return nil
}

// dispatch доставляет завершение ожидателю, либо отбрасывает его.
func (r *Router) dispatch(payload mq.TaskCompletedPayload) {
	key := correlationKey(payload.JobID, payload.TaskID)

	r.mu.Lock()
	ch, ok := r.waiting[key]
	if ok {
		delete(r.waiting, key)
	}
	r.mu.Unlock()

	if !ok {
		// Никто не ждёт: fan-out заброшен или завершение продублировано
		r.logger.Debug("discarding completion without waiter",
			"job_id", payload.JobID,
			"task_id", payload.TaskID,
			"status", payload.Status,
		)
		return
	}

	ch <- payload
}

// Waiting возвращает количество незавершённых ожиданий.
func (r *Router) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}
