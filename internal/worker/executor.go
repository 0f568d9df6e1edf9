package worker

import (
	"context"
	"fmt"

	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/mq"
)

// Executor — интерфейс для выполнения одного вида задач.
//
// Реализации: SubtaskExecutor, AggregateExecutor.
type Executor interface {
	Execute(ctx context.Context, payload mq.TaskReadyPayload) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения задачи.
// Заполнено ровно одно из полей в соответствии с видом задачи.
type ExecutionResult struct {
	// Subtask — результат subtask'а.
	Subtask *domain.SubtaskResult

	// Aggregate — результат редукции.
	Aggregate *domain.AggregateResult
}

// Registry — реестр executor'ов по виду задачи.
type Registry struct {
	executors map[mq.TaskKind]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[mq.TaskKind]Executor)}
	r.Register(mq.TaskKindSubtask, NewSubtaskExecutor())
	r.Register(mq.TaskKindAggregate, NewAggregateExecutor())
	return r
}

// Register добавляет executor для вида задачи.
func (r *Registry) Register(kind mq.TaskKind, executor Executor) {
	r.executors[kind] = executor
}

// Get возвращает executor для вида задачи.
func (r *Registry) Get(kind mq.TaskKind) (Executor, error) {
	executor, ok := r.executors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskKind, kind)
	}
	return executor, nil
}
