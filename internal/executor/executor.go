package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/domain"
)

// Executor — контракт асинхронного исполнения единиц работы.
//
// Workflow Engine потребляет только этот контракт и ничего не знает
// о транспорте: AMQPExecutor гонит работу через RabbitMQ на worker fleet,
// PoolExecutor исполняет её на локальных горутинах (тесты, standalone).
//
// Retry-политика отдельного subtask — забота реализации, engine видит
// только итоговый результат или итоговую ошибку.
type Executor interface {
	// Submit отправляет один subtask на исполнение.
	Submit(ctx context.Context, jobID uuid.UUID, spec domain.Subtask) (Handle, error)

	// SubmitAll отправляет batch subtasks одним fan-out'ом.
	// JoinedHandle разрешается только когда завершатся все участники,
	// либо первой встреченной ошибкой.
	SubmitAll(ctx context.Context, jobID uuid.UUID, specs []domain.Subtask) (JoinedHandle, error)

	// SubmitAggregate отправляет редукцию batch'а на тот же субстрат,
	// что и subtasks: агрегация — асинхронная, потенциально долгая стадия
	// и не должна исполняться в потоке engine.
	SubmitAggregate(ctx context.Context, jobID uuid.UUID, batch int, username string, results []domain.SubtaskResult) (AggregateHandle, error)
}

// Handle — дескриптор одного отправленного subtask.
type Handle interface {
	// Join блокируется до завершения subtask.
	Join(ctx context.Context) (domain.SubtaskResult, error)
}

// JoinedHandle — дескриптор fan-out'а: barrier по всем участникам batch'а.
type JoinedHandle interface {
	// Join блокируется до завершения всех участников и возвращает
	// результаты в порядке отправки. Первая ошибка прерывает ожидание;
	// оставшиеся участники бросаются, их поздние результаты отбрасываются.
	Join(ctx context.Context) ([]domain.SubtaskResult, error)
}

// AggregateHandle — дескриптор aggregate-стадии.
type AggregateHandle interface {
	// Join блокируется до завершения редукции.
	Join(ctx context.Context) (domain.AggregateResult, error)
}
