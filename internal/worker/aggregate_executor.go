package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/mq"
)

// defaultAggregateLatency — бюджет aggregate-стадии.
// Оригинальная система жгла здесь фиксированные минуты; мы моделируем
// стоимость редукции настраиваемым бюджетом (AGGREGATE_LATENCY_MS).
const defaultAggregateLatency = 5 * time.Second

// AggregateExecutor сворачивает результаты batch'а в AggregateResult.
//
// Вход обязан быть типизированным списком SubtaskResult полного batch'а;
// всё остальное — malformed, без попыток угадать формат.
type AggregateExecutor struct {
	latency time.Duration
}

// NewAggregateExecutor создаёт AggregateExecutor с latency-бюджетом из окружения.
func NewAggregateExecutor() *AggregateExecutor {
	return &AggregateExecutor{latency: latencyBudget("AGGREGATE_LATENCY_MS", defaultAggregateLatency)}
}

// Execute выполняет редукцию.
func (e *AggregateExecutor) Execute(ctx context.Context, payload mq.TaskReadyPayload) (*ExecutionResult, error) {
	spec := payload.Aggregate
	if spec == nil {
		return nil, fmt.Errorf("%w: aggregate payload without spec", ErrMalformedSpec)
	}
	if spec.Username == "" {
		return nil, fmt.Errorf("%w: aggregate spec without username", ErrMalformedSpec)
	}
	if len(spec.Results) != domain.BatchSize {
		return nil, fmt.Errorf("%w: aggregate input has %d results, want %d",
			ErrMalformedSpec, len(spec.Results), domain.BatchSize)
	}
	for _, r := range spec.Results {
		if r.TaskID == "" {
			return nil, fmt.Errorf("%w: subtask result without task_id", ErrMalformedSpec)
		}
	}

	if err := sleepJitter(ctx, e.latency); err != nil {
		return nil, err
	}

	agg := domain.Reduce(spec.Username, spec.Results)

	return &ExecutionResult{Aggregate: &agg}, nil
}
