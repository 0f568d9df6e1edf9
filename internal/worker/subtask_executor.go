package worker

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/mq"
	"github.com/ryabinin/cascade/internal/telemetry"
)

// defaultSubtaskLatency — бюджет задержки одного subtask.
// Фактическая задержка — jitter в диапазоне [budget/3, budget].
const defaultSubtaskLatency = 3 * time.Second

// SubtaskExecutor выполняет один subtask batch'а.
//
// Вычисляет случайное значение 100..999; для batch 2 добавляет base,
// производный от aggregate 1. Задержка моделирует стоимость реальной
// работы и настраивается через SUBTASK_LATENCY_MS.
type SubtaskExecutor struct {
	latency time.Duration
}

// NewSubtaskExecutor создаёт SubtaskExecutor с latency-бюджетом из окружения.
func NewSubtaskExecutor() *SubtaskExecutor {
	return &SubtaskExecutor{latency: latencyBudget("SUBTASK_LATENCY_MS", defaultSubtaskLatency)}
}

// Execute выполняет subtask.
func (e *SubtaskExecutor) Execute(ctx context.Context, payload mq.TaskReadyPayload) (*ExecutionResult, error) {
	spec := payload.Subtask
	if spec == nil {
		return nil, fmt.Errorf("%w: subtask payload without spec", ErrMalformedSpec)
	}

	start := time.Now()
	if err := sleepJitter(ctx, e.latency); err != nil {
		return nil, err
	}

	result := 100 + rand.IntN(900)
	if spec.Base != nil {
		result += *spec.Base
	}

	telemetry.SubtaskDuration.Observe(time.Since(start).Seconds())

	return &ExecutionResult{
		Subtask: &domain.SubtaskResult{TaskID: spec.TaskID, Result: result},
	}, nil
}

// latencyBudget читает бюджет задержки из переменной окружения (мс).
func latencyBudget(envVar string, def time.Duration) time.Duration {
	v := os.Getenv(envVar)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// sleepJitter спит случайную долю бюджета, уважая контекст.
func sleepJitter(ctx context.Context, budget time.Duration) error {
	if budget <= 0 {
		return nil
	}

	third := budget / 3
	delay := third + rand.N(budget-third+1)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
