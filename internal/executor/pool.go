package executor

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ryabinin/cascade/internal/domain"
)

// SubtaskFunc вычисляет результат одного subtask.
type SubtaskFunc func(ctx context.Context, spec domain.Subtask) (domain.SubtaskResult, error)

// AggregateFunc сворачивает результаты batch'а.
type AggregateFunc func(ctx context.Context, username string, results []domain.SubtaskResult) (domain.AggregateResult, error)

// PoolExecutor исполняет единицы работы на локальных горутинах.
//
// Используется в тестах и в standalone-режиме без RabbitMQ.
// Контракт тот же, что у AMQPExecutor; barrier реализован через errgroup.
type PoolExecutor struct {
	subtaskFn   SubtaskFunc
	aggregateFn AggregateFunc
}

// PoolConfig — конфигурация PoolExecutor.
type PoolConfig struct {
	// SubtaskFn — функция вычисления subtask (default: случайное значение
	// 100..999 плюс base, как считает worker).
	SubtaskFn SubtaskFunc

	// AggregateFn — функция редукции (default: сумма result).
	AggregateFn AggregateFunc
}

// NewPoolExecutor создаёт новый PoolExecutor.
func NewPoolExecutor(cfg PoolConfig) *PoolExecutor {
	subtaskFn := cfg.SubtaskFn
	if subtaskFn == nil {
		subtaskFn = DefaultSubtaskFunc
	}

	aggregateFn := cfg.AggregateFn
	if aggregateFn == nil {
		aggregateFn = DefaultAggregateFunc
	}

	return &PoolExecutor{
		subtaskFn:   subtaskFn,
		aggregateFn: aggregateFn,
	}
}

// DefaultSubtaskFunc — вычисление subtask по умолчанию:
// случайное значение 100..999, для batch 2 — плюс base.
func DefaultSubtaskFunc(_ context.Context, spec domain.Subtask) (domain.SubtaskResult, error) {
	result := 100 + rand.IntN(900)
	if spec.Base != nil {
		result += *spec.Base
	}
	return domain.SubtaskResult{TaskID: spec.TaskID, Result: result}, nil
}

// DefaultAggregateFunc — редукция по умолчанию: сумма result.
func DefaultAggregateFunc(_ context.Context, username string, results []domain.SubtaskResult) (domain.AggregateResult, error) {
	return domain.Reduce(username, results), nil
}

// Submit отправляет один subtask на исполнение.
func (e *PoolExecutor) Submit(ctx context.Context, _ uuid.UUID, spec domain.Subtask) (Handle, error) {
	h := &poolHandle{done: make(chan struct{})}

	go func() {
		defer close(h.done)
		h.result, h.err = e.subtaskFn(ctx, spec)
	}()

	return h, nil
}

// SubmitAll отправляет batch subtasks одним fan-out'ом.
func (e *PoolExecutor) SubmitAll(ctx context.Context, _ uuid.UUID, specs []domain.Subtask) (JoinedHandle, error) {
	if len(specs) == 0 {
		return nil, ErrEmptyBatch
	}

	j := &poolJoined{results: make([]domain.SubtaskResult, len(specs))}

	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			result, err := e.subtaskFn(gctx, spec)
			if err != nil {
				return err
			}
			j.results[i] = result
			return nil
		})
	}
	j.wait = g.Wait

	return j, nil
}

// SubmitAggregate отправляет редукцию batch'а на локальную горутину.
func (e *PoolExecutor) SubmitAggregate(ctx context.Context, _ uuid.UUID, _ int, username string, results []domain.SubtaskResult) (AggregateHandle, error) {
	h := &poolAggregate{done: make(chan struct{})}

	go func() {
		defer close(h.done)
		h.result, h.err = e.aggregateFn(ctx, username, results)
	}()

	return h, nil
}

// --- Handles ---

type poolHandle struct {
	done   chan struct{}
	result domain.SubtaskResult
	err    error
}

func (h *poolHandle) Join(ctx context.Context) (domain.SubtaskResult, error) {
	select {
	case <-ctx.Done():
		return domain.SubtaskResult{}, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}

type poolJoined struct {
	results []domain.SubtaskResult
	wait    func() error

	once sync.Once
	err  error
}

func (j *poolJoined) Join(ctx context.Context) ([]domain.SubtaskResult, error) {
	// errgroup.Wait блокирует до завершения всех участников;
	// первая ошибка отменяет контекст остальных
	j.once.Do(func() {
		j.err = j.wait()
	})

	if j.err != nil {
		return nil, j.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return j.results, nil
}

type poolAggregate struct {
	done   chan struct{}
	result domain.AggregateResult
	err    error
}

func (h *poolAggregate) Join(ctx context.Context) (domain.AggregateResult, error) {
	select {
	case <-ctx.Done():
		return domain.AggregateResult{}, ctx.Err()
	case <-h.done:
		return h.result, h.err
	}
}
