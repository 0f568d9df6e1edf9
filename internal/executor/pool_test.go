package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/ryabinin/cascade/internal/domain"
)

func TestPoolExecutor_SubmitAll(t *testing.T) {
	exec := NewPoolExecutor(PoolConfig{
		SubtaskFn: func(_ context.Context, spec domain.Subtask) (domain.SubtaskResult, error) {
			return domain.SubtaskResult{TaskID: spec.TaskID, Result: 100 + spec.Index}, nil
		},
	})

	specs := domain.NewBatch("alice", 1, nil)
	joined, err := exec.SubmitAll(context.Background(), uuid.New(), specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := joined.Join(context.Background())
	if err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}

	if len(results) != domain.BatchSize {
		t.Fatalf("expected %d results, got %d", domain.BatchSize, len(results))
	}

	// Результаты сохраняют порядок отправки
	for i, r := range results {
		if r.TaskID != specs[i].TaskID {
			t.Errorf("result %d: expected task_id %s, got %s", i, specs[i].TaskID, r.TaskID)
		}
		if r.Result != 100+i {
			t.Errorf("result %d: expected %d, got %d", i, 100+i, r.Result)
		}
	}
}

func TestPoolExecutor_SubmitAll_EmptyBatch(t *testing.T) {
	exec := NewPoolExecutor(PoolConfig{})

	_, err := exec.SubmitAll(context.Background(), uuid.New(), nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestPoolExecutor_SubmitAll_FirstFailure(t *testing.T) {
	exec := NewPoolExecutor(PoolConfig{
		SubtaskFn: func(_ context.Context, spec domain.Subtask) (domain.SubtaskResult, error) {
			if spec.Index == 3 {
				return domain.SubtaskResult{}, fmt.Errorf("index 3 blew up")
			}
			return domain.SubtaskResult{TaskID: spec.TaskID, Result: 100}, nil
		},
	})

	specs := domain.NewBatch("alice", 1, nil)
	joined, err := exec.SubmitAll(context.Background(), uuid.New(), specs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := joined.Join(context.Background())
	if err == nil {
		t.Fatal("expected join to fail")
	}
	if results != nil {
		t.Error("failed join should return no results")
	}

	// Повторный Join возвращает ту же ошибку
	_, err2 := joined.Join(context.Background())
	if err2 == nil || err2.Error() != err.Error() {
		t.Errorf("repeated join should return the same error, got %v", err2)
	}
}

func TestPoolExecutor_Submit(t *testing.T) {
	exec := NewPoolExecutor(PoolConfig{
		SubtaskFn: func(_ context.Context, spec domain.Subtask) (domain.SubtaskResult, error) {
			return domain.SubtaskResult{TaskID: spec.TaskID, Result: 42}, nil
		},
	})

	spec := domain.Subtask{TaskID: "alice-b1-0", Username: "alice", Batch: 1}
	handle, err := exec.Submit(context.Background(), uuid.New(), spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := handle.Join(context.Background())
	if err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if result.TaskID != "alice-b1-0" || result.Result != 42 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPoolExecutor_SubmitAggregate(t *testing.T) {
	exec := NewPoolExecutor(PoolConfig{})

	results := []domain.SubtaskResult{
		{TaskID: "alice-b1-0", Result: 101},
		{TaskID: "alice-b1-1", Result: 205},
		{TaskID: "alice-b1-2", Result: 333},
		{TaskID: "alice-b1-3", Result: 150},
		{TaskID: "alice-b1-4", Result: 999},
	}

	handle, err := exec.SubmitAggregate(context.Background(), uuid.New(), 1, "alice", results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	agg, err := handle.Join(context.Background())
	if err != nil {
		t.Fatalf("unexpected join error: %v", err)
	}
	if agg.AggregatedSum != 1788 {
		t.Errorf("expected sum 1788, got %d", agg.AggregatedSum)
	}
	if agg.Username != "alice" {
		t.Errorf("expected username alice, got %s", agg.Username)
	}
}

func TestDefaultSubtaskFunc(t *testing.T) {
	// Без base — значение в [100, 999]
	for i := 0; i < 50; i++ {
		r, err := DefaultSubtaskFunc(context.Background(), domain.Subtask{TaskID: "t"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Result < 100 || r.Result > 999 {
			t.Fatalf("result %d out of range [100, 999]", r.Result)
		}
	}

	// С base — сдвиг на base
	base := 357
	for i := 0; i < 50; i++ {
		r, err := DefaultSubtaskFunc(context.Background(), domain.Subtask{TaskID: "t", Base: &base})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.Result < 100+base || r.Result > 999+base {
			t.Fatalf("result %d out of range [%d, %d]", r.Result, 100+base, 999+base)
		}
	}
}
