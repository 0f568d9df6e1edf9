package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/executor"
	"github.com/ryabinin/cascade/internal/repo"
)

// fakeStore — in-memory JobStore, записывает все вызовы.
// Уважает переданный контекст, как это делает реальный репозиторий:
// запись на мёртвом ctx не проходит.
type fakeStore struct {
	mu sync.Mutex

	runningCalls   int
	completedCalls int
	failedCalls    int

	result    *domain.JobResult
	failedMsg string

	runningErr   error
	completedErr error
	failedErr    error
}

func (s *fakeStore) MarkRunning(ctx context.Context, _ uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningCalls++
	return s.runningErr
}

func (s *fakeStore) MarkCompleted(ctx context.Context, _ uuid.UUID, result *domain.JobResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedCalls++
	if s.completedErr != nil {
		return s.completedErr
	}
	s.result = result
	return nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, _ uuid.UUID, msg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedCalls++
	if s.failedErr != nil {
		return s.failedErr
	}
	s.failedMsg = msg
	return nil
}

// recordingSubtaskFn возвращает детерминированную функцию subtask,
// записывающую все полученные спецификации.
func recordingSubtaskFn(mu *sync.Mutex, seen *[]domain.Subtask) executor.SubtaskFunc {
	return func(_ context.Context, spec domain.Subtask) (domain.SubtaskResult, error) {
		mu.Lock()
		*seen = append(*seen, spec)
		mu.Unlock()

		// Детерминированно: 100 + index*10, плюс base для batch 2
		result := 100 + spec.Index*10
		if spec.Base != nil {
			result += *spec.Base
		}
		return domain.SubtaskResult{TaskID: spec.TaskID, Result: result}, nil
	}
}

func newTestDriver(store *fakeStore, cfg executor.PoolConfig) *Driver {
	return NewDriver(Config{
		Store:    store,
		Executor: executor.NewPoolExecutor(cfg),
	})
}

func TestDriver_Run_HappyPath(t *testing.T) {
	var mu sync.Mutex
	var seen []domain.Subtask

	store := &fakeStore{}
	driver := newTestDriver(store, executor.PoolConfig{
		SubtaskFn: recordingSubtaskFn(&mu, &seen),
	})

	job := domain.NewJob("alice")
	if err := driver.Run(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.runningCalls != 1 {
		t.Errorf("expected 1 MarkRunning, got %d", store.runningCalls)
	}
	if store.completedCalls != 1 {
		t.Errorf("expected 1 MarkCompleted, got %d", store.completedCalls)
	}
	if store.failedCalls != 0 {
		t.Errorf("expected no MarkFailed, got %d", store.failedCalls)
	}

	// Два batch по 5 subtasks
	if len(seen) != 2*domain.BatchSize {
		t.Fatalf("expected %d subtasks, got %d", 2*domain.BatchSize, len(seen))
	}

	// batch 1: сумма 100+110+120+130+140 = 600, base = 600/5 = 120
	// batch 2: сумма 600 + 5*120 = 1200
	if store.result == nil {
		t.Fatal("completed job should have a result")
	}
	if store.result.FirstBatch.AggregatedSum != 600 {
		t.Errorf("expected first batch sum 600, got %d", store.result.FirstBatch.AggregatedSum)
	}
	if store.result.SecondBatch.AggregatedSum != 1200 {
		t.Errorf("expected second batch sum 1200, got %d", store.result.SecondBatch.AggregatedSum)
	}
	if store.result.FirstBatch.Username != "alice" || store.result.SecondBatch.Username != "alice" {
		t.Error("aggregate results should carry the job owner")
	}

	// Batch 2 несёт базу, производную от aggregate 1
	for _, spec := range seen {
		switch spec.Batch {
		case 1:
			if spec.Base != nil {
				t.Errorf("batch 1 subtask %s should have no base", spec.TaskID)
			}
		case 2:
			if spec.Base == nil {
				t.Fatalf("batch 2 subtask %s should carry a base", spec.TaskID)
			}
			if *spec.Base != 120 {
				t.Errorf("batch 2 subtask %s: expected base 120, got %d", spec.TaskID, *spec.Base)
			}
		}
	}

	if job.Status != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", job.Status)
	}
}

func TestDriver_Run_Batch1Failure(t *testing.T) {
	var mu sync.Mutex
	var seen []domain.Subtask
	record := recordingSubtaskFn(&mu, &seen)

	store := &fakeStore{}
	driver := newTestDriver(store, executor.PoolConfig{
		SubtaskFn: func(ctx context.Context, spec domain.Subtask) (domain.SubtaskResult, error) {
			if _, err := record(ctx, spec); err != nil {
				return domain.SubtaskResult{}, err
			}
			if spec.Index == 2 {
				return domain.SubtaskResult{}, fmt.Errorf("computation blew up")
			}
			result := 100 + spec.Index*10
			if spec.Base != nil {
				result += *spec.Base
			}
			return domain.SubtaskResult{TaskID: spec.TaskID, Result: result}, nil
		},
	})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}

	if store.failedCalls != 1 {
		t.Errorf("expected exactly 1 MarkFailed, got %d", store.failedCalls)
	}
	if store.completedCalls != 0 {
		t.Errorf("failed workflow should never MarkCompleted, got %d calls", store.completedCalls)
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", job.Status)
	}

	// Batch 2 не стартует: все subtasks из batch 1
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != domain.BatchSize {
		t.Errorf("expected %d submissions (batch 1 only), got %d", domain.BatchSize, len(seen))
	}
	for _, spec := range seen {
		if spec.Batch != 1 {
			t.Errorf("no batch 2 subtask should be submitted, saw %s", spec.TaskID)
		}
	}
}

func TestDriver_Run_AggregateFailure(t *testing.T) {
	store := &fakeStore{}
	driver := newTestDriver(store, executor.PoolConfig{
		AggregateFn: func(_ context.Context, _ string, _ []domain.SubtaskResult) (domain.AggregateResult, error) {
			return domain.AggregateResult{}, fmt.Errorf("reducer crashed")
		},
	})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}
	if store.failedCalls != 1 {
		t.Errorf("expected 1 MarkFailed, got %d", store.failedCalls)
	}
	if store.failedMsg == "" {
		t.Error("failure message should be persisted")
	}
}

func TestDriver_Run_MalformedAggregateResult(t *testing.T) {
	store := &fakeStore{}
	driver := newTestDriver(store, executor.PoolConfig{
		AggregateFn: func(_ context.Context, _ string, _ []domain.SubtaskResult) (domain.AggregateResult, error) {
			return domain.AggregateResult{}, fmt.Errorf("%w: not an aggregate payload", executor.ErrMalformedResult)
		},
	})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}
	if store.failedMsg == "" {
		t.Fatal("failure message should be persisted")
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", job.Status)
	}
}

func TestDriver_Run_AggregateForWrongUser(t *testing.T) {
	store := &fakeStore{}
	driver := newTestDriver(store, executor.PoolConfig{
		AggregateFn: func(_ context.Context, _ string, results []domain.SubtaskResult) (domain.AggregateResult, error) {
			// Редукция чужого пользователя — нарушение контракта
			return domain.Reduce("mallory", results), nil
		},
	})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}
	if store.failedCalls != 1 {
		t.Errorf("expected 1 MarkFailed, got %d", store.failedCalls)
	}
}

func TestDriver_Run_MarkRunningFailure(t *testing.T) {
	store := &fakeStore{runningErr: fmt.Errorf("connection refused")}
	driver := newTestDriver(store, executor.PoolConfig{})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}
	if store.failedCalls != 1 {
		t.Errorf("expected 1 MarkFailed, got %d", store.failedCalls)
	}
	if store.completedCalls != 0 {
		t.Error("workflow should not reach finalize")
	}
}

func TestDriver_Run_MarkCompletedFailure(t *testing.T) {
	store := &fakeStore{completedErr: fmt.Errorf("connection reset")}
	driver := newTestDriver(store, executor.PoolConfig{})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}
	// Финализация не удалась — workflow падает в FAILED
	if store.failedCalls != 1 {
		t.Errorf("expected 1 MarkFailed, got %d", store.failedCalls)
	}
}

func TestDriver_Run_FailOnTerminalJobIsBenign(t *testing.T) {
	// MarkFailed на уже терминальном job — no-op, не паника и не retry
	store := &fakeStore{
		runningErr: fmt.Errorf("connection refused"),
		failedErr:  repo.ErrTerminalStatus,
	}
	driver := newTestDriver(store, executor.PoolConfig{})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}
	if store.failedCalls != 1 {
		t.Errorf("expected exactly 1 MarkFailed attempt, got %d", store.failedCalls)
	}
	// Локальная копия не переводится в FAILED: запись не состоялась
	if job.Status == domain.JobStatusFailed {
		t.Error("job copy should not be marked FAILED when the store refused the write")
	}
}

func TestDriver_Run_TimeoutStillPersistsFailed(t *testing.T) {
	// Run-контекст истекает, пока batch висит; FAILED обязан записаться
	// немедленно на собственном бюджете, а не ждать reconciliation
	store := &fakeStore{}
	driver := NewDriver(Config{
		Store: store,
		Executor: executor.NewPoolExecutor(executor.PoolConfig{
			SubtaskFn: func(ctx context.Context, _ domain.Subtask) (domain.SubtaskResult, error) {
				<-ctx.Done()
				return domain.SubtaskResult{}, ctx.Err()
			},
		}),
		RunTimeout: 50 * time.Millisecond,
	})

	job := domain.NewJob("alice")
	err := driver.Run(context.Background(), job)
	if !errors.Is(err, ErrWorkflowAbort) {
		t.Fatalf("expected ErrWorkflowAbort, got %v", err)
	}

	if store.failedCalls != 1 {
		t.Fatalf("expected 1 MarkFailed, got %d", store.failedCalls)
	}
	if store.failedMsg == "" {
		t.Fatal("FAILED must be persisted even after the run context expired")
	}
	if job.Status != domain.JobStatusFailed {
		t.Errorf("expected FAILED, got %s", job.Status)
	}
}

func TestDriver_Run_ClaimLostIsBenign(t *testing.T) {
	// Второй оркестратор проиграл claim: run не наш, FAILED не пишется
	store := &fakeStore{runningErr: repo.ErrAlreadyClaimed}
	driver := newTestDriver(store, executor.PoolConfig{})

	job := domain.NewJob("alice")
	if err := driver.Run(context.Background(), job); err != nil {
		t.Fatalf("lost claim should not be an error, got %v", err)
	}

	if store.failedCalls != 0 {
		t.Errorf("lost claim should not MarkFailed, got %d calls", store.failedCalls)
	}
	if store.completedCalls != 0 {
		t.Errorf("lost claim should not run the workflow, got %d MarkCompleted", store.completedCalls)
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("job copy should stay PENDING, got %s", job.Status)
	}
}

func TestNewPlan(t *testing.T) {
	plan := NewPlan("alice")

	if len(plan.Stages) != 6 {
		t.Fatalf("expected 6 stages, got %d", len(plan.Stages))
	}

	expected := []struct {
		name string
		kind StageKind
	}{
		{"batch1", StageFanOut},
		{"aggregate1", StageAggregate},
		{"derive_base", StageDeriveBase},
		{"batch2", StageFanOut},
		{"aggregate2", StageAggregate},
		{"finalize", StageFinalize},
	}

	for i, want := range expected {
		got := plan.Stages[i]
		if got.Name != want.name {
			t.Errorf("stage %d: expected %s, got %s", i, want.name, got.Name)
		}
		if got.Kind != want.kind {
			t.Errorf("stage %d: expected kind %s, got %s", i, want.kind, got.Kind)
		}
	}

	if plan.Stages[0].Batch != 1 || plan.Stages[3].Batch != 2 {
		t.Error("fan-out stages should carry batch numbers 1 and 2")
	}
}
