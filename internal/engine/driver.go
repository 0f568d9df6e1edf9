package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/executor"
	"github.com/ryabinin/cascade/internal/repo"
	"github.com/ryabinin/cascade/internal/telemetry"
)

// defaultRunTimeout — бюджет времени на один workflow run целиком.
const defaultRunTimeout = 30 * time.Minute

// failWriteTimeout — отдельный бюджет на терминальную запись FAILED.
// Запись не разделяет run-контекст: abort по таймауту или cancel
// принёс бы сюда уже мёртвый ctx, и FAILED никогда бы не записался.
const failWriteTimeout = 10 * time.Second

// JobStore — контракт персистентности, который потребляет Driver.
//
// Реализация обязана делать терминальные записи идемпотентными:
// mark на уже завершённом job — no-op с repo.ErrTerminalStatus.
// MarkRunning — это claim: переход записывается только из PENDING,
// проигранный claim возвращает repo.ErrAlreadyClaimed.
// *repo.JobRepo удовлетворяет контракту.
type JobStore interface {
	MarkRunning(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, result *domain.JobResult) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// Driver исполняет фиксированный Plan одного job.
//
// Driver логически однопоточен per job: один вызов Run — одна
// последовательная машина состояний. Конкурентность живёт ниже,
// в fan-out'ах executor'а; Run суспендируется ровно в четырёх точках —
// два barrier'а и два aggregate-join'а.
type Driver struct {
	store      JobStore
	exec       executor.Executor
	logger     *slog.Logger
	runTimeout time.Duration
}

// Config — конфигурация Driver.
type Config struct {
	Store    JobStore
	Executor executor.Executor

	// RunTimeout — максимальное время одного run (default: 30m).
	RunTimeout time.Duration

	Logger *slog.Logger
}

// NewDriver создаёт новый Driver.
func NewDriver(cfg Config) *Driver {
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Driver{
		store:      cfg.Store,
		exec:       cfg.Executor,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// runState — transient состояние одного Workflow Run.
// Живёт только внутри Run и уничтожается на терминальном статусе.
type runState struct {
	batchResults []domain.SubtaskResult
	aggregates   [2]domain.AggregateResult
	base         *int
}

// Run ведёт job от PENDING до терминального статуса.
//
// CREATED → RUNNING записывается до отправки первого subtask. Ошибка на
// любой стадии прерывает все последующие, job получает FAILED ровно один
// раз; handles стадий, которые так и не начались, не создаются вовсе.
func (d *Driver) Run(ctx context.Context, job *domain.Job) error {
	ctx, cancel := context.WithTimeout(ctx, d.runTimeout)
	defer cancel()

	logger := telemetry.WithUsername(telemetry.WithJobID(d.logger, job.ID.String()), job.Username)

	if err := d.store.MarkRunning(ctx, job.ID); err != nil {
		// Проигранный claim — job ведёт другой оркестратор (или он уже
		// терминален); это не падение workflow, просто run не наш
		if errors.Is(err, repo.ErrAlreadyClaimed) || errors.Is(err, repo.ErrTerminalStatus) {
			logger.Debug("job claimed elsewhere, skipping run", "reason", err)
			return nil
		}
		return d.fail(ctx, logger, job, "start", fmt.Errorf("%w: %v", ErrPersistenceFailure, err))
	}
	job.MarkRunning()

	plan := NewPlan(job.Username)
	state := &runState{}

	logger.Info("workflow started", "stages", len(plan.Stages))

	for _, stage := range plan.Stages {
		if err := d.runStage(ctx, job, stage, state); err != nil {
			return d.fail(ctx, logger, job, stage.Name, err)
		}
		logger.Debug("stage resolved", "stage", stage.Name)
	}

	logger.Info("workflow completed",
		"first_batch_sum", state.aggregates[0].AggregatedSum,
		"second_batch_sum", state.aggregates[1].AggregatedSum,
	)
	telemetry.JobsCompleted.WithLabelValues(string(domain.JobStatusCompleted)).Inc()

	return nil
}

// runStage исполняет одну стадию плана.
func (d *Driver) runStage(ctx context.Context, job *domain.Job, stage Stage, state *runState) error {
	switch stage.Kind {
	case StageFanOut:
		return d.runFanOut(ctx, job, stage, state)

	case StageAggregate:
		return d.runAggregate(ctx, job, stage, state)

	case StageDeriveBase:
		// Чистое вычисление, суспензии нет
		base := state.aggregates[0].DeriveBase()
		state.base = &base
		return nil

	case StageFinalize:
		result := &domain.JobResult{
			FirstBatch:  state.aggregates[0],
			SecondBatch: state.aggregates[1],
		}
		if err := d.store.MarkCompleted(ctx, job.ID, result); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}
		job.MarkCompleted(result)
		return nil

	default:
		return fmt.Errorf("unknown stage kind: %s", stage.Kind)
	}
}

// runFanOut отправляет batch и ждёт barrier по всем участникам.
func (d *Driver) runFanOut(ctx context.Context, job *domain.Job, stage Stage, state *runState) error {
	var base *int
	if stage.Batch == 2 {
		base = state.base
	}

	specs := domain.NewBatch(job.Username, stage.Batch, base)

	joined, err := d.exec.SubmitAll(ctx, job.ID, specs)
	if err != nil {
		return fmt.Errorf("%w: dispatch batch %d: %v", ErrSubtaskFailure, stage.Batch, err)
	}

	results, err := joined.Join(ctx)
	if err != nil {
		return fmt.Errorf("%w: batch %d: %v", ErrSubtaskFailure, stage.Batch, err)
	}

	state.batchResults = results
	return nil
}

// runAggregate отправляет редукцию batch'а на executor и ждёт результат.
func (d *Driver) runAggregate(ctx context.Context, job *domain.Job, stage Stage, state *runState) error {
	handle, err := d.exec.SubmitAggregate(ctx, job.ID, stage.Batch, job.Username, state.batchResults)
	if err != nil {
		return fmt.Errorf("%w: dispatch aggregate %d: %v", ErrAggregationFailure, stage.Batch, err)
	}

	agg, err := handle.Join(ctx)
	if err != nil {
		if errors.Is(err, executor.ErrMalformedResult) {
			return fmt.Errorf("%w: aggregate %d: %v", ErrMalformedAggregateResult, stage.Batch, err)
		}
		return fmt.Errorf("%w: aggregate %d: %v", ErrAggregationFailure, stage.Batch, err)
	}

	// Результат обязан быть той самой типизированной структурой
	// для нашего пользователя; несовпадение — жёсткая ошибка
	if agg.Username != job.Username {
		return fmt.Errorf("%w: aggregate %d: username %q, want %q",
			ErrMalformedAggregateResult, stage.Batch, agg.Username, job.Username)
	}

	state.aggregates[stage.Batch-1] = agg
	return nil
}

// fail записывает FAILED ровно один раз и возвращает обёрнутую ошибку.
//
// Ошибка персистентности самой записи FAILED фатальна и логируется для
// out-of-band ремедиации: job остаётся в устаревшем RUNNING, его подберёт
// reconciliation sweep. Молчаливых retry здесь нет.
func (d *Driver) fail(ctx context.Context, logger *slog.Logger, job *domain.Job, stageName string, cause error) error {
	msg := fmt.Sprintf("stage %s: %v", stageName, cause)

	// Run-контекст к этому моменту может быть уже отменён (abort по
	// таймауту) — терминальная запись идёт на своём собственном бюджете
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failWriteTimeout)
	defer cancel()

	if err := d.store.MarkFailed(writeCtx, job.ID, msg); err != nil {
		if errors.Is(err, repo.ErrTerminalStatus) {
			// Job уже терминален: stray-завершение, писать нечего
			logger.Debug("skip failed mark, job already terminal")
		} else {
			logger.Error("failed to persist FAILED status, job left RUNNING until reconciliation",
				"stage", stageName,
				"cause", msg,
				"error", err,
			)
		}
	} else {
		job.MarkFailed(msg)
	}

	logger.Warn("workflow failed", "stage", stageName, "error", cause)
	telemetry.JobsCompleted.WithLabelValues(string(domain.JobStatusFailed)).Inc()

	return fmt.Errorf("%w: %s", ErrWorkflowAbort, msg)
}
