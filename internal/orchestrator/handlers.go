package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/mq"
	"github.com/ryabinin/cascade/internal/repo"
)

// handleJobPending обрабатывает событие о новом pending job.
func (o *Orchestrator) handleJobPending(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobPendingPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("failed to parse job.pending payload", "error", err)
		return err
	}

	o.logger.Debug("received job.pending event", "job_id", payload.JobID)

	if o.isJobActive(payload.JobID) {
		o.logger.Debug("job already active, skipping", "job_id", payload.JobID)
		return nil
	}

	if err := o.processJob(ctx, payload.JobID); err != nil {
		// Дубликаты и гонки с poll'ом — не ошибка доставки
		if errors.Is(err, ErrJobNotPending) || errors.Is(err, ErrJobAlreadyActive) {
			o.logger.Debug("job not processed", "job_id", payload.JobID, "reason", err)
			return nil
		}
		o.logger.Error("failed to process job", "job_id", payload.JobID, "error", err)
		return err
	}

	return nil
}

// processJob берёт pending job в работу: одна горутина — один Workflow Run.
//
// Driver владеет job'ом от RUNNING до терминального статуса; оркестратор
// только учитывает его в активных, чтобы poll и consumer не запустили
// второй run для того же job_id. Статусная проверка ниже — быстрый фильтр
// внутри процесса; между процессами двойной run исключает claim в
// MarkRunning: PENDING → RUNNING выигрывает ровно один оркестратор.
func (o *Orchestrator) processJob(ctx context.Context, jobID uuid.UUID) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}

	job, err := o.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return fmt.Errorf("get job: %w", err)
	}

	if job.Status != domain.JobStatusPending {
		return ErrJobNotPending
	}

	if err := o.addActiveJob(jobID); err != nil {
		return err
	}

	o.logger.Info("job started",
		"job_id", jobID,
		"username", job.Username,
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.removeActiveJob(jobID)

		if err := o.driver.Run(ctx, job); err != nil {
			// Driver уже записал терминальный статус и контекст ошибки
			o.logger.Debug("workflow run finished with error", "job_id", jobID, "error", err)
		}
	}()

	return nil
}
