package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ryabinin/cascade/internal/mq"
	"github.com/ryabinin/cascade/internal/repo"
	"github.com/ryabinin/cascade/internal/telemetry"
)

// Default configuration values.
const (
	defaultInterval        = 5 * time.Minute
	defaultPendingDeadline = 2 * time.Minute
	defaultMaxRuntime      = time.Hour
	defaultBatchSize       = 100
)

// Reconciler — периодический sweep за осиротевшими jobs.
//
// Две категории:
//   - PENDING jobs, которые никто не подобрал (событие потерялось,
//     оркестратор был выключен) — повторно публикуются в jobs.pending;
//   - RUNNING jobs, застрявшие дольше максимального времени run'а
//     (например, запись FAILED не удалась и job остался в устаревшем
//     RUNNING) — принудительно помечаются FAILED.
//
// Это документированная out-of-band ремедиация: ядро workflow не делает
// молчаливых retry терминальных записей.
type Reconciler struct {
	jobRepo   *repo.JobRepo
	publisher *mq.Publisher

	cronExpr        string
	interval        time.Duration
	pendingDeadline time.Duration
	maxRuntime      time.Duration
	batchSize       int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Reconciler.
type Config struct {
	JobRepo *repo.JobRepo

	// Publisher — для повторной публикации потерянных PENDING jobs.
	// Может быть nil: тогда polling fallback оркестратора подберёт их сам.
	Publisher *mq.Publisher

	// CronExpr — cron-расписание sweep'ов (приоритетнее Interval).
	CronExpr string

	// Interval — период sweep'ов, если cron не задан (default: 5m).
	Interval time.Duration

	// PendingDeadline — сколько job может ждать подбора (default: 2m).
	PendingDeadline time.Duration

	// MaxRuntime — максимальное время RUNNING (default: 1h).
	MaxRuntime time.Duration

	// BatchSize — количество jobs за один sweep (default: 100).
	BatchSize int

	Logger *slog.Logger
}

// New создаёт новый Reconciler.
func New(cfg Config) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}

	pendingDeadline := cfg.PendingDeadline
	if pendingDeadline <= 0 {
		pendingDeadline = defaultPendingDeadline
	}

	maxRuntime := cfg.MaxRuntime
	if maxRuntime <= 0 {
		maxRuntime = defaultMaxRuntime
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		jobRepo:         cfg.JobRepo,
		publisher:       cfg.Publisher,
		cronExpr:        cfg.CronExpr,
		interval:        interval,
		pendingDeadline: pendingDeadline,
		maxRuntime:      maxRuntime,
		batchSize:       batchSize,
		logger:          logger,
	}
}

// Start запускает цикл sweep'ов.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.cronExpr != "" {
		if err := ValidateCronExpr(r.cronExpr); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting reconciler",
		"cron", r.cronExpr,
		"interval", r.interval,
		"max_runtime", r.maxRuntime,
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop(ctx)
	}()

	return nil
}

// Stop останавливает Reconciler.
func (r *Reconciler) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.wg.Wait()
	r.logger.Info("reconciler stopped")
}

// loop спит до следующего расписания и выполняет sweep.
func (r *Reconciler) loop(ctx context.Context) {
	for {
		next, err := NextDue(r.cronExpr, r.interval, time.Now())
		if err != nil {
			r.logger.Error("failed to compute next sweep time", "error", err)
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход ремедиации.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.sweepPending(ctx)
	r.sweepRunning(ctx)
}

// sweepPending повторно публикует PENDING jobs, которые никто не подобрал.
func (r *Reconciler) sweepPending(ctx context.Context) {
	if r.publisher == nil {
		return
	}

	jobs, err := r.jobRepo.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	cutoff := time.Now().Add(-r.pendingDeadline)
	for i := range jobs {
		job := &jobs[i]
		if job.UpdatedAt.After(cutoff) {
			continue
		}

		if err := r.publisher.PublishJobPending(ctx, job.ID); err != nil {
			r.logger.Error("failed to republish pending job", "job_id", job.ID, "error", err)
			continue
		}

		telemetry.StaleJobsReconciled.WithLabelValues("republished").Inc()
		r.logger.Info("republished stale pending job",
			"job_id", job.ID,
			"username", job.Username,
			"pending_for", time.Since(job.CreatedAt),
		)
	}
}

// sweepRunning помечает FAILED jobs, застрявшие в RUNNING дольше MaxRuntime.
func (r *Reconciler) sweepRunning(ctx context.Context) {
	cutoff := time.Now().Add(-r.maxRuntime)

	jobs, err := r.jobRepo.ListStaleRunning(ctx, cutoff, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list stale running jobs", "error", err)
		return
	}

	for i := range jobs {
		job := &jobs[i]

		errMsg := "job exceeded maximum runtime; failed by reconciliation sweep"
		if err := r.jobRepo.MarkFailed(ctx, job.ID, errMsg); err != nil {
			r.logger.Error("failed to mark stale job", "job_id", job.ID, "error", err)
			continue
		}

		telemetry.StaleJobsReconciled.WithLabelValues("failed").Inc()
		r.logger.Warn("failed stale running job",
			"job_id", job.ID,
			"username", job.Username,
			"running_for", time.Since(job.UpdatedAt),
		)
	}
}
