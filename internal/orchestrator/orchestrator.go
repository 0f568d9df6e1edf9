package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/engine"
	"github.com/ryabinin/cascade/internal/executor"
	"github.com/ryabinin/cascade/internal/mq"
	"github.com/ryabinin/cascade/internal/repo"
	"github.com/ryabinin/cascade/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Orchestrator управляет выполнением jobs.
//
// Orchestrator — центральный компонент системы, который:
//   - Получает новые jobs из очереди RabbitMQ (event-driven)
//   - Периодически проверяет pending jobs в БД (polling fallback)
//   - Ведёт каждый job одной горутиной с engine.Driver
//   - Хостит completion router: consumer tasks.completed кормит
//     ожидающие handles AMQP executor'а
//   - Финализация (COMPLETED/FAILED) — забота Driver'а
type Orchestrator struct {
	// Repositories
	jobRepo *repo.JobRepo

	// Engine
	driver *engine.Driver
	router *executor.Router

	// MQ
	conn *mq.Connection

	// Active jobs — jobs в процессе выполнения
	activeJobs map[uuid.UUID]struct{}
	mu         sync.RWMutex

	// Consumers
	jobConsumer  *mq.Consumer
	taskConsumer *mq.Consumer

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// JobRepo — Job Store.
	JobRepo *repo.JobRepo

	// Driver — engine, ведущий один job.
	Driver *engine.Driver

	// Router — completion router AMQP executor'а.
	Router *executor.Router

	// Conn — соединение с RabbitMQ.
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 100)

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		jobRepo:      cfg.JobRepo,
		driver:       cfg.Driver,
		router:       cfg.Router,
		conn:         cfg.Conn,
		activeJobs:   make(map[uuid.UUID]struct{}),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для jobs.pending
//   - Consumer для tasks.completed (кормит completion router)
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	if o.conn != nil {
		o.jobConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsPending),
			Accept:   []mq.MessageType{mq.MessageTypeJobPending},
			Handler:  o.handleJobPending,
			Prefetch: 10,
		})

		o.taskConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueTasksCompleted),
			Accept:   []mq.MessageType{mq.MessageTypeTaskCompleted},
			Handler:  o.router.HandleCompleted,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.jobConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("job consumer error", "error", err)
			}
		}()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.taskConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("task consumer error", "error", err)
			}
		}()
	}

	// Запускаем polling
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}

	if o.jobConsumer != nil {
		o.jobConsumer.Stop()
	}
	if o.taskConsumer != nil {
		o.taskConsumer.Stop()
	}

	// Ждём завершения горутин, включая driver'ов активных jobs
	o.wg.Wait()

	o.logger.Info("orchestrator stopped",
		"active_jobs", o.ActiveJobsCount(),
	)
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs созданные пока были выключены)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	jobs, err := o.jobRepo.ListPending(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list pending jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	o.logger.Debug("poll found pending jobs", "count", len(jobs))

	for i := range jobs {
		job := &jobs[i]

		if o.isJobActive(job.ID) {
			continue
		}

		if err := o.processJob(ctx, job.ID); err != nil {
			if errors.Is(err, ErrJobAlreadyActive) || errors.Is(err, ErrJobNotPending) {
				continue
			}
			o.logger.Error("failed to process job from poll",
				"job_id", job.ID,
				"error", err,
			)
		}
	}
}

// isJobActive проверяет, ведётся ли job прямо сейчас.
func (o *Orchestrator) isJobActive(jobID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeJobs[jobID]
	return exists
}

// addActiveJob добавляет job в активные.
func (o *Orchestrator) addActiveJob(jobID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeJobs[jobID]; exists {
		return ErrJobAlreadyActive
	}

	o.activeJobs[jobID] = struct{}{}
	telemetry.ActiveJobs.Set(float64(len(o.activeJobs)))
	return nil
}

// removeActiveJob удаляет job из активных.
func (o *Orchestrator) removeActiveJob(jobID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeJobs, jobID)
	telemetry.ActiveJobs.Set(float64(len(o.activeJobs)))
}

// ActiveJobsCount возвращает количество активных jobs.
func (o *Orchestrator) ActiveJobsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeJobs)
}
