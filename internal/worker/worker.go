package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ryabinin/cascade/internal/mq"
)

// defaultPrefetch — количество задач, забираемых worker'ом наперёд.
const defaultPrefetch = 5

// Worker выполняет отдельные единицы работы.
//
// Worker — stateless компонент системы, который:
//   - Получает subtasks и aggregate-задачи из очереди tasks.ready
//   - Выполняет их через реестр executor'ов
//   - Публикует результат в tasks.completed
//
// Workers масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	// MQ
	publisher *mq.Publisher
	conn      *mq.Connection

	// Executor registry
	registry *Registry

	// Consumer
	consumer *mq.Consumer
	prefetch int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Worker.
type Config struct {
	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Executor registry (опционально; если nil — используется NewRegistry())
	Registry *Registry

	// Prefetch — количество сообщений наперёд (default: 5)
	Prefetch int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		publisher: cfg.Publisher,
		conn:      cfg.Conn,
		registry:  registry,
		prefetch:  prefetch,
		logger:    logger,
	}
}

// Start запускает Worker.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:    string(mq.QueueTasksReady),
		Accept:   []mq.MessageType{mq.MessageTypeTaskReady},
		Handler:  w.handleTaskReady,
		Prefetch: w.prefetch,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("task consumer error", "error", err)
		}
	}()

	w.logger.Info("worker started", "prefetch", w.prefetch)
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()
	w.logger.Info("worker stopped")
}
