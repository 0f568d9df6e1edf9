package engine

import "errors"

// Таксономия ошибок workflow.
var (
	// ErrSubtaskFailure — участник batch'а завершился с ошибкой.
	ErrSubtaskFailure = errors.New("subtask failure")

	// ErrAggregationFailure — aggregate-стадия завершилась с ошибкой.
	ErrAggregationFailure = errors.New("aggregation failure")

	// ErrMalformedAggregateResult — стадия получила вход, не совпадающий
	// с объявленной типизированной формой. Никакого best-effort парсинга.
	ErrMalformedAggregateResult = errors.New("malformed aggregate result")

	// ErrPersistenceFailure — запись в Job Store не удалась.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrWorkflowAbort — любая из ошибок выше прервала in-flight run.
	ErrWorkflowAbort = errors.New("workflow aborted")
)
