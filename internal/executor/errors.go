package executor

import "errors"

// Ошибки исполнения.
var (
	// ErrTaskFailed — единица работы завершилась с ошибкой на worker'е.
	ErrTaskFailed = errors.New("task failed")

	// ErrEmptyBatch — fan-out без участников.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrDuplicateTask — для этой пары (job, task) уже есть ожидающий handle.
	ErrDuplicateTask = errors.New("duplicate in-flight task")

	// ErrExecutorClosed — executor остановлен, новые submissions не принимаются.
	ErrExecutorClosed = errors.New("executor closed")

	// ErrMalformedResult — завершение пришло без результата ожидаемой формы.
	ErrMalformedResult = errors.New("malformed task result")
)
