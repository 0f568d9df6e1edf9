package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrJobNotFound — job не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyActive — job уже ведётся этим оркестратором.
	ErrJobAlreadyActive = errors.New("job already being processed")

	// ErrJobNotPending — job не в статусе PENDING.
	ErrJobNotPending = errors.New("job is not in PENDING status")

	// ErrOrchestratorStopped — оркестратор остановлен.
	ErrOrchestratorStopped = errors.New("orchestrator stopped")
)
