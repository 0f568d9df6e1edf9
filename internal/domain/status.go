package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//
// Статус монотонный: job никогда не возвращается в более ранний статус.
type JobStatus string

const (
	// JobStatusPending — job создан, но оркестратор ещё не начал выполнение.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — workflow в процессе выполнения.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusCompleted — workflow успешно завершён, result заполнен.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed — workflow завершился с ошибкой, error заполнен.
	JobStatusFailed JobStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (job завершён).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsActive возвращает true, если job учитывается в лимите admission control.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// rank — порядковый номер статуса в жизненном цикле.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo проверяет допустимость перехода статуса.
// Переходы только вперёд; из терминального статуса переходов нет.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}
