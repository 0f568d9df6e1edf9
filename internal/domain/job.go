package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — внешне наблюдаемая единица оркестрируемой работы.
//
// Job создаётся при POST /orchestrate/{username}, если admission control
// пропустил запрос. Дальше его ведёт ровно один Workflow Run внутри
// оркестратора; API читает только персистентный снимок из Job Store.
type Job struct {
	// ID — уникальный идентификатор job. Генерируется при создании, неизменяем.
	ID uuid.UUID `json:"job_id"`

	// Username — владелец job, неизменяем.
	Username string `json:"username"`

	// Status — текущий статус (PENDING/RUNNING/COMPLETED/FAILED).
	Status JobStatus `json:"status"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последней записи. Обновляется при каждом изменении.
	UpdatedAt time.Time `json:"updated_at"`

	// Result — итоговый результат workflow. Заполнен iff Status == COMPLETED.
	Result *JobResult `json:"result,omitempty"`

	// Error — человекочитаемое сообщение об ошибке. Заполнено iff Status == FAILED.
	Error string `json:"error,omitempty"`
}

// NewJob создаёт новый job в статусе PENDING.
func NewJob(username string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New(),
		Username:  username,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsFinished возвращает true, если job завершён (в любом терминальном статусе).
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// MarkRunning переводит job в статус RUNNING.
func (j *Job) MarkRunning() {
	j.Status = JobStatusRunning
	j.UpdatedAt = time.Now().UTC()
}

// MarkCompleted переводит job в статус COMPLETED с результатом.
func (j *Job) MarkCompleted(result *JobResult) {
	j.Status = JobStatusCompleted
	j.Result = result
	j.UpdatedAt = time.Now().UTC()
}

// MarkFailed переводит job в статус FAILED с ошибкой.
func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.UpdatedAt = time.Now().UTC()
}
