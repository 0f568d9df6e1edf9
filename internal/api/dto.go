package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/domain"
)

// SubmitResponse — ответ на принятый запрос оркестрации.
type SubmitResponse struct {
	JobID     uuid.UUID `json:"job_id"`
	StatusURL string    `json:"status_url"`
}

// JobView — внешнее представление job.
//
// Result присутствует только при COMPLETED, Error — только при FAILED.
// View строится из персистентного снимка Job Store: повторные чтения
// терминального job возвращают побайтно идентичный ответ.
type JobView struct {
	JobID     uuid.UUID         `json:"job_id"`
	Username  string            `json:"username"`
	Status    domain.JobStatus  `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Result    *domain.JobResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// JobViewFromDomain конвертирует domain.Job в JobView.
func JobViewFromDomain(j *domain.Job) JobView {
	view := JobView{
		JobID:     j.ID,
		Username:  j.Username,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}

	// Инвариант терминальных статусов: заполнено ровно одно из result/error
	switch j.Status {
	case domain.JobStatusCompleted:
		view.Result = j.Result
	case domain.JobStatusFailed:
		view.Error = j.Error
	}

	return view
}

// JobListResponse — ответ со списком jobs пользователя.
type JobListResponse struct {
	Jobs  []JobView `json:"jobs"`
	Total int       `json:"total"`
}
