package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/ryabinin/cascade/internal/domain"
	"github.com/ryabinin/cascade/internal/repo"
	"github.com/ryabinin/cascade/internal/telemetry"
)

// MaxConcurrentJobs — лимит одновременно активных jobs одного пользователя.
const MaxConcurrentJobs = 3

// defaultListLimit — количество jobs в списке пользователя.
const defaultListLimit = 50

// Store — контракт Job Store, который потребляют handlers.
// *repo.JobRepo удовлетворяет контракту.
type Store interface {
	// CreateAdmitted атомарно проверяет лимит и создаёт job;
	// возвращает repo.ErrLimitReached при исчерпанном лимите.
	CreateAdmitted(ctx context.Context, job *domain.Job, limit int) error

	// Get возвращает job по паре (id, username) или repo.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID, username string) (*domain.Job, error)

	// ListByUsername возвращает jobs пользователя, новые первыми.
	ListByUsername(ctx context.Context, username string, limit int) ([]domain.Job, error)
}

// Publisher — контракт публикации события о новом job.
// Nil publisher допустим: тогда job подберёт polling оркестратора.
type Publisher interface {
	PublishJobPending(ctx context.Context, jobID uuid.UUID) error
}

// Handler обслуживает submission и status boundary.
type Handler struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
}

// Config — конфигурация Handler.
type Config struct {
	Store     Store
	Publisher Publisher
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// Orchestrate запускает новый workflow для пользователя.
//
// POST /orchestrate/{username}
//
//	202 {job_id, status_url} — admission пропустил, job создан
//	429 {detail}             — у пользователя уже MaxConcurrentJobs активных jobs
func (h *Handler) Orchestrate(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		BadRequest(w, "username is required")
		return
	}

	job := domain.NewJob(username)

	// Admission: check-then-insert закрыт на уровне store — конкурентные
	// submissions одного пользователя сериализуются в одной транзакции
	if err := h.store.CreateAdmitted(r.Context(), job, MaxConcurrentJobs); err != nil {
		if errors.Is(err, repo.ErrLimitReached) {
			telemetry.AdmissionRejected.Inc()
			TooManyRequests(w, fmt.Sprintf("User '%s' already has %d running jobs.", username, MaxConcurrentJobs))
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	telemetry.JobsSubmitted.Inc()
	h.logger.Info("job submitted", "job_id", job.ID, "username", username)

	// Событие для оркестратора; при недоступном MQ job подберёт polling
	if h.publisher != nil {
		if err := h.publisher.PublishJobPending(r.Context(), job.ID); err != nil {
			h.logger.Warn("failed to publish job.pending, polling will pick it up",
				"job_id", job.ID,
				"error", err,
			)
		}
	}

	JSON(w, http.StatusAccepted, SubmitResponse{
		JobID:     job.ID,
		StatusURL: fmt.Sprintf("/status/%s/%s", username, job.ID),
	})
}

// Status возвращает персистентный снимок job.
//
// GET /status/{username}/{job_id}
//
//	200 JobView  — result только при COMPLETED, error только при FAILED
//	404 {detail} — неизвестная пара job_id/username
//
// Чтение никогда не блокируется на in-flight работе: источник —
// только Job Store.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	jobID, err := uuid.Parse(r.PathValue("job_id"))
	if err != nil {
		BadRequest(w, "invalid job_id")
		return
	}

	job, err := h.store.Get(r.Context(), jobID, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			NotFound(w, fmt.Sprintf("Job '%s' not found for user '%s'.", jobID, username))
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	JSON(w, http.StatusOK, JobViewFromDomain(job))
}

// ListJobs возвращает jobs пользователя, новые первыми.
//
// GET /jobs/{username}
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		BadRequest(w, "username is required")
		return
	}

	jobs, err := h.store.ListByUsername(r.Context(), username, defaultListLimit)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	views := make([]JobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, JobViewFromDomain(&jobs[i]))
	}

	JSON(w, http.StatusOK, JobListResponse{Jobs: views, Total: len(views)})
}
