package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ryabinin/cascade/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
//
// Все мутации — single-row, last-write-wins; терминальные записи
// защищены guard'ом по статусу, так что поздние stray-записи
// от заброшенных fan-out'ов становятся no-op.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Create создаёт новый job без проверки лимита.
// Для admission-пути используйте CreateAdmitted.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (id, username, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Username,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// CreateAdmitted атомарно проверяет лимит активных jobs пользователя
// и создаёт job в одной транзакции.
//
// Advisory lock по username сериализует конкурентные submissions одного
// пользователя: два запроса не могут одновременно увидеть count < limit
// и оба вставить строку. Возвращает ErrLimitReached без побочных эффектов,
// если лимит исчерпан.
func (r *JobRepo) CreateAdmitted(ctx context.Context, job *domain.Job, limit int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Лок держится до конца транзакции
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, job.Username); err != nil {
		return fmt.Errorf("acquire admission lock: %w", err)
	}

	var active int
	countQuery := `
		SELECT count(*) FROM jobs
		WHERE username = $1 AND status IN ('PENDING', 'RUNNING')
	`
	if err := tx.QueryRow(ctx, countQuery, job.Username).Scan(&active); err != nil {
		return fmt.Errorf("count active jobs: %w", err)
	}

	if active >= limit {
		return ErrLimitReached
	}

	insertQuery := `
		INSERT INTO jobs (id, username, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, insertQuery,
		job.ID,
		job.Username,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit admission: %w", err)
	}
	return nil
}

// Get возвращает job по паре (id, username).
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID, username string) (*domain.Job, error) {
	query := `
		SELECT id, username, status, created_at, updated_at, result, error
		FROM jobs
		WHERE id = $1 AND username = $2
	`
	return scanJob(r.pool.QueryRow(ctx, query, id, username))
}

// GetByID возвращает job по ID, без проверки владельца.
// Используется оркестратором, который работает с любыми jobs.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT id, username, status, created_at, updated_at, result, error
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// CountActive возвращает количество jobs пользователя в статусах PENDING/RUNNING.
func (r *JobRepo) CountActive(ctx context.Context, username string) (int, error) {
	query := `
		SELECT count(*) FROM jobs
		WHERE username = $1 AND status IN ('PENDING', 'RUNNING')
	`
	var count int
	if err := r.pool.QueryRow(ctx, query, username).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// MarkRunning атомарно берёт PENDING job в работу (claim).
//
// Переход записывается только из PENDING: два оркестратора, увидевшие
// один job, не могут оба выиграть claim. Проигравший получает
// ErrAlreadyClaimed; ErrTerminalStatus — если job уже завершён.
func (r *JobRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE jobs
		SET status = 'RUNNING', updated_at = $2
		WHERE id = $1 AND status = 'PENDING'
	`
	result, err := r.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Строка не обновилась: job нет, он терминален, или claim проигран
	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return ErrTerminalStatus
	}
	return ErrAlreadyClaimed
}

// MarkCompleted переводит job в статус COMPLETED с результатом.
func (r *JobRepo) MarkCompleted(ctx context.Context, id uuid.UUID, result *domain.JobResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = 'COMPLETED', result = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')
	`
	return r.guardedUpdate(ctx, id, query, resultJSON, time.Now().UTC())
}

// MarkFailed переводит job в статус FAILED с сообщением об ошибке.
func (r *JobRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = 'FAILED', error = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'FAILED')
	`
	return r.guardedUpdate(ctx, id, query, errMsg, time.Now().UTC())
}

// ListByUsername возвращает jobs пользователя, новые первыми.
func (r *JobRepo) ListByUsername(ctx context.Context, username string, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, username, status, created_at, updated_at, result, error
		FROM jobs
		WHERE username = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, username, limit)
}

// ListPending возвращает jobs в статусе PENDING, старые первыми.
// Используется polling fallback'ом оркестратора.
func (r *JobRepo) ListPending(ctx context.Context, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, username, status, created_at, updated_at, result, error
		FROM jobs
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

// ListStaleRunning возвращает jobs, застрявшие в RUNNING дольше cutoff.
// Используется reconciliation sweep'ом.
func (r *JobRepo) ListStaleRunning(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error) {
	query := `
		SELECT id, username, status, created_at, updated_at, result, error
		FROM jobs
		WHERE status = 'RUNNING' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, cutoff, limit)
}

// --- Helpers ---

// guardedUpdate выполняет update с guard'ом по терминальному статусу.
func (r *JobRepo) guardedUpdate(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	allArgs := append([]any{id}, args...)
	result, err := r.pool.Exec(ctx, query, allArgs...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо job не существует, либо уже терминален
		exists, err := r.exists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrTerminalStatus
	}
	return nil
}

func (r *JobRepo) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check job exists: %w", err)
	}
	return exists, nil
}

func (r *JobRepo) list(ctx context.Context, query string, args ...any) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// scanJob сканирует одну строку в Job.
func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var resultJSON []byte
	var jobError *string

	err := row.Scan(
		&job.ID,
		&job.Username,
		&job.Status,
		&job.CreatedAt,
		&job.UpdatedAt,
		&resultJSON,
		&jobError,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if resultJSON != nil {
		var result domain.JobResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		job.Result = &result
	}

	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}
