package repo

import "errors"

// Общие ошибки репозитория.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrLimitReached — у пользователя уже максимум активных jobs.
	ErrLimitReached = errors.New("active job limit reached")

	// ErrTerminalStatus — job уже в терминальном статусе, запись отклонена.
	ErrTerminalStatus = errors.New("job already in terminal status")

	// ErrAlreadyClaimed — job уже взят в работу другим процессом.
	ErrAlreadyClaimed = errors.New("job already claimed")
)
