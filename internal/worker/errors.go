package worker

import "errors"

// Ошибки worker'а.
var (
	// ErrUnknownTaskKind — для вида задачи нет зарегистрированного executor'а.
	ErrUnknownTaskKind = errors.New("unknown task kind")

	// ErrMalformedSpec — payload задачи не совпадает с объявленной формой.
	ErrMalformedSpec = errors.New("malformed task spec")
)
