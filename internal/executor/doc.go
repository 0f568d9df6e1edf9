// Package executor реализует контракт Task Executor.
//
// Структура:
//   - executor.go — контракты Submit/SubmitAll/SubmitAggregate и handles
//   - router.go   — корреляция task.completed → ожидающий handle
//   - amqp.go     — исполнение через RabbitMQ и worker fleet
//   - pool.go     — исполнение на локальных горутинах (тесты, standalone)
//
// Engine суспендируется на Join handle'ов; это единственные точки
// ожидания в workflow.
package executor
