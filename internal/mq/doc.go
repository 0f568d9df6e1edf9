// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - job.pending      — новый job ожидает выполнения
//   - task.ready       — subtask или aggregate готов к выполнению
//   - task.completed   — единица работы завершена
//
// Exchanges:
//   - cascade.jobs     — события jobs
//   - cascade.tasks    — события единиц работы
//   - cascade.dlq      — dead letter queue
package mq
