// Package orchestrator управляет выполнением jobs.
//
// Orchestrator отвечает за:
//   - Получение новых jobs из очереди RabbitMQ (+ polling fallback)
//   - Запуск одного engine.Driver на job
//   - Учёт активных jobs (дубликаты не запускаются)
//   - Маршрутизацию task.completed в ожидающие handles executor'а
//
// Сама машина состояний workflow живёт в пакете engine.
package orchestrator
