// Package worker выполняет отдельные единицы работы.
//
// Worker потребляет tasks.ready, исполняет задачу по её виду
// (subtask или aggregate) и публикует результат в tasks.completed.
// Worker ничего не знает про jobs и их статусы — это забота
// оркестратора.
package worker
