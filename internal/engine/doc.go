// Package engine — ядро системы: машина состояний workflow.
//
// Plan описывает фиксированную топологию из шести типизированных стадий
// (два fan-out'а по 5 subtasks, две редукции, вывод базы, финализация);
// Driver исполняет план, владея отправкой fan-out'ов, barrier-join'ами
// и маппингом ошибок в терминальный статус job.
//
// Driver не зависит от конкретного субстрата исполнения: он потребляет
// контракты executor.Executor и JobStore.
package engine
