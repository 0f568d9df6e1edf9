// Package reconciler подбирает осиротевшие jobs.
//
// Периодический sweep (cron-выражение или интервал) повторно публикует
// неподобранные PENDING jobs и принудительно помечает FAILED jobs,
// застрявшие в RUNNING за пределами бюджета времени run'а.
package reconciler
