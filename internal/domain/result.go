package domain

// SubtaskResult — результат выполнения одного subtask.
//
// Возвращается Task Executor'ом; порядок завершения внутри batch
// не специфицирован и не важен (редукция — коммутативная сумма).
type SubtaskResult struct {
	// TaskID — идентификатор subtask ("{username}-b{batch}-{index}").
	TaskID string `json:"task_id"`

	// Result — вычисленное целочисленное значение.
	Result int `json:"result"`
}

// AggregateResult — результат редукции одного batch.
//
// Единственная типизированная структура, пересекающая границы стадий.
// Стадия, которая не может интерпретировать свой вход как AggregateResult,
// падает с MalformedAggregateResult — никакого best-effort парсинга.
type AggregateResult struct {
	// AggregatedSum — сумма result всех subtasks batch'а.
	AggregatedSum int `json:"aggregated_sum"`

	// Username — владелец job, для которого считался batch.
	Username string `json:"username"`
}

// DeriveBase возвращает базу для batch 2: целочисленное деление суммы
// на размер batch (floor division).
func (a AggregateResult) DeriveBase() int {
	return a.AggregatedSum / BatchSize
}

// Reduce сворачивает результаты batch'а в AggregateResult.
func Reduce(username string, results []SubtaskResult) AggregateResult {
	total := 0
	for _, r := range results {
		total += r.Result
	}
	return AggregateResult{AggregatedSum: total, Username: username}
}

// JobResult — итоговый результат COMPLETED job.
//
// Собирается стадией finalize из двух aggregate-результатов.
type JobResult struct {
	// FirstBatch — aggregate результата batch 1.
	FirstBatch AggregateResult `json:"first_batch"`

	// SecondBatch — aggregate результата batch 2.
	SecondBatch AggregateResult `json:"second_batch"`
}
