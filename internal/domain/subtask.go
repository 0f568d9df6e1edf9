package domain

import "fmt"

// BatchSize — фиксированный размер batch: 5 subtasks на каждый fan-out.
const BatchSize = 5

// Subtask — спецификация одной единицы работы для Task Executor.
//
// Subtask эфемерен: он не персистится, живёт только в полёте между
// оркестратором и worker'ом. Результат возвращается как SubtaskResult.
type Subtask struct {
	// TaskID — детерминированный идентификатор: "{username}-b{batch}-{index}".
	TaskID string `json:"task_id"`

	// Username — владелец родительского job.
	Username string `json:"username"`

	// Batch — номер batch (1 или 2).
	Batch int `json:"batch"`

	// Index — позиция внутри batch (0..4).
	Index int `json:"index"`

	// Base — аддитивная база для batch 2 (производная от aggregate 1).
	// Nil для batch 1.
	Base *int `json:"base,omitempty"`
}

// SubtaskID возвращает детерминированный идентификатор subtask.
func SubtaskID(username string, batch, index int) string {
	return fmt.Sprintf("%s-b%d-%d", username, batch, index)
}

// NewBatch создаёт полный batch из BatchSize subtasks.
// base == nil для batch 1; для batch 2 каждый subtask несёт производную базу.
func NewBatch(username string, batch int, base *int) []Subtask {
	specs := make([]Subtask, BatchSize)
	for i := range specs {
		specs[i] = Subtask{
			TaskID:   SubtaskID(username, batch, i),
			Username: username,
			Batch:    batch,
			Index:    i,
			Base:     base,
		}
	}
	return specs
}
