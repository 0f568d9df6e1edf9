package engine

// StageKind — вид стадии workflow.
type StageKind string

const (
	// StageFanOut — конкурентная отправка batch'а из 5 subtasks
	// с barrier'ом по всем участникам.
	StageFanOut StageKind = "fan_out"

	// StageAggregate — редукция результатов batch'а в AggregateResult.
	// Исполняется на том же асинхронном субстрате, что и subtasks.
	StageAggregate StageKind = "aggregate"

	// StageDeriveBase — вычисление базы batch 2 из aggregate 1
	// (целочисленное деление, floor).
	StageDeriveBase StageKind = "derive_base"

	// StageFinalize — сборка итогового JobResult и запись COMPLETED.
	StageFinalize StageKind = "finalize"
)

// Stage — одна типизированная стадия workflow.
type Stage struct {
	// Name — имя стадии для логов и сообщений об ошибках.
	Name string

	// Kind — вид стадии.
	Kind StageKind

	// Batch — номер batch'а для fan-out и aggregate стадий (1 или 2).
	Batch int
}

// Plan — фиксированная топология workflow одного job:
//
//	batch1 → aggregate1 → derive base → batch2 → aggregate2 → finalize
//
// Стадии строго последовательны; каждая начинается только после
// разрешения barrier'а/редукции предыдущей. Это не общий DAG-язык:
// топология неизменна, меняется только username, параметризующий
// идентификаторы subtasks.
type Plan struct {
	// Username — владелец job; параметризует task_id всех subtasks.
	Username string

	// Stages — стадии в порядке исполнения.
	Stages []Stage
}

// NewPlan строит план двухстадийного batch-and-aggregate workflow.
func NewPlan(username string) *Plan {
	return &Plan{
		Username: username,
		Stages: []Stage{
			{Name: "batch1", Kind: StageFanOut, Batch: 1},
			{Name: "aggregate1", Kind: StageAggregate, Batch: 1},
			{Name: "derive_base", Kind: StageDeriveBase},
			{Name: "batch2", Kind: StageFanOut, Batch: 2},
			{Name: "aggregate2", Kind: StageAggregate, Batch: 2},
			{Name: "finalize", Kind: StageFinalize},
		},
	}
}
