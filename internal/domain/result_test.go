package domain

import "testing"

func TestReduce(t *testing.T) {
	results := []SubtaskResult{
		{TaskID: "alice-b1-0", Result: 101},
		{TaskID: "alice-b1-1", Result: 205},
		{TaskID: "alice-b1-2", Result: 333},
		{TaskID: "alice-b1-3", Result: 150},
		{TaskID: "alice-b1-4", Result: 999},
	}

	agg := Reduce("alice", results)
	if agg.AggregatedSum != 1788 {
		t.Errorf("expected sum 1788, got %d", agg.AggregatedSum)
	}
	if agg.Username != "alice" {
		t.Errorf("expected username alice, got %s", agg.Username)
	}
}

func TestReduce_Empty(t *testing.T) {
	agg := Reduce("bob", nil)
	if agg.AggregatedSum != 0 {
		t.Errorf("expected sum 0, got %d", agg.AggregatedSum)
	}
}

func TestAggregateResult_DeriveBase(t *testing.T) {
	// 1788 / 5 = 357 (floor)
	agg := AggregateResult{AggregatedSum: 1788, Username: "alice"}
	if base := agg.DeriveBase(); base != 357 {
		t.Errorf("expected base 357, got %d", base)
	}

	// Ровное деление
	agg = AggregateResult{AggregatedSum: 2500, Username: "alice"}
	if base := agg.DeriveBase(); base != 500 {
		t.Errorf("expected base 500, got %d", base)
	}

	// Минимально возможная сумма: 5 subtasks по 100
	agg = AggregateResult{AggregatedSum: 500, Username: "alice"}
	if base := agg.DeriveBase(); base != 100 {
		t.Errorf("expected base 100, got %d", base)
	}
}

func TestSubtaskID(t *testing.T) {
	if id := SubtaskID("alice", 1, 0); id != "alice-b1-0" {
		t.Errorf("expected alice-b1-0, got %s", id)
	}
	if id := SubtaskID("bob", 2, 4); id != "bob-b2-4" {
		t.Errorf("expected bob-b2-4, got %s", id)
	}
}

func TestNewBatch(t *testing.T) {
	specs := NewBatch("alice", 1, nil)
	if len(specs) != BatchSize {
		t.Fatalf("expected %d subtasks, got %d", BatchSize, len(specs))
	}

	for i, s := range specs {
		if s.TaskID != SubtaskID("alice", 1, i) {
			t.Errorf("subtask %d: expected task_id %s, got %s", i, SubtaskID("alice", 1, i), s.TaskID)
		}
		if s.Batch != 1 {
			t.Errorf("subtask %d: expected batch 1, got %d", i, s.Batch)
		}
		if s.Index != i {
			t.Errorf("subtask %d: expected index %d, got %d", i, i, s.Index)
		}
		if s.Base != nil {
			t.Errorf("subtask %d: batch 1 should have no base", i)
		}
	}
}

func TestNewBatch_WithBase(t *testing.T) {
	base := 357
	specs := NewBatch("alice", 2, &base)

	for i, s := range specs {
		if s.Base == nil {
			t.Fatalf("subtask %d: batch 2 should carry a base", i)
		}
		if *s.Base != 357 {
			t.Errorf("subtask %d: expected base 357, got %d", i, *s.Base)
		}
		if s.TaskID != SubtaskID("alice", 2, i) {
			t.Errorf("subtask %d: unexpected task_id %s", i, s.TaskID)
		}
	}
}
