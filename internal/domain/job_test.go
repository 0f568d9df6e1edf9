package domain

import "testing"

func TestNewJob(t *testing.T) {
	job := NewJob("alice")

	if job.Username != "alice" {
		t.Errorf("expected username alice, got %s", job.Username)
	}
	if job.Status != JobStatusPending {
		t.Errorf("new job should be PENDING, got %s", job.Status)
	}
	if job.ID.String() == "" {
		t.Error("job should have a generated ID")
	}
	if job.CreatedAt.IsZero() || job.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
	if job.Result != nil {
		t.Error("new job should have no result")
	}
	if job.Error != "" {
		t.Error("new job should have no error")
	}

	// Два job одного пользователя различимы
	other := NewJob("alice")
	if job.ID == other.ID {
		t.Error("jobs should get unique IDs")
	}
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("alice")

	job.MarkRunning()
	if job.Status != JobStatusRunning {
		t.Errorf("expected RUNNING, got %s", job.Status)
	}
	if job.IsFinished() {
		t.Error("RUNNING job should not be finished")
	}

	result := &JobResult{
		FirstBatch:  AggregateResult{AggregatedSum: 1788, Username: "alice"},
		SecondBatch: AggregateResult{AggregatedSum: 4273, Username: "alice"},
	}
	job.MarkCompleted(result)
	if job.Status != JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", job.Status)
	}
	if !job.IsFinished() {
		t.Error("COMPLETED job should be finished")
	}
	if job.Result == nil || job.Result.FirstBatch.AggregatedSum != 1788 {
		t.Error("result should be stored on completion")
	}
}

func TestJob_MarkFailed(t *testing.T) {
	job := NewJob("alice")
	job.MarkRunning()
	job.MarkFailed("subtask alice-b1-2 failed")

	if job.Status != JobStatusFailed {
		t.Errorf("expected FAILED, got %s", job.Status)
	}
	if job.Error != "subtask alice-b1-2 failed" {
		t.Errorf("unexpected error message: %s", job.Error)
	}
	if job.Result != nil {
		t.Error("failed job should have no result")
	}
}
