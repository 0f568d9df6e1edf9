package domain

import "testing"

func TestJobStatus_IsTerminal(t *testing.T) {
	if JobStatusPending.IsTerminal() {
		t.Error("PENDING should not be terminal")
	}
	if JobStatusRunning.IsTerminal() {
		t.Error("RUNNING should not be terminal")
	}
	if !JobStatusCompleted.IsTerminal() {
		t.Error("COMPLETED should be terminal")
	}
	if !JobStatusFailed.IsTerminal() {
		t.Error("FAILED should be terminal")
	}
}

func TestJobStatus_IsActive(t *testing.T) {
	if !JobStatusPending.IsActive() {
		t.Error("PENDING should count toward the admission limit")
	}
	if !JobStatusRunning.IsActive() {
		t.Error("RUNNING should count toward the admission limit")
	}
	if JobStatusCompleted.IsActive() {
		t.Error("COMPLETED should not count toward the admission limit")
	}
	if JobStatusFailed.IsActive() {
		t.Error("FAILED should not count toward the admission limit")
	}
}

func TestJobStatus_CanTransitionTo(t *testing.T) {
	// Переходы вперёд разрешены
	if !JobStatusPending.CanTransitionTo(JobStatusRunning) {
		t.Error("PENDING → RUNNING should be allowed")
	}
	if !JobStatusRunning.CanTransitionTo(JobStatusCompleted) {
		t.Error("RUNNING → COMPLETED should be allowed")
	}
	if !JobStatusRunning.CanTransitionTo(JobStatusFailed) {
		t.Error("RUNNING → FAILED should be allowed")
	}
	if !JobStatusPending.CanTransitionTo(JobStatusFailed) {
		t.Error("PENDING → FAILED should be allowed")
	}

	// Переходы назад запрещены
	if JobStatusRunning.CanTransitionTo(JobStatusPending) {
		t.Error("RUNNING → PENDING should be rejected")
	}

	// Из терминального статуса переходов нет
	if JobStatusCompleted.CanTransitionTo(JobStatusFailed) {
		t.Error("COMPLETED → FAILED should be rejected")
	}
	if JobStatusFailed.CanTransitionTo(JobStatusCompleted) {
		t.Error("FAILED → COMPLETED should be rejected")
	}
	if JobStatusCompleted.CanTransitionTo(JobStatusRunning) {
		t.Error("COMPLETED → RUNNING should be rejected")
	}
}
