package reconciler

import (
	"testing"
	"time"
)

func TestNextDue_CronExpr(t *testing.T) {
	from := time.Date(2026, 3, 14, 10, 27, 30, 0, time.UTC)

	// Каждые 5 минут
	next, err := NextDue("*/5 * * * *", 0, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	// Cron имеет приоритет над интервалом
	next, err = NextDue("0 * * * *", time.Minute, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want = time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextDue_Interval(t *testing.T) {
	from := time.Date(2026, 3, 14, 10, 27, 30, 0, time.UTC)

	next, err := NextDue("", 5*time.Minute, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(5 * time.Minute)) {
		t.Errorf("expected %v, got %v", from.Add(5*time.Minute), next)
	}
}

func TestNextDue_Invalid(t *testing.T) {
	from := time.Now()

	if _, err := NextDue("not a cron", 0, from); err == nil {
		t.Error("invalid cron expression should be rejected")
	}
	if _, err := NextDue("", 0, from); err == nil {
		t.Error("neither cron nor interval should be rejected")
	}
}

func TestValidateCronExpr(t *testing.T) {
	valid := []string{"* * * * *", "*/5 * * * *", "0 3 * * 1"}
	for _, expr := range valid {
		if err := ValidateCronExpr(expr); err != nil {
			t.Errorf("expression %q should be valid: %v", expr, err)
		}
	}

	invalid := []string{"* * *", "61 * * * *", "banana"}
	for _, expr := range invalid {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("expression %q should be invalid", expr)
		}
	}
}
