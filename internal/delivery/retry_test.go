package delivery

import (
	"testing"
	"time"
)

func TestNextRetryDelaySchedule(t *testing.T) {
	want := []time.Duration{
		time.Second,
		5 * time.Second,
		30 * time.Second,
		5 * time.Minute,
		30 * time.Minute,
		2 * time.Hour,
		8 * time.Hour,
	}

	for i, exp := range want {
		got, ok := NextRetryDelay(i)
		if !ok {
			t.Fatalf("attempt %d: expected ok=true", i)
		}
		if got != exp {
			t.Fatalf("attempt %d: expected %v, got %v", i, exp, got)
		}
	}
}

func TestNextRetryDelayExhausted(t *testing.T) {
	if _, ok := NextRetryDelay(MaxAttempts); ok {
		t.Fatal("expected ok=false once the schedule is exhausted")
	}
	if _, ok := NextRetryDelay(100); ok {
		t.Fatal("expected ok=false for an attempt count beyond the schedule")
	}
	if _, ok := NextRetryDelay(-1); ok {
		t.Fatal("expected ok=false for a negative attempt count")
	}
}

func TestMaxAttemptsMatchesScheduleLength(t *testing.T) {
	if MaxAttempts != 7 {
		t.Fatalf("expected MaxAttempts=7, got %d", MaxAttempts)
	}
}
