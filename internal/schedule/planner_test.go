package schedule

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"mailburst/internal/models"
)

func testPlanner() *Planner {
	return NewPlannerWithSource(rand.NewSource(42))
}

func TestPlan_ImmediateCountAndRange(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, count := range []int{1, 7, 50} {
		times, err := testPlanner().Plan(count, models.ModeImmediate, now, nil)
		if err != nil {
			t.Fatalf("unexpected error for count %d: %v", count, err)
		}
		if len(times) != count {
			t.Fatalf("expected %d timestamps, got %d", count, len(times))
		}
		for i, ts := range times {
			if ts.Before(now) || !ts.Before(now.Add(ImmediateSpread)) {
				t.Errorf("timestamp %d out of [now, now+60s): %v", i, ts)
			}
		}
	}
}

func TestPlan_SortedAscending(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	times, err := testPlanner().Plan(50, models.ModeImmediate, now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(times); i++ {
		if times[i].Before(times[i-1]) {
			t.Fatalf("timestamps not sorted at index %d: %v > %v", i, times[i-1], times[i])
		}
	}
}

func TestPlan_InvalidCount(t *testing.T) {
	now := time.Now()

	for _, count := range []int{0, -1, 51, 1000} {
		_, err := testPlanner().Plan(count, models.ModeImmediate, now, nil)
		if !errors.Is(err, ErrInvalidCount) {
			t.Errorf("count %d: expected ErrInvalidCount, got %v", count, err)
		}
	}
}

func TestPlan_WindowedWithinClosedInterval(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	window := &Window{
		Start: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
	}

	times, err := testPlanner().Plan(50, models.ModeWindowed, now, window)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ts := range times {
		if ts.Before(window.Start) || ts.After(window.End) {
			t.Errorf("timestamp %d outside [S, E]: %v", i, ts)
		}
	}
}

func TestPlan_WindowEndBeforeStart(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	window := &Window{
		Start: time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	_, err := testPlanner().Plan(5, models.ModeWindowed, now, window)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestPlan_WindowAlreadyElapsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window := &Window{
		Start: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC),
	}

	_, err := testPlanner().Plan(5, models.ModeWindowed, now, window)
	if !errors.Is(err, ErrWindowElapsed) {
		t.Fatalf("expected ErrWindowElapsed, got %v", err)
	}
}

func TestPlan_ZeroWidthWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	window := &Window{Start: start, End: start}

	times, err := testPlanner().Plan(5, models.ModeWindowed, now, window)
	if err != nil {
		t.Fatalf("unexpected error for zero-width window: %v", err)
	}
	if len(times) != 5 {
		t.Fatalf("expected 5 timestamps, got %d", len(times))
	}
	for i, ts := range times {
		if !ts.Equal(start) {
			t.Errorf("timestamp %d: expected %v, got %v", i, start, ts)
		}
	}
}

func TestPlan_WindowedMissingWindow(t *testing.T) {
	_, err := testPlanner().Plan(5, models.ModeWindowed, time.Now(), nil)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestPlan_UnknownMode(t *testing.T) {
	_, err := testPlanner().Plan(5, models.ScheduleMode("hourly"), time.Now(), nil)
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("2025-06-01", "09:00", "17:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStart := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 6, 1, 17, 30, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Errorf("start: expected %v, got %v", wantStart, w.Start)
	}
	if !w.End.Equal(wantEnd) {
		t.Errorf("end: expected %v, got %v", wantEnd, w.End)
	}
}

func TestParseWindow_MissingFields(t *testing.T) {
	cases := [][3]string{
		{"", "09:00", "17:00"},
		{"2025-06-01", "", "17:00"},
		{"2025-06-01", "09:00", ""},
	}
	for _, c := range cases {
		if _, err := ParseWindow(c[0], c[1], c[2]); !errors.Is(err, ErrMissingField) {
			t.Errorf("ParseWindow(%q, %q, %q): expected ErrMissingField, got %v", c[0], c[1], c[2], err)
		}
	}
}

func TestParseWindow_BadFormat(t *testing.T) {
	if _, err := ParseWindow("June 1st", "09:00", "17:00"); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := ParseWindow("2025-06-01", "9am", "17:00"); err == nil {
		t.Fatal("expected error for malformed time")
	}
}
