// Package schedule computes the randomized delivery times for a campaign.
// It is pure: no durable state, no clock reads, all inputs explicit.
package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"mailburst/internal/models"
)

// Planner validation errors
var (
	ErrInvalidCount  = errors.New("count must be between 1 and 50")
	ErrInvalidWindow = errors.New("window end is before window start")
	ErrWindowElapsed = errors.New("window start is already in the past")
	ErrMissingField  = errors.New("windowed mode requires date, start and end times")
)

// ImmediateSpread is the interval immediate-mode sends are spread over
const ImmediateSpread = 60 * time.Second

// Window is a same-day delivery window. Start and End are absolute
// timestamps; both are always interpreted in UTC (see ParseWindow).
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseWindow builds a Window from a date ("2006-01-02") and two clock
// times ("15:04"). All parts are interpreted in UTC; the host's local
// zone never leaks into scheduling.
func ParseWindow(date, start, end string) (Window, error) {
	if date == "" || start == "" || end == "" {
		return Window{}, ErrMissingField
	}

	s, err := time.ParseInLocation("2006-01-02 15:04", date+" "+start, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window start: %w", err)
	}
	e, err := time.ParseInLocation("2006-01-02 15:04", date+" "+end, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window end: %w", err)
	}

	return Window{Start: s, End: e}, nil
}

// Planner draws the randomized schedule for a campaign
type Planner struct {
	rand *rand.Rand
}

// NewPlanner creates a planner with its own random source
func NewPlanner() *Planner {
	return &Planner{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewPlannerWithSource creates a planner with the given source, so tests
// can draw deterministic schedules
func NewPlannerWithSource(src rand.Source) *Planner {
	return &Planner{rand: rand.New(src)}
}

// Plan returns count delivery timestamps, sorted ascending.
//
// Immediate mode draws independent uniform offsets in [0, 60s) from now.
// Windowed mode draws independent uniform offsets in [0, End-Start] added
// to Start; End == Start is the degenerate zero-width window and yields
// count copies of Start. Count is validated before any randomness is drawn.
func (p *Planner) Plan(count int, mode models.ScheduleMode, now time.Time, window *Window) ([]time.Time, error) {
	if count < models.MinEmailCount || count > models.MaxEmailCount {
		return nil, ErrInvalidCount
	}

	var times []time.Time

	switch mode {
	case models.ModeImmediate:
		times = make([]time.Time, count)
		for i := range times {
			offset := time.Duration(p.rand.Int63n(int64(ImmediateSpread)))
			times[i] = now.Add(offset)
		}

	case models.ModeWindowed:
		if window == nil {
			return nil, ErrMissingField
		}
		if window.End.Before(window.Start) {
			return nil, ErrInvalidWindow
		}
		if window.Start.Before(now) {
			return nil, ErrWindowElapsed
		}

		width := window.End.Sub(window.Start)
		times = make([]time.Time, count)
		for i := range times {
			var offset time.Duration
			if width > 0 {
				// +1 makes the draw inclusive of the window end
				offset = time.Duration(p.rand.Int63n(int64(width) + 1))
			}
			times[i] = window.Start.Add(offset)
		}

	default:
		return nil, fmt.Errorf("unknown schedule mode: %q", mode)
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}
