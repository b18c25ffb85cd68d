package display

import (
	"errors"
	"image"
	"testing"
	"time"

	"inkbatt/internal/model"
)

func TestAgeText_Buckets(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{0, "Just now"},
		{45 * time.Second, "Just now"},
		{60 * time.Second, "1m ago"},
		{5 * time.Minute, "5m ago"},
		{59*time.Minute + 59*time.Second, "59m ago"},
		{time.Hour, "1h ago"},
		{2*time.Hour + 30*time.Minute, "2h ago"},
	}

	for _, tt := range tests {
		if got := ageText(tt.age); got != tt.want {
			t.Errorf("ageText(%v) = %q, want %q", tt.age, got, tt.want)
		}
	}
}

func TestStatusSymbol(t *testing.T) {
	tests := []struct {
		name  string
		state model.DisplayState
		want  string
	}{
		{"no data", model.DisplayState{}, "X"},
		{"healthy", stateWithValue(85), "+"},
		{"below half", stateWithValue(42), "~"},
		{"below threshold", stateWithValue(15), "!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusSymbol(tt.state, 20); got != tt.want {
				t.Errorf("statusSymbol = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompose_FrameSize(t *testing.T) {
	frame, err := Compose(stateWithValue(50), DefaultLayout())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := frame.Bounds().Dx(); got != 212 {
		t.Errorf("width = %d, want 212", got)
	}
	if got := frame.Bounds().Dy(); got != 104 {
		t.Errorf("height = %d, want 104", got)
	}
}

func TestCompose_BarFill(t *testing.T) {
	l := DefaultLayout()
	frame, err := Compose(stateWithValue(50), l)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	// Bar interior spans x 10..202 at half fill: 96 of 192 columns.
	midY := 53
	if got := frame.ColorIndexAt(20, midY); got != idxBlack {
		t.Errorf("pixel inside fill = %d, want black (%d)", got, idxBlack)
	}
	if got := frame.ColorIndexAt(180, midY); got != idxWhite {
		t.Errorf("pixel beyond fill = %d, want white (%d)", got, idxWhite)
	}
	// Outline is always drawn.
	if got := frame.ColorIndexAt(9, 46); got != idxBlack {
		t.Errorf("outline pixel = %d, want black (%d)", got, idxBlack)
	}
}

func TestCompose_LowBatteryUsesAccent(t *testing.T) {
	frame, err := Compose(stateWithValue(10), DefaultLayout())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// 10% fills 19 columns starting at x=10.
	if got := frame.ColorIndexAt(12, 53); got != idxAccent {
		t.Errorf("low-battery fill = %d, want accent (%d)", got, idxAccent)
	}
}

func TestCompose_NoDataPlaceholder(t *testing.T) {
	frame, err := Compose(model.DisplayState{At: time.Now(), ConsecutiveFailures: 1}, DefaultLayout())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	// Dotted bar pattern instead of a fill.
	if got := frame.ColorIndexAt(12, 50); got != idxBlack {
		t.Errorf("dot pixel = %d, want black (%d)", got, idxBlack)
	}
	if got := frame.ColorIndexAt(15, 50); got != idxWhite {
		t.Errorf("gap pixel = %d, want white (%d)", got, idxWhite)
	}

	// The NO DATA text and Connection Failed line render in accent.
	accent := 0
	for y := 0; y < 104; y++ {
		for x := 0; x < 212; x++ {
			if frame.ColorIndexAt(x, y) == idxAccent {
				accent++
			}
		}
	}
	if accent == 0 {
		t.Error("expected accent pixels for the no-data placeholder")
	}
}

func TestCompose_StaleShowsRetries(t *testing.T) {
	fresh, err := Compose(stateWithValue(72), DefaultLayout())
	if err != nil {
		t.Fatalf("Compose fresh: %v", err)
	}

	stale := stateWithValue(72)
	stale.ConsecutiveFailures = 2
	staleFrame, err := Compose(stale, DefaultLayout())
	if err != nil {
		t.Fatalf("Compose stale: %v", err)
	}

	// The retries line is the only accent ink at 72%: absent when
	// fresh, present when stale.
	if n := countAccent(fresh); n != 0 {
		t.Errorf("fresh frame has %d accent pixels, want 0", n)
	}
	if n := countAccent(staleFrame); n == 0 {
		t.Error("stale frame has no accent pixels, want retries line")
	}
}

func countAccent(frame *image.Paletted) int {
	n := 0
	for y := 0; y < 104; y++ {
		for x := 0; x < 212; x++ {
			if frame.ColorIndexAt(x, y) == idxAccent {
				n++
			}
		}
	}
	return n
}

type recordingSink struct {
	calls int
}

func (r *recordingSink) Render(model.DisplayState) error {
	r.calls++
	return nil
}

type failingSink struct{}

func (failingSink) Render(model.DisplayState) error {
	return errors.New("panel unplugged")
}

type panickingSink struct{}

func (panickingSink) Render(model.DisplayState) error {
	panic("driver bug")
}

func TestMulti_ContainsFailures(t *testing.T) {
	rec := &recordingSink{}
	m := Multi(failingSink{}, panickingSink{}, rec)

	if err := m.Render(stateWithValue(50)); err != nil {
		t.Errorf("Multi.Render returned %v, want nil", err)
	}
	if rec.calls != 1 {
		t.Errorf("healthy sink called %d times, want 1", rec.calls)
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := Multi().Render(stateWithValue(50)); err != nil {
		t.Errorf("empty Multi returned %v, want nil", err)
	}
}

func stateWithValue(v float64) model.DisplayState {
	now := time.Now()
	return model.DisplayState{
		Reading: &model.SensorReading{
			EntityID:   "sensor.growatt_battery_level",
			Value:      v,
			Unit:       "%",
			ObservedAt: now,
		},
		LastSuccessAt: &now,
		At:            now,
	}
}
