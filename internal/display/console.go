package display

import (
	"log/slog"
	"time"

	"inkbatt/internal/model"
)

// ConsoleRenderer writes the snapshot as a log line. It is the default
// sink on machines without a panel and the stand-in renderer when the
// panel fails to initialize.
type ConsoleRenderer struct{}

func NewConsoleRenderer() *ConsoleRenderer {
	return &ConsoleRenderer{}
}

func (c *ConsoleRenderer) Render(state model.DisplayState) error {
	if !state.HasData() {
		slog.Info("display: no data yet", "consecutive_failures", state.ConsecutiveFailures)
		return nil
	}
	slog.Info("display",
		"value", state.Reading.Value,
		"unit", state.Reading.Unit,
		"stale", state.Stale(),
		"age", state.Age().Round(time.Second),
		"consecutive_failures", state.ConsecutiveFailures)
	return nil
}
