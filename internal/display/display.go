// Package display renders the monitor's snapshot onto output sinks: the
// physical e-ink panel, the console, or anything else implementing
// Renderer. Sink faults are contained here and never reach the poll loop.
package display

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"inkbatt/internal/model"
)

// Renderer draws one display snapshot. Implementations report faults
// through the returned error and must not panic across the interface;
// Multi contains panics anyway because hardware drivers are involved.
type Renderer interface {
	Render(state model.DisplayState) error
}

type multi []Renderer

// Multi fans a snapshot out to every sink. A sink that errors or panics
// is logged and skipped; the remaining sinks still render and the
// returned error is always nil, so one broken output never starves the
// others or the poll loop.
func Multi(sinks ...Renderer) Renderer {
	return multi(sinks)
}

func (m multi) Render(state model.DisplayState) error {
	for _, sink := range m {
		renderOne(sink, state)
	}
	return nil
}

func renderOne(sink Renderer, state model.DisplayState) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("render sink panicked",
				"sink", fmt.Sprintf("%T", sink),
				"error", r,
				"stack", string(debug.Stack()))
		}
	}()

	if err := sink.Render(state); err != nil {
		slog.Error("render sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
	}
}
