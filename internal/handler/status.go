package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"inkbatt/internal/model"
)

type monitorSource interface {
	Snapshot() model.DisplayState
	IsRunning() bool
}

// StatusHandler exposes a read-only view of the poll loop. The surface
// is advisory: the supervisor and watchdog consume logs and the
// pidfile, not these endpoints, and nothing here feeds back into the
// loop.
type StatusHandler struct {
	monitor monitorSource
}

func NewStatusHandler(mon monitorSource) *StatusHandler {
	return &StatusHandler{monitor: mon}
}

func (h *StatusHandler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.State)
	})
}

type healthResponse struct {
	Status              string `json:"status"`
	Running             bool   `json:"running"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	SecondsSinceSuccess *int64 `json:"seconds_since_success,omitempty"`
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.monitor.Snapshot()

	resp := healthResponse{
		Status:              "ok",
		Running:             h.monitor.IsRunning(),
		ConsecutiveFailures: snap.ConsecutiveFailures,
	}
	if snap.LastSuccessAt != nil {
		secs := int64(snap.Age().Seconds())
		resp.SecondsSinceSuccess = &secs
	}
	writeJSON(w, http.StatusOK, resp)
}

// State returns the same snapshot the display renders. Before the first
// successful fetch the reading is null rather than an error: no data is
// a normal state for this service, not a failure.
func (h *StatusHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Snapshot())
}
