// Package http exposes the event ingest API.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/wikirelay/wikirelay/internal/domain/event"
	"github.com/wikirelay/wikirelay/internal/service"
)

// TargetReporter exposes how many webhook targets are configured, for the
// health endpoint.
type TargetReporter interface {
	TargetCount() int
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Relay     *service.Relay
	Targets   TargetReporter
	BodyLimit int64
	Log       *slog.Logger
}

// IngestEvent accepts a wiki event and hands it to the relay. The response
// is 202 regardless of whether the event is later suppressed or delivered;
// delivery outcome is never reported to the sender.
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.BodyLimit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "failed to read body")
		}
		return
	}

	ev, err := event.Decode(body)
	if err != nil {
		h.Log.Debug("rejected event payload", "error", err)
		writeError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	h.Relay.Handle(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, ingestResponse{Status: "accepted"})
}

// Health reports service liveness and the configured target count.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Targets: h.Targets.TargetCount(),
	})
}

type ingestResponse struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Targets int    `json:"targets"`
}
