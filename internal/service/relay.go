// Package service contains application services.
package service

import (
	"context"
	"log/slog"

	"github.com/wikirelay/wikirelay/internal/adapter/otel"
	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/domain/event"
	"github.com/wikirelay/wikirelay/internal/suppress"
)

// Dispatcher is the outbound side of the relay. Implementations must be
// fire-and-forget: Dispatch never blocks and never errors.
type Dispatcher interface {
	Dispatch(hookKind, message string)
}

// Renderer turns an event into message text.
type Renderer interface {
	Message(ev event.Event) (string, bool)
}

// Relay runs the notification pipeline for incoming wiki events:
// per-kind gates, the generic suppression filter, rendering, dispatch.
// Handle returns nothing; by contract no outcome of this pipeline may
// fail the wiki operation that triggered the event.
type Relay struct {
	filter     *suppress.Filter
	renderer   Renderer
	dispatcher Dispatcher
	gates      config.Suppression
	log        *slog.Logger
	metrics    *otel.Metrics
}

// NewRelay creates a Relay.
func NewRelay(
	filter *suppress.Filter,
	renderer Renderer,
	dispatcher Dispatcher,
	gates config.Suppression,
	log *slog.Logger,
	metrics *otel.Metrics,
) *Relay {
	return &Relay{
		filter:     filter,
		renderer:   renderer,
		dispatcher: dispatcher,
		gates:      gates,
		log:        log,
		metrics:    metrics,
	}
}

// Handle runs one event through the pipeline.
func (r *Relay) Handle(ctx context.Context, ev event.Event) {
	r.metrics.EventsReceived.Add(ctx, 1)

	if r.gated(ev) || r.filter.Suppressed(ev.Kind.String(), ev.Namespace, ev.Actor) {
		r.metrics.EventsSuppressed.Add(ctx, 1)
		r.log.Debug("event suppressed", "kind", ev.Kind)
		return
	}

	msg, ok := r.renderer.Message(ev)
	if !ok || msg == "" {
		r.log.Warn("event did not render", "kind", ev.Kind)
		return
	}

	r.dispatcher.Dispatch(ev.Kind.String(), msg)
}

// gated evaluates the per-kind boolean gates that need event fields the
// generic filter does not see: bot authorship, minor edits, null edits,
// and file-namespace page creations (those are covered by FileUploaded).
func (r *Relay) gated(ev event.Event) bool {
	if r.gates.NoBots && ev.Actor != nil && ev.Actor.Bot {
		return true
	}

	switch ev.Kind {
	case event.KindPageSaved:
		if r.gates.NoMinor && ev.Revision != nil && ev.Revision.Minor {
			return true
		}
		if r.gates.NoNull && ev.NullEdit {
			return true
		}
	case event.KindPageCreated:
		if ev.Namespace != nil && *ev.Namespace == fileNamespace {
			return true
		}
	}
	return false
}

// fileNamespace is the wiki's file namespace ID.
const fileNamespace = 6
