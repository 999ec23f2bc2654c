package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/wikirelay/wikirelay/internal/config"
	"github.com/wikirelay/wikirelay/internal/middleware"
)

// MountRoutes registers the ingest API on the given chi router. The event
// endpoint sits behind HMAC verification when a secret is configured.
func MountRoutes(r chi.Router, h *Handlers, ingestCfg config.Ingest) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.EventHMAC(ingestCfg.HMACSecret, ingestCfg.BodyLimit)).
			Post("/events", h.IngestEvent)
	})
}
