package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. ingest
// middleware wraps only the message ingestion endpoint.
func MountRoutes(r chi.Router, h *Handlers, ingest ...func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(ingest...).Post("/messages", h.PostMessage)

		r.Get("/conversations", h.ListConversations)
		r.Get("/conversations/{id}", handleRead("id", h.Conversations.Get, "conversation not found"))
		r.Get("/conversations/{id}/handoffs", handleReadList("id", h.Conversations.Handoffs, "conversation not found"))
		r.Get("/conversations/{id}/handoffs/{ts}", h.GetHandoff)
	})
}
