package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/Switchboard/internal/domain/conversation"
	"github.com/Strob0t/Switchboard/internal/domain/orchestration"
	"github.com/Strob0t/Switchboard/internal/service"
)

// Ingester accepts inbound customer messages.
type Ingester interface {
	Ingest(ctx context.Context, req service.IngestRequest) (*service.IngestResult, error)
}

// Conversations reads stored routing state.
type Conversations interface {
	Get(ctx context.Context, conversationID string) (*conversation.Context, error)
	List(ctx context.Context) ([]string, error)
	Handoffs(ctx context.Context, conversationID string) ([]orchestration.Record, error)
	Handoff(ctx context.Context, conversationID string, timestamp int64) (*orchestration.Record, error)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
	Bus    string `json:"bus"`
	Store  string `json:"store"`
	LLM    string `json:"llm"`
}

// Handlers holds the HTTP handlers of the ingestion and read API.
type Handlers struct {
	Ingest        Ingester
	Conversations Conversations

	// BusConnected reports the event bus state for /health.
	BusConnected func() bool
	StoreBackend string
	LLMProvider  string
}

// PostMessage handles POST /api/v1/messages.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.IngestRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	res, err := h.Ingest.Ingest(r.Context(), req)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeValidationError(w, verr.Details)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListConversations handles GET /api/v1/conversations.
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Conversations.List(r.Context())
	if errors.Is(err, service.ErrListUnsupported) {
		writeError(w, http.StatusNotImplemented, "conversation store cannot list keys")
		return
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// GetHandoff handles GET /api/v1/conversations/{id}/handoffs/{ts}.
func (h *Handlers) GetHandoff(w http.ResponseWriter, r *http.Request) {
	ts, err := strconv.ParseInt(chi.URLParam(r, "ts"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be unix milliseconds")
		return
	}
	rec, err := h.Conversations.Handoff(r.Context(), chi.URLParam(r, "id"), ts)
	if err != nil {
		writeDomainError(w, err, "handoff not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	status := HealthStatus{
		Status: "ok",
		Bus:    "connected",
		Store:  h.StoreBackend,
		LLM:    h.LLMProvider,
	}
	code := http.StatusOK
	if h.BusConnected != nil && !h.BusConnected() {
		status.Status = "degraded"
		status.Bus = "disconnected"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
