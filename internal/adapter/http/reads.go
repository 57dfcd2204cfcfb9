package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRead serves a GET endpoint keyed by one path parameter. Transcript
// responses carry customer text and are never cached by intermediaries.
func handleRead[T any](param string, fn func(context.Context, string) (T, error), notFound string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, param)
		if key == "" {
			writeValidationError(w, []string{param + " is required"})
			return
		}
		v, err := fn(r.Context(), key)
		if err != nil {
			writeDomainError(w, err, notFound)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, v)
	}
}

// handleReadList is handleRead for collections; an empty result is sent as [].
func handleReadList[T any](param string, fn func(context.Context, string) ([]T, error), notFound string) http.HandlerFunc {
	return handleRead(param, func(ctx context.Context, key string) ([]T, error) {
		items, err := fn(ctx, key)
		if err == nil && items == nil {
			items = []T{}
		}
		return items, err
	}, notFound)
}
