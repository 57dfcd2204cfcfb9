package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Strob0t/Switchboard/internal/port/statestore"
)

const (
	headerIdempotencyKey    = "Idempotency-Key"
	headerIdempotentReplay  = "Idempotent-Replay"
	maxIdempotencyBody      = 1 << 20
	maxIdempotencyKeyLength = 255
	idempotencyKeyPrefix    = "idempotency:"
)

// storedResponse is what a replay sends back. Fingerprint identifies the
// request body the response was produced for.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency deduplicates retried writes that carry an Idempotency-Key
// header. A 2xx response is kept in store for ttl and replayed for the same
// key and body. Reusing a key with a different body is rejected with 422.
// Failed responses are not kept so the client can retry them.
func Idempotency(store statestore.Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if key == "" || !isWrite(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				writeError(w, http.StatusBadRequest, "Idempotency-Key too long")
				return
			}

			orig := r.Body
			body, err := io.ReadAll(io.LimitReader(orig, maxIdempotencyBody+1))
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable request body")
				return
			}
			if len(body) > maxIdempotencyBody {
				// Too large to fingerprint; hand the full body on untouched.
				r.Body = readCloser{io.MultiReader(bytes.NewReader(body), orig), orig}
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			fingerprint := hex.EncodeToString(sum[:])
			storeKey := idempotencyKeyPrefix + r.Method + ":" + r.URL.Path + ":" + key

			if prev, ok := lookup(r, store, storeKey); ok {
				if prev.Fingerprint != fingerprint {
					writeError(w, http.StatusUnprocessableEntity, "Idempotency-Key reused with a different request")
					return
				}
				if prev.ContentType != "" {
					w.Header().Set("Content-Type", prev.ContentType)
				}
				w.Header().Set(headerIdempotentReplay, "true")
				w.WriteHeader(prev.Status)
				_, _ = w.Write(prev.Body)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode < 200 || rec.statusCode >= 300 || rec.body.Len() > maxIdempotencyBody {
				return
			}
			data, err := json.Marshal(storedResponse{
				Fingerprint: fingerprint,
				Status:      rec.statusCode,
				ContentType: w.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := store.Set(r.Context(), storeKey, data, ttl); err != nil {
				slog.WarnContext(r.Context(), "idempotency: store response failed", "key", key, "error", err)
			}
		})
	}
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// lookup treats store errors and undecodable entries as a miss; the handler
// then runs again and overwrites the entry.
func lookup(r *http.Request, store statestore.Store, storeKey string) (storedResponse, bool) {
	var prev storedResponse
	raw, ok, err := store.Get(r.Context(), storeKey)
	if err != nil {
		slog.WarnContext(r.Context(), "idempotency: lookup failed", "key", storeKey, "error", err)
		return prev, false
	}
	if !ok {
		return prev, false
	}
	if err := json.Unmarshal(raw, &prev); err != nil {
		slog.WarnContext(r.Context(), "idempotency: corrupt entry", "key", storeKey)
		return prev, false
	}
	return prev, true
}

type readCloser struct {
	io.Reader
	io.Closer
}

// responseRecorder tees the response body so it can be stored.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
