package middleware_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/Switchboard/internal/adapter/memstore"
	"github.com/Strob0t/Switchboard/internal/middleware"
)

func makeTestHandler(counter *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*counter++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"call":%d}`, *counter)
	})
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", http.NoBody)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_NoHeader(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(memstore.New(), time.Hour)(makeTestHandler(&counter, http.StatusOK))

	post(handler, "")
	post(handler, "")
	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_FirstRequestStoresResponse(t *testing.T) {
	counter := 0
	store := memstore.New()
	handler := middleware.Idempotency(store, time.Hour)(makeTestHandler(&counter, http.StatusOK))

	if rec := post(handler, "key-1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	keys, _ := store.Keys(context.Background(), "idempotency:")
	if len(keys) != 1 || !strings.HasSuffix(keys[0], ":key-1") {
		t.Fatalf("stored keys = %v", keys)
	}
}

func TestIdempotency_SecondRequestReplays(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(memstore.New(), time.Hour)(makeTestHandler(&counter, http.StatusOK))

	rec1 := post(handler, "key-2")
	rec2 := post(handler, "key-2")

	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
	if rec2.Body.String() != rec1.Body.String() {
		t.Errorf("replayed body %q, want %q", rec2.Body.String(), rec1.Body.String())
	}
	if rec2.Header().Get("Idempotent-Replay") != "true" {
		t.Error("expected Idempotent-Replay header on replay")
	}
}

func TestIdempotency_FailuresNotCached(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(memstore.New(), time.Hour)(makeTestHandler(&counter, http.StatusBadRequest))

	post(handler, "key-3")
	post(handler, "key-3")
	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_GETIgnored(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(memstore.New(), time.Hour)(makeTestHandler(&counter, http.StatusOK))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Idempotency-Key", "key-get")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if counter != 2 {
		t.Fatalf("expected 2 calls, got %d", counter)
	}
}

func TestIdempotency_KeyTooLong(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(memstore.New(), time.Hour)(makeTestHandler(&counter, http.StatusOK))

	rec := post(handler, strings.Repeat("k", 256))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if counter != 0 {
		t.Fatal("handler should not run")
	}
}

func postBody(h http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", key)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	counter := 0
	handler := middleware.Idempotency(memstore.New(), time.Hour)(makeTestHandler(&counter, http.StatusOK))

	first := postBody(handler, "key-4", `{"customer_id":"c1","message":"refund"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	replay := postBody(handler, "key-4", `{"customer_id":"c1","message":"refund"}`)
	if replay.Header().Get("Idempotent-Replay") != "true" {
		t.Error("expected identical body to replay")
	}
	if ct := replay.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("replayed Content-Type = %q", ct)
	}

	conflict := postBody(handler, "key-4", `{"customer_id":"c1","message":"cancel"}`)
	if conflict.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", conflict.Code)
	}
	if counter != 1 {
		t.Fatalf("expected handler called once, got %d", counter)
	}
}

func TestIdempotency_HandlerSeesBody(t *testing.T) {
	var seen string
	handler := middleware.Idempotency(memstore.New(), time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = string(b)
		w.WriteHeader(http.StatusOK)
	}))

	postBody(handler, "key-5", `{"message":"hello"}`)
	if seen != `{"message":"hello"}` {
		t.Fatalf("handler read %q", seen)
	}
}
