package otel

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// untraced paths are polled by health checks and dashboards and carry no routing work.
var untraced = []string{"/health", "/ws"}

// HTTPMiddleware traces API requests. Spans are named "METHOD /path".
// Health checks and the WebSocket upgrade are not traced.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithSpanNameFormatter(spanName),
			otelhttp.WithFilter(traced),
		)
	}
}

func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}

func traced(r *http.Request) bool {
	for _, p := range untraced {
		if r.URL.Path == p || strings.HasPrefix(r.URL.Path, p+"/") {
			return false
		}
	}
	return true
}
