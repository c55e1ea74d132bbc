package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CatalogInfo is the slice of the catalog store that response headers need.
type CatalogInfo interface {
	ContentVersion() string
	ContentHash() string
}

const shortHashLen = 12

// CatalogHeaders stamps X-Catalog-Version and a shortened X-Catalog-Hash on
// every response and copies both onto the active span.
func CatalogHeaders(info CatalogInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		version, hash := info.ContentVersion(), info.ContentHash()
		short := hash
		if len(short) > shortHashLen {
			short = short[:shortHashLen]
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if version != "" {
				w.Header().Set("X-Catalog-Version", version)
			}
			if short != "" {
				w.Header().Set("X-Catalog-Hash", short)
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("catalog.version", version),
					attribute.String("catalog.hash", hash),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
