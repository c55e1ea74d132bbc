package httpmw

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS is fully permissive: any origin is accepted and echoed back, so
// credentialed browser requests work from wherever the frontend is hosted.
// Preflight requests are answered here and never reach the router.
func CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(*http.Request, string) bool { return true },
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Catalog-Version", "X-Catalog-Hash"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
