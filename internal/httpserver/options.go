package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/dsa-learning-api/internal/httpmw"
	"github.com/keithlinneman/dsa-learning-api/internal/log"
)

type Options struct {
	Logger log.Logger
	// Port 0 means DefaultPort.
	Port int

	// APIRoutes mounts the public routes, including NotFound/MethodNotAllowed.
	APIRoutes func(chi.Router)

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	CatalogInfo  httpmw.CatalogInfo // X-Catalog-Version and X-Catalog-Hash
}
