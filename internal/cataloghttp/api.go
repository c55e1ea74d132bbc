// Package cataloghttp serves the learning catalog over HTTP: the module
// lookup, the module listing and the liveness endpoint on the public
// router, plus a summary for the ops listener.
package cataloghttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/dsa-learning-api/internal/catalog"
	"github.com/keithlinneman/dsa-learning-api/internal/log"
)

// Catalog is the read side of catalog.Store used by the handlers.
type Catalog interface {
	Get(module, level string) (catalog.Record, bool)
	Modules() []string
	Version() string
	Hash() string
	LoadedAt() time.Time
}

// API implements the public catalog endpoints.
type API struct {
	catalog  Catalog
	logger   log.Logger
	onLookup func(hit bool)
	now      func() time.Time
	routes   chi.Routes
}

type Option func(*API)

// WithLookupObserver is told the outcome of every module/level lookup.
func WithLookupObserver(fn func(hit bool)) Option {
	return func(a *API) { a.onLookup = fn }
}

func NewAPI(c Catalog, logger log.Logger, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	a := &API{catalog: c, logger: logger, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RegisterRoutes attaches the public endpoints and the JSON 404/405
// responses to r.
func (api *API) RegisterRoutes(r chi.Router) {
	api.routes = r
	r.Get("/module/{module}/{level}", api.HandleModule)
	r.Get("/modules", api.HandleModules)
	r.Get("/health", api.HandleHealth)
	r.NotFound(api.HandleNotFound)
	r.MethodNotAllowed(api.HandleMethodNotAllowed)
}

// ModulesResponse lists module names in catalog order and the fixed levels.
type ModulesResponse struct {
	Modules []string `json:"modules"`
	Levels  []string `json:"levels"`
}

// HealthResponse is the constant liveness body.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is returned, with status 200, for an unknown module/level pair.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetailResponse is the body of routing failures (404, 405).
type DetailResponse struct {
	Detail string `json:"detail"`
}

var healthBody = HealthResponse{Status: "ok", Message: "DSA Learning API is running"}

// notFoundMessage is the miss text, with both values substituted verbatim.
func notFoundMessage(module, level string) string {
	return fmt.Sprintf("Content not found for module='%s' level='%s'", module, level)
}

// pathParam returns a decoded chi URL parameter. chi matches on RawPath when
// the request carried escapes that Path cannot round-trip, in which case the
// captured value is still escaped.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if dec, err := url.PathUnescape(v); err == nil {
		return dec
	}
	return v
}

// HandleModule serves one Content Record. Matching is exact and
// case-sensitive. A miss is still a 200, carrying an error body.
func (api *API) HandleModule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	module, level := pathParam(r, "module"), pathParam(r, "level")

	rec, ok := api.catalog.Get(module, level)
	if api.onLookup != nil {
		api.onLookup(ok)
	}
	if !ok {
		log.FromContext(ctx).Debug(ctx, "catalog miss", "catalog.module", module, "catalog.level", level)
		api.writeJSON(ctx, w, http.StatusOK, ErrorResponse{Error: notFoundMessage(module, level)})
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, rec)
}

// HandleModules lists module names and the fixed levels.
func (api *API) HandleModules(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(r.Context(), w, http.StatusOK, ModulesResponse{
		Modules: api.catalog.Modules(),
		Levels:  catalog.LevelNames(),
	})
}

// HandleHealth always answers ok. It does not look at the catalog or any
// external store; ops readiness covers those.
func (api *API) HandleHealth(w http.ResponseWriter, r *http.Request) {
	api.writeJSON(r.Context(), w, http.StatusOK, healthBody)
}

// HandleNotFound redirects a path that only misses a route by its trailing
// slashes with a 307 to the bare path, and answers everything else with a
// JSON 404.
func (api *API) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	if loc, ok := api.slashRedirect(r); ok {
		w.Header().Set("Location", loc)
		w.WriteHeader(http.StatusTemporaryRedirect)
		return
	}
	api.writeJSON(r.Context(), w, http.StatusNotFound, DetailResponse{Detail: "Not Found"})
}

// slashRedirect returns the request URI with trailing slashes removed when
// that path names a route. Every route is GET-only, so a GET match stands in
// for any method.
func (api *API) slashRedirect(r *http.Request) (string, bool) {
	if api.routes == nil || !strings.HasSuffix(r.URL.Path, "/") {
		return "", false
	}
	trimmed := strings.TrimRight(r.URL.Path, "/")
	if trimmed == "" || !api.routes.Match(chi.NewRouteContext(), http.MethodGet, trimmed) {
		return "", false
	}
	u := *r.URL
	u.Path = trimmed
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	return u.RequestURI(), true
}

// HandleMethodNotAllowed answers with a JSON 405. Allow is always GET since
// no route takes another method.
func (api *API) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodGet)
	api.writeJSON(r.Context(), w, http.StatusMethodNotAllowed, DetailResponse{Detail: "Method Not Allowed"})
}

// writeJSON writes v compactly without HTML escaping and without a trailing
// newline.
func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	body, err := encodeJSON(v)
	if err != nil {
		api.logger.Error(ctx, err, "encode json response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"Internal Server Error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		api.logger.Warn(ctx, "failed to write JSON response", "error", err)
	}
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
