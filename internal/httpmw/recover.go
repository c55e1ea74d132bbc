package httpmw

import (
	"fmt"
	"net/http"

	"github.com/keithlinneman/dsa-learning-api/internal/log"
	"github.com/keithlinneman/dsa-learning-api/internal/xerrors"
)

// Recover turns a handler panic into a logged error and a 500. onPanic, when
// set, runs once per recovered panic (the panic counter hooks in here).
// http.ErrAbortHandler is re-panicked so net/http can drop the connection.
func Recover(L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if onPanic != nil {
					onPanic()
				}

				var err error
				switch v := rec.(type) {
				case error:
					err = xerrors.WithStack(fmt.Errorf("panic: %w", v))
				default:
					err = xerrors.Newf("panic: %v", v)
				}
				L.Error(r.Context(), err, "httpserver panic recovered",
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"detail":"Internal Server Error"}` + "\n"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
