package middleware

import (
	"net/http"
	"runtime/debug"

	"phishguard/internal/api/respond"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// Recover turns a handler panic into a 500 and reports it. The panic value
// goes to the log and tracker only.
func Recover(log *logger.Logger) func(http.Handler) http.Handler {
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

				err := errors.Wrapf(errors.ErrInternal, "panic: %v", rec)
				log.ErrorWithContext(r.Context(), err, map[string]string{
					"component": "http",
					"path":      r.URL.Path,
				})
				log.Debugf("panic stack: %s", debug.Stack())

				respond.Detail(w, http.StatusInternalServerError, "Internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
