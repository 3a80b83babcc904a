package middleware

import (
	"net/http"
	"strings"
	"time"
)

// WriteDeadline gives requests under prefix a write deadline of d from the
// moment they arrive, replacing the server-wide WriteTimeout. Writers that
// cannot change their deadline keep the server default.
func WriteDeadline(next http.Handler, prefix string, d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, prefix) {
			_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(d))
		}
		next.ServeHTTP(w, r)
	})
}
