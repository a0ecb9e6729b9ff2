package handler

import (
	"log/slog"
	"net/http"
	"net/url"
)

// sameOrigin rejects state-changing requests sent by pages served from
// another origin. Requests without an Origin header, such as those made by
// curl or the CLI, pass.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host != r.Host {
			slog.Warn("cross-origin request rejected", "origin", origin, "host", r.Host)
			http.Error(w, "cross-origin request rejected", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
