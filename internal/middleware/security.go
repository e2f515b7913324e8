package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// SecureHeaders sets fixed response headers on every request. HSTS is only
// sent over TLS unless DevMode is set.
type SecureHeaders struct {
	Headers map[string]string
	HSTS    time.Duration
	DevMode bool
}

// DefaultSecureHeaders returns headers for a JSON API that is never framed
// and never serves scripts.
func DefaultSecureHeaders() *SecureHeaders {
	return &SecureHeaders{
		Headers: map[string]string{
			"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
			"X-Frame-Options":         "DENY",
			"X-Content-Type-Options":  "nosniff",
			"Referrer-Policy":         "no-referrer",
			"Permissions-Policy":      "camera=(), geolocation=(), microphone=(), payment=()",
		},
		HSTS: 2 * 365 * 24 * time.Hour,
	}
}

func (sh *SecureHeaders) Handler(next http.Handler) http.Handler {
	hsts := "max-age=" + strconv.Itoa(int(sh.HSTS.Seconds())) + "; includeSubDomains"

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for k, v := range sh.Headers {
			h.Set(k, v)
		}
		if sh.HSTS > 0 && (r.TLS != nil || sh.DevMode) {
			h.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// AuditLog writes one record per request that creates or removes an upload
// session. Reads are not logged.
func AuditLog(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "audit",
				slog.String("event_type", "upload_mutation"),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("location", ww.Header().Get("Location")),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
