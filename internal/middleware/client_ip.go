package middleware

import (
	"net/http"

	pkghttp "github.com/BradenHooton/keypass/pkg/http"
	pkglogger "github.com/BradenHooton/keypass/pkg/logger"
)

// ClientIP resolves the caller's address once per request and stores it in the context
func ClientIP(cfg *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, cfg)
			next.ServeHTTP(w, r.WithContext(pkglogger.WithClientIP(r.Context(), ip)))
		})
	}
}

func clientIP(r *http.Request) string {
	if ip := pkglogger.ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return pkghttp.ExtractClientIP(r, nil)
}
