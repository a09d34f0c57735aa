package api

import (
	"net/http"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	"github.com/unrolled/secure"
)

// Every plugin request runs a script handler, so the dispatch surface gets a
// per-client request budget. The admin API is bearer-gated and exempt.
const pluginRequestsPerSecond = 20

// hardeningMiddleware assembles the hardening chain: security headers on
// everything, cross-origin checks and (in production) rate limiting on the
// plugin dispatch surface.
func (s *Server) hardeningMiddleware(next http.Handler) http.Handler {
	handler := s.crossOriginGuard(next)
	handler = s.securityHeaders(handler)

	if s.production {
		handler = s.dispatchRateLimit(handler)
	}

	return handler
}

// securityHeaders sets the standard hardening headers on every response.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	opts := secure.Options{
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IsDevelopment:        !s.production,
	}

	if s.trustProxyHeaders {
		opts.SSLProxyHeaders = map[string]string{"X-Forwarded-Proto": "https"}
	}

	return secure.New(opts).Handler(next)
}

// crossOriginGuard rejects cross-origin mutations of plugin routes, where
// handlers are cookie-oblivious scripts that would happily accept a forged
// form post. The admin API and docs authenticate by bearer token and skip it.
func (s *Server) crossOriginGuard(next http.Handler) http.Handler {
	guard := http.CrossOriginProtection{}
	guarded := guard.Handler(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isReservedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		guarded.ServeHTTP(w, r)
	})
}

// dispatchRateLimit budgets requests into plugin dispatch per client IP.
// Operator calls to the admin API are not counted against the budget.
func (s *Server) dispatchRateLimit(next http.Handler) http.Handler {
	lim := tollbooth.NewLimiter(pluginRequestsPerSecond, nil)

	if s.trustProxyHeaders {
		for _, source := range []string{"RemoteAddr", "X-Forwarded-For", "X-Real-IP"} {
			lim.SetIPLookup(limiter.IPLookup{Name: source, IndexFromRight: 0})
		}
	}

	limited := tollbooth.LimitHandler(lim, next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isReservedPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		limited.ServeHTTP(w, r)
	})
}
