package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"luahost/pkg/models"
)

// responseWriter is a wrapper around http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter

	status int
}

// WriteHeader captures the status code before writing it to the response.
func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// contextMiddleware injects global dependencies (like the DB logger) into the request context.
func (s *Server) contextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.db == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := models.NewContextWithLogger(r.Context(), s.db.CreateLogEntry)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggerMiddleware logs HTTP requests to the database asynchronously.
func (s *Server) LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		if s.db == nil {
			return
		}

		duration := time.Since(start)

		level := models.LevelInfo
		if rw.status >= 400 && rw.status < 500 {
			level = models.LevelWarning
		} else if rw.status >= 500 {
			level = models.LevelError
		}

		message := fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.status)
		data := fmt.Sprintf("Duration: %s | IP: %s | UserAgent: %s",
			duration, r.RemoteAddr, r.UserAgent())

		_ = s.db.CreateLogEntry(context.Background(), level, "HTTP", message, data)
	})
}

// protectedAdminPath reports whether a path requires an admin bearer token.
func protectedAdminPath(path string) bool {
	return path == "/api/refresh" || path == "/api/logs"
}

// strictAuthMiddleware guards the mutating and sensitive admin operations
// with an HMAC-signed bearer token.
func (s *Server) strictAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !protectedAdminPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if len(s.adminSecret) == 0 {
			http.Error(w, "Admin API is not configured", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || tokenStr == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.adminSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
