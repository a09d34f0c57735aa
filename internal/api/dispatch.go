package api

import (
	"io"
	"net/http"
	"strings"

	"luahost/internal/host"
)

// handlePluginRequest is the catch-all route. The connection "suspends" here:
// the request is queued for the worker pool and the handler blocks on the
// response channel until a worker resumes it.
func (s *Server) handlePluginRequest(w http.ResponseWriter, r *http.Request) {
	if isReservedPath(r.URL.Path) {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	respChan := make(chan *host.Response, 1)
	submitted := s.mgr.SubmitRequest(&host.Request{
		URL:    r.URL.Path,
		Method: r.Method,
		Body:   body,
	}, respChan)
	if !submitted {
		http.Error(w, "Service shutting down", http.StatusServiceUnavailable)
		return
	}

	select {
	case resp := <-respChan:
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	case <-r.Context().Done():
		// Client went away mid-suspension. The worker's send lands in the
		// buffered channel and is garbage collected with it.
	}
}

// isReservedPath keeps the admin surface out of plugin dispatch.
func isReservedPath(path string) bool {
	return path == "/api" ||
		strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/docs") ||
		strings.HasPrefix(path, "/openapi")
}
