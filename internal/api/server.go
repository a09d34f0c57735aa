// Package api is the HTTP surface: the catch-all request router that feeds
// the plugin host, and the admin API for operating it.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"luahost/internal/db"
	"luahost/internal/host"
)

const (
	DefaultHostName = "LuaHost"
	DefaultPort     = 8888

	defaultMaxUploadBytes = 16 << 20
)

// ServerConfig carries everything the server needs.
type ServerConfig struct {
	Database          *db.DB
	Manager           *host.Manager
	AdminSecret       string
	HostName          string
	Production        bool
	TrustProxyHeaders bool
	MaxUploadBytes    int64
	Port              int
}

// Server represents the main application server.
type Server struct {
	api    huma.API
	db     *db.DB
	mgr    *host.Manager
	router *http.ServeMux

	httpServer *http.Server
	port       int

	HostName string

	adminSecret []byte

	maxUploadBytes    int64
	production        bool
	trustProxyHeaders bool
}

// NewServer creates a new instance of the server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.HostName == "" {
		config.HostName = DefaultHostName
	}
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = defaultMaxUploadBytes
	}

	router := http.NewServeMux()

	humaConfig := huma.DefaultConfig(config.HostName+" Admin API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	server := &Server{
		api:               humago.New(router, humaConfig),
		db:                config.Database,
		mgr:               config.Manager,
		router:            router,
		port:              config.Port,
		HostName:          config.HostName,
		adminSecret:       []byte(config.AdminSecret),
		maxUploadBytes:    config.MaxUploadBytes,
		production:        config.Production,
		trustProxyHeaders: config.TrustProxyHeaders,
	}

	server.registerAdminRoutes()
	router.HandleFunc("/", server.handlePluginRequest)

	return server, nil
}

// Handler returns the full middleware chain around the router.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = s.strictAuthMiddleware(handler)
	handler = s.hardeningMiddleware(handler)
	handler = s.LoggerMiddleware(handler)
	handler = s.contextMiddleware(handler)
	return handler
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Listening on :%d", s.port)

	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
