package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"luahost/pkg/models"
)

// PluginListOutput is the response for listing loaded plugins.
type PluginListOutput struct {
	Body struct {
		Plugins []models.PluginInfo `json:"plugins"`
	}
}

// RefreshOutput reports the state after a reload.
type RefreshOutput struct {
	Body struct {
		Plugins int `json:"plugins"`
		Hooks   int `json:"hooks"`
	}
}

// StatsOutput is the host runtime snapshot.
type StatsOutput struct {
	Body models.HostStats
}

// LogsInput selects a page of system logs.
type LogsInput struct {
	Limit  int    `default:"50" doc:"Page size"              maximum:"500" minimum:"1" query:"limit"`
	Offset int    `default:"0"  doc:"Page offset"            minimum:"0"   query:"offset"`
	Level  string `doc:"Filter by level (INFO, ERROR, ...)"  query:"level" required:"false"`
}

// LogsOutput is a page of system logs.
type LogsOutput struct {
	Body struct {
		Logs  []*models.SystemLog `json:"logs"`
		Total int64               `json:"total"`
	}
}

// registerAdminRoutes registers the operator-facing API.
func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-plugins",
		Method:      http.MethodGet,
		Path:        "/api/plugins",
		Summary:     "List Plugins",
		Description: "List every loaded plugin with its manifest and hook count.",
		Tags:        []string{"Plugins"},
	}, s.handleListPlugins)

	huma.Register(s.api, huma.Operation{
		OperationID: "refresh-plugins",
		Method:      http.MethodPost,
		Path:        "/api/refresh",
		Summary:     "Refresh Plugins",
		Description: "Reload every plugin from disk. Waits for in-flight work to finish.",
		Tags:        []string{"Plugins"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRefresh)

	huma.Register(s.api, huma.Operation{
		OperationID: "host-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Host Stats",
		Tags:        []string{"Host"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "System Logs",
		Tags:        []string{"Host"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetLogs)
}

func (s *Server) handleListPlugins(
	ctx context.Context,
	_ *struct{},
) (*PluginListOutput, error) {
	out := &PluginListOutput{}
	out.Body.Plugins = s.mgr.Plugins()
	return out, nil
}

func (s *Server) handleRefresh(ctx context.Context, _ *struct{}) (*RefreshOutput, error) {
	if err := s.mgr.Refresh(); err != nil {
		return nil, huma.Error500InternalServerError("refresh failed", err)
	}

	out := &RefreshOutput{}
	out.Body.Plugins = len(s.mgr.Plugins())
	out.Body.Hooks = s.mgr.HookCount()
	return out, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	return &StatsOutput{Body: s.mgr.Stats()}, nil
}

func (s *Server) handleGetLogs(ctx context.Context, input *LogsInput) (*LogsOutput, error) {
	if s.db == nil {
		return nil, huma.Error404NotFound("system log database is not configured")
	}

	logs, total, err := s.db.GetLogs(ctx, input.Limit, input.Offset, models.LogLevel(input.Level))
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to fetch logs", err)
	}

	out := &LogsOutput{}
	out.Body.Logs = logs
	out.Body.Total = total
	return out, nil
}
