package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"devservices/internal/config"
	"devservices/internal/orchestrator"
	"devservices/internal/state"
	"devservices/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultTail = 100

// serviceSummary is one entry of list_services.
type serviceSummary struct {
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	Modes        []string `json:"modes"`
	Running      bool     `json:"running"`
	Dependencies int      `json:"dependencies"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(tool string, err error) (*mcp.CallToolResult, error) {
	logging.Debug(subsystem, "%s failed: %v", tool, err)
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) service(request mcp.CallToolRequest) (*config.Service, error) {
	return s.services.ResolveService(request.GetString("service", ""))
}

func (s *Server) handleUp(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(request)
	if err != nil {
		return errorResult("up", err)
	}
	res, err := s.engine.Up(ctx, svc, request.GetStringSlice("modes", nil), orchestrator.UpOptions{
		Exclusive: request.GetBool("exclusive", false),
	})
	if res == nil {
		return errorResult("up", err)
	}
	return jsonResult(res)
}

func (s *Server) handleDown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(request)
	if err != nil {
		return errorResult("down", err)
	}
	res, err := s.engine.Down(ctx, svc, request.GetStringSlice("modes", nil))
	if err != nil {
		return errorResult("down", err)
	}
	return jsonResult(res)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.GetString("service", "")
	if name != "" {
		svc, err := s.services.ResolveService(name)
		if err != nil {
			return errorResult("status", err)
		}
		name = svc.Name
	}
	recs, err := s.engine.Status(ctx, name)
	if err != nil {
		return errorResult("status", err)
	}
	if recs == nil {
		recs = []state.Record{}
	}
	return jsonResult(recs)
}

func (s *Server) handleToggle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dep, err := request.RequireString("dependency")
	if err != nil {
		return mcp.NewToolResultError("dependency argument is required"), nil
	}
	var to state.Runtime
	if raw := request.GetString("runtime", ""); raw != "" {
		rt, ok := state.ParseRuntime(raw)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown runtime %q (valid: container, local)", raw)), nil
		}
		to = rt
	}
	svc, err := s.service(request)
	if err != nil {
		return errorResult("toggle", err)
	}
	res, err := s.engine.Toggle(ctx, svc, dep, to)
	if err != nil {
		return errorResult("toggle", err)
	}
	return jsonResult(res)
}

func (s *Server) handleListDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := s.service(request)
	if err != nil {
		return errorResult("list_dependencies", err)
	}
	sel, err := s.engine.Plan(ctx, svc, request.GetStringSlice("modes", nil))
	if err != nil {
		return errorResult("list_dependencies", err)
	}

	type entry struct {
		Name        string `json:"name"`
		Kind        string `json:"kind"`
		Description string `json:"description,omitempty"`
		Layer       int    `json:"layer"`
	}
	var out []entry
	for i, layer := range sel.Layers() {
		for _, id := range layer {
			n := sel.Graph().Get(id)
			out = append(out, entry{Name: n.Name, Kind: string(n.Kind), Description: n.Description, Layer: i + 1})
		}
	}
	return jsonResult(map[string]any{"service": svc.Name, "modes": sel.Modes, "dependencies": out})
}

func (s *Server) handleListServices(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	services, err := s.services.ListServices()
	if err != nil {
		return errorResult("list_services", err)
	}
	out := make([]serviceSummary, 0, len(services))
	for _, svc := range services {
		recs, err := s.engine.Status(ctx, svc.Name)
		if err != nil {
			return errorResult("list_services", err)
		}
		out = append(out, serviceSummary{
			Name:         svc.Name,
			Path:         svc.RepoPath,
			Modes:        svc.ModeNames(),
			Running:      len(recs) > 0,
			Dependencies: len(svc.Dependencies),
		})
	}
	return jsonResult(out)
}

func (s *Server) handleLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dep, err := request.RequireString("dependency")
	if err != nil {
		return mcp.NewToolResultError("dependency argument is required"), nil
	}
	svc, err := s.service(request)
	if err != nil {
		return errorResult("logs", err)
	}
	out, err := s.engine.Logs(ctx, svc.Name, dep, request.GetInt("tail", defaultTail))
	if err != nil {
		return errorResult("logs", err)
	}
	return mcp.NewToolResultText(out), nil
}
