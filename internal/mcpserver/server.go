package mcpserver

import (
	"context"

	"devservices/internal/config"
	"devservices/internal/dependency"
	"devservices/internal/orchestrator"
	"devservices/internal/state"
	"devservices/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const subsystem = "MCP"

// Engine is the part of the orchestrator the tools drive.
type Engine interface {
	Plan(ctx context.Context, svc *config.Service, modes []string) (*dependency.Selection, error)
	Up(ctx context.Context, svc *config.Service, modes []string, opts orchestrator.UpOptions) (*orchestrator.Result, error)
	Down(ctx context.Context, svc *config.Service, modes []string) (*orchestrator.Result, error)
	Status(ctx context.Context, service string) ([]state.Record, error)
	Toggle(ctx context.Context, svc *config.Service, name string, to state.Runtime) (*orchestrator.DependencyResult, error)
	Logs(ctx context.Context, service, name string, tail int) (string, error)
}

// Services finds service configs by name.
type Services interface {
	ResolveService(name string) (*config.Service, error)
	ListServices() ([]*config.Service, error)
}

// Server wraps an MCP server whose tools call into the engine.
type Server struct {
	engine    Engine
	services  Services
	mcpServer *server.MCPServer
}

// New creates the server and registers its tools.
func New(engine Engine, services Services, version string) *Server {
	mcpServer := server.NewMCPServer(
		"devservices",
		version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		engine:    engine,
		services:  services,
		mcpServer: mcpServer,
	}
	s.registerTools()
	return s
}

// Start serves MCP over stdin/stdout until the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	logging.Info(subsystem, "Serving devservices tools over stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	serviceArg := mcp.WithString("service",
		mcp.Description("Service name; defaults to the repository of the working directory"),
	)
	modesArg := mcp.WithArray("modes",
		mcp.Description("Modes to act on; defaults to the default mode for up and the active modes for down"),
		mcp.WithStringItems(),
	)

	s.mcpServer.AddTool(mcp.NewTool("up",
		mcp.WithDescription("Start the dependencies of a service for the given modes"),
		serviceArg,
		modesArg,
		mcp.WithBoolean("exclusive",
			mcp.Description("Stop the dependencies only needed by the service's other active modes"),
		),
	), s.handleUp)

	s.mcpServer.AddTool(mcp.NewTool("down",
		mcp.WithDescription("Stop the dependencies of a service that no other service needs"),
		serviceArg,
		modesArg,
	), s.handleDown)

	s.mcpServer.AddTool(mcp.NewTool("status",
		mcp.WithDescription("Show the state of running dependencies"),
		mcp.WithString("service",
			mcp.Description("Service name; all services when empty"),
		),
	), s.handleStatus)

	s.mcpServer.AddTool(mcp.NewTool("toggle",
		mcp.WithDescription("Switch a remote dependency between container and local runtime"),
		serviceArg,
		mcp.WithString("dependency",
			mcp.Required(),
			mcp.Description("Dependency name"),
		),
		mcp.WithString("runtime",
			mcp.Description("Target runtime; the other runtime when empty"),
			mcp.Enum(string(state.RuntimeContainer), string(state.RuntimeLocal)),
		),
	), s.handleToggle)

	s.mcpServer.AddTool(mcp.NewTool("list_dependencies",
		mcp.WithDescription("List the dependencies of a service in startup order"),
		serviceArg,
		modesArg,
	), s.handleListDependencies)

	s.mcpServer.AddTool(mcp.NewTool("list_services",
		mcp.WithDescription("List the services found in the coderoot"),
	), s.handleListServices)

	s.mcpServer.AddTool(mcp.NewTool("logs",
		mcp.WithDescription("Show the recent output of a running dependency"),
		serviceArg,
		mcp.WithString("dependency",
			mcp.Required(),
			mcp.Description("Dependency name"),
		),
		mcp.WithNumber("tail",
			mcp.Description("Number of lines, default 100"),
		),
	), s.handleLogs)
}
