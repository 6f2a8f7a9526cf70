package cmd

import (
	"devservices/internal/cli"
	"devservices/internal/mcpserver"

	"github.com/spf13/cobra"
)

func newMCPCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve devservices tools to AI assistants over stdio",
		Long: `Runs an MCP server on stdin/stdout exposing up, down, status, toggle,
list_dependencies, list_services and logs as tools. Logs go to stderr.

Example configuration for an MCP client:

  {"command": "devservices", "args": ["mcp"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			return mcpserver.New(s.orchestrator(), s.app, version).Start(cmd.Context())
		},
	}
}
