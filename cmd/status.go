package cmd

import (
	"devservices/internal/cli"
	"devservices/pkg/logging"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status [service]",
		Short: "Show the state of running dependencies",
		Long: `Shows each running dependency with its state, runtime, referrer
count and the modes that need it.

Without a service name the service of the current repository is shown, or
every running dependency when not inside a repository.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			name := ""
			svc, err := s.service(args)
			switch {
			case err == nil:
				name = svc.Name
			case len(args) > 0:
				return err
			default:
				logging.Debug("CLI", "Showing all services: %v", err)
			}

			recs, err := s.orchestrator().Status(cmd.Context(), name)
			if err != nil {
				return err
			}
			return s.printer.PrintRecords(name, recs)
		},
	}
}
