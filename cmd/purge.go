package cmd

import (
	"devservices/internal/cli"

	"github.com/spf13/cobra"
)

func newPurgeCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "purge [service]",
		Short: "Remove containers, volumes, networks and state",
		Long: `Stops and removes everything devservices created for a service:
containers, volumes, networks, supervisor daemons and recorded state.
Dependencies still used by another service are left alone.

Without a service name everything is removed, including the cache of
remote dependency checkouts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			name := ""
			if len(args) > 0 {
				svc, err := s.service(args)
				if err != nil {
					return err
				}
				name = svc.Name
			}

			progress := s.progress("Purging")
			res, err := s.orchestrator().Purge(cmd.Context(), name)
			progress.Stop("")
			if perr := s.printer.PrintResult(res); perr != nil {
				return perr
			}
			return err
		},
	}
}
