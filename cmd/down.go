package cmd

import (
	"devservices/internal/cli"

	"github.com/spf13/cobra"
)

func newDownCmd(flags *cli.CommandFlags) *cobra.Command {
	var modes []string

	cmd := &cobra.Command{
		Use:   "down [service]",
		Short: "Bring down the dependencies of a service",
		Long: `Stops the dependencies of a service, dependents first. Dependencies
still needed by another service or another active mode keep running.
Containers are stopped, not removed; use purge to remove them.

Without --mode every active mode of the service is brought down.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := s.service(args)
			if err != nil {
				return err
			}

			progress := s.progress("Stopping " + svc.Name)
			res, err := s.orchestrator().Down(cmd.Context(), svc, modes)
			progress.Stop("")
			return s.finish(res, err)
		},
	}

	cmd.Flags().StringSliceVarP(&modes, "mode", "m", nil, "Modes to bring down (default: all active modes)")
	return cmd
}
