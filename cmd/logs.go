package cmd

import (
	"fmt"

	"devservices/internal/cli"

	"github.com/spf13/cobra"
)

func newLogsCmd(flags *cli.CommandFlags) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:   "logs [service] <dependency>",
		Short: "Show the recent output of a running dependency",
		Long: `Shows the last lines of output of a dependency: the container logs for
the container runtime, the supervisor program output for the local runtime.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := s.service(args[:len(args)-1])
			if err != nil {
				return err
			}
			out, err := s.orchestrator().Logs(cmd.Context(), svc.Name, args[len(args)-1], tail)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 100, "Number of lines to show")
	return cmd
}
