package cmd

import (
	"fmt"

	"devservices/internal/cli"
	"devservices/internal/state"

	"github.com/spf13/cobra"
)

func newToggleCmd(flags *cli.CommandFlags) *cobra.Command {
	var runtime string

	cmd := &cobra.Command{
		Use:   "toggle [service] <dependency>",
		Short: "Switch a remote dependency between container and local runtime",
		Long: `Switches a remote dependency between running in containers and running
locally under supervisor. A running dependency is stopped and started again
under the new runtime; otherwise only the preference changes.

Examples:
  devservices toggle snuba
  devservices toggle sentry snuba --runtime local`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var to state.Runtime
			if runtime != "" {
				rt, ok := state.ParseRuntime(runtime)
				if !ok {
					return fmt.Errorf("unknown runtime %q (valid: container, local)", runtime)
				}
				to = rt
			}

			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			svc, err := s.service(args[:len(args)-1])
			if err != nil {
				return err
			}
			dep := args[len(args)-1]

			progress := s.progress("Toggling " + dep)
			res, err := s.orchestrator().Toggle(cmd.Context(), svc, dep, to)
			progress.Stop("")
			if err != nil {
				return err
			}
			if err := s.printer.PrintToggle(res); err != nil {
				return err
			}
			switch {
			case res.Err != nil:
				return res.Err
			case res.Warning != "":
				return &PartialError{Operation: "toggle", Service: svc.Name}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runtime, "runtime", "", "Runtime to switch to: container or local (default: the other one)")
	return cmd
}
