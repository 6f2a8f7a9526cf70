package cmd

import (
	"time"

	"devservices/internal/cli"
	"devservices/internal/orchestrator"

	"github.com/spf13/cobra"
)

func newUpCmd(flags *cli.CommandFlags) *cobra.Command {
	var (
		modes         []string
		exclusive     bool
		skipPull      bool
		healthTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "up [service]",
		Short: "Bring up the dependencies of a service",
		Long: `Starts the dependencies of a service for the given modes, layer by
layer, waiting for each layer to become healthy.

Without a service name the service of the current repository is used.
Without --mode the default mode is started. Several modes can be active at
the same time; --exclusive stops what only the other active modes need.

Examples:
  devservices up
  devservices up sentry --mode full
  devservices up sentry --mode symbolicator --exclusive`,
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

			progress := s.progress("Starting " + svc.Name)
			res, err := s.orchestrator().Up(cmd.Context(), svc, modes, orchestrator.UpOptions{
				Exclusive:     exclusive,
				SkipPull:      skipPull,
				HealthTimeout: healthTimeout,
			})
			progress.Stop("")
			return s.finish(res, err)
		},
	}

	cmd.Flags().StringSliceVarP(&modes, "mode", "m", nil, "Modes to bring up (default \"default\")")
	cmd.Flags().BoolVar(&exclusive, "exclusive", false, "Stop dependencies only needed by the other active modes")
	cmd.Flags().BoolVar(&skipPull, "skip-pull", false, "Do not pull container images before starting")
	cmd.Flags().DurationVar(&healthTimeout, "health-timeout", 0, "How long to wait for each dependency to become healthy (default from settings)")
	return cmd
}
