package cmd

import (
	"devservices/internal/cli"

	"github.com/spf13/cobra"
)

func newListDependenciesCmd(flags *cli.CommandFlags) *cobra.Command {
	var modes []string

	cmd := &cobra.Command{
		Use:   "list-dependencies [service]",
		Short: "List the dependencies of a service in startup order",
		Long: `Resolves the dependencies of the given modes, fetching remote
dependency configs when needed, and lists them layer by layer.`,
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
			sel, err := s.orchestrator().Plan(cmd.Context(), svc, modes)
			if err != nil {
				return err
			}
			return s.printer.PrintDependencies(cli.SummarizePlan(sel))
		},
	}

	cmd.Flags().StringSliceVarP(&modes, "mode", "m", nil, "Modes to list (default \"default\")")
	return cmd
}

func newListServicesCmd(flags *cli.CommandFlags) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list-services",
		Short: "List the services in the coderoot",
		Long: `Lists the running services found in the coderoot. With --all
services that are not running are listed too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			services, err := s.app.ListServices()
			if err != nil {
				return err
			}

			store := s.app.Services().Store
			var rows []cli.ServiceSummary
			for _, svc := range services {
				active, err := store.ActiveModes(cmd.Context(), svc.Name)
				if err != nil {
					return err
				}
				status := "stopped"
				if len(active) > 0 {
					status = "running"
				} else if !all {
					continue
				}
				rows = append(rows, cli.ServiceSummary{Name: svc.Name, Path: svc.RepoPath, Status: status, Modes: active})
			}
			return s.printer.PrintServices(rows)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Also list services that are not running")
	return cmd
}
