package cmd

import (
	"devservices/internal/cli"

	"github.com/spf13/cobra"
)

func newResetCmd(flags *cli.CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <dependency>",
		Short: "Remove the containers and volumes of a dependency",
		Long: `Wipes the data of a container dependency, such as a database. Every
service currently using it is brought down first, then its containers and
volumes are removed. The next up starts it with empty volumes.

Example:
  devservices reset postgres`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, flags)
			if err != nil {
				return err
			}
			defer s.Close()

			progress := s.progress("Resetting " + args[0])
			res, err := s.orchestrator().Reset(cmd.Context(), args[0])
			progress.Stop("")
			return s.finish(res, err)
		},
	}
}
