package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"devservices/internal/cli"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodePartial indicates that some dependencies failed or timed out
	// while others were handled.
	ExitCodePartial = 2
)

// version is injected by main at build time.
var version = "dev"

// SetVersion sets the version reported by the CLI.
func SetVersion(v string) {
	version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// PartialError is returned when an operation finished with a partial outcome.
// The per-dependency details have already been printed.
type PartialError struct {
	Operation string
	Service   string
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s of %s only partially succeeded", e.Operation, e.Service)
}

// newRootCmd builds the command tree. Every invocation gets fresh flags.
func newRootCmd() *cobra.Command {
	flags := &cli.CommandFlags{}

	rootCmd := &cobra.Command{
		Use:   "devservices",
		Short: "Run the dependencies of your services for local development",
		Long: `devservices starts and stops the containers and processes a service
needs for local development, such as databases, queues and other services.

Dependencies are declared in devservices/config.yml of each repository.
Dependencies shared by several services or modes are started once and only
stopped when nothing needs them anymore.`,
		// Errors are printed by Execute so configuration errors can show their suggestions.
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.ValidateOutputFormat(flags.OutputFormat)
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "devservices version %s\n" .Version}}`)
	cli.RegisterCommonFlags(rootCmd, flags)

	rootCmd.AddCommand(
		newUpCmd(flags),
		newDownCmd(flags),
		newStatusCmd(flags),
		newToggleCmd(flags),
		newPurgeCmd(flags),
		newResetCmd(flags),
		newListDependenciesCmd(flags),
		newListServicesCmd(flags),
		newLogsCmd(flags),
		newMCPCmd(flags),
		newSelfUpdateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits with a code describing the outcome. An
// interrupt cancels the running operation; dependencies already started stay
// recorded.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		var partial *PartialError
		if !errors.As(err, &partial) {
			fmt.Fprintln(rootCmd.ErrOrStderr(), cli.FormatError(err))
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	var partial *PartialError
	if errors.As(err, &partial) {
		return ExitCodePartial
	}
	return ExitCodeError
}
