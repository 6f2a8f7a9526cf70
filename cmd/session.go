package cmd

import (
	"fmt"

	"devservices/internal/app"
	"devservices/internal/cli"
	"devservices/internal/config"
	"devservices/internal/orchestrator"

	"github.com/spf13/cobra"
)

// session bundles what a command needs: the application and a printer.
type session struct {
	cmd     *cobra.Command
	flags   *cli.CommandFlags
	app     *app.Application
	printer *cli.Printer
}

func openSession(cmd *cobra.Command, flags *cli.CommandFlags) (*session, error) {
	printer, err := flags.Printer(cmd)
	if err != nil {
		return nil, err
	}
	application, err := app.NewApplication(&app.Config{
		Debug:        flags.Debug,
		SettingsPath: flags.SettingsPath,
		LogOutput:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	return &session{cmd: cmd, flags: flags, app: application, printer: printer}, nil
}

func (s *session) Close() {
	_ = s.app.Close()
}

func (s *session) orchestrator() *orchestrator.Orchestrator {
	return s.app.Services().Orchestrator
}

// service resolves the optional service argument, falling back to the
// repository of the working directory.
func (s *session) service(args []string) (*config.Service, error) {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return s.app.ResolveService(name)
}

// progress starts a spinner unless output is quiet or structured.
func (s *session) progress(title string) *cli.Progress {
	quiet := s.flags.Quiet || s.printer.Structured()
	return cli.StartProgress(s.cmd.ErrOrStderr(), title, s.orchestrator().SubscribeToStateChanges(), quiet)
}

// finish prints res and turns its outcome into the command's error.
func (s *session) finish(res *orchestrator.Result, err error) error {
	if res == nil {
		return err
	}
	if perr := s.printer.PrintResult(res); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	switch res.Outcome() {
	case orchestrator.OutcomeSuccess:
		return nil
	case orchestrator.OutcomePartial:
		return &PartialError{Operation: res.Operation, Service: res.Service}
	default:
		if err := res.Err(); err != nil {
			return fmt.Errorf("%s of %s failed: %w", res.Operation, res.Service, err)
		}
		return fmt.Errorf("%s of %s failed", res.Operation, res.Service)
	}
}
