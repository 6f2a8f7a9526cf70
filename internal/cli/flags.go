package cli

import (
	"github.com/spf13/cobra"
)

// CommandFlags holds the flag values shared by every command.
type CommandFlags struct {
	// OutputFormat specifies the desired output format (table, plain, json, yaml)
	OutputFormat string
	// NoHeaders suppresses the header row in table output
	NoHeaders bool
	// Quiet suppresses progress indicators
	Quiet bool
	// Debug enables debug logging
	Debug bool
	// SettingsPath overrides the settings file location
	SettingsPath string
}

// RegisterCommonFlags registers the shared flags as persistent flags of cmd:
//   - --output/-o: Output format (table, plain, json, yaml), default: "table"
//   - --no-headers: Suppress header row in table output
//   - --quiet/-q: Suppress progress indicators
//   - --debug: Enable debug logging
//   - --settings: Settings file
func RegisterCommonFlags(cmd *cobra.Command, flags *CommandFlags) {
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", string(OutputFormatTable), "Output format (table, plain, json, yaml)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress progress indicators")
	cmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.SettingsPath, "settings", "", "Settings file (default ~/.config/devservices/config.yaml)")
}

// Printer returns a printer for the output flags.
func (f *CommandFlags) Printer(cmd *cobra.Command) (*Printer, error) {
	return NewPrinter(f.OutputFormat, f.NoHeaders, cmd.OutOrStdout())
}
