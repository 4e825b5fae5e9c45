// Package main is the CLI entry point for huntdesk.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iyulab/huntdesk/internal/backend"
	"github.com/iyulab/huntdesk/internal/config"
	"github.com/iyulab/huntdesk/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries state shared by every subcommand once the root pre-run has loaded it.
type app struct {
	cfg      *config.Config
	printer  *message.Printer
	closeLog func() error
}

func main() {
	a := &app{printer: message.NewPrinter(language.English)}

	rootCmd := &cobra.Command{
		Use:   "huntdesk",
		Short: "Threat-hunting console for a DFIR platform",
		Long: `huntdesk builds ES|QL and KQL hunts, runs them against the DFIR backend,
shapes the hits into tables or exports, extracts indicators for enrichment,
and tracks appliance releases.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if a.closeLog != nil {
			return a.closeLog()
		}
		return nil
	}

	rootCmd.PersistentFlags().StringP("config", "c", "huntdesk.toml", "path to config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	rootCmd.AddCommand(
		newQueryCmd(a),
		newHuntCmd(a),
		newIndicatorsCmd(a),
		newReleasesCmd(a),
		newUploadCmd(a),
		newIsolateCmd(a),
		newCasesCmd(a),
		newGraphCmd(a),
		newServeCmd(a),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the logger. An explicitly passed
// --config must exist; the default path may be absent.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	closeLog, err := logging.Setup(cfg.Log, verbose)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	a.closeLog = closeLog
	return nil
}

func (a *app) client() *backend.Client {
	return backend.NewFromConfig(a.cfg.Backend)
}
