package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/stattweaks/pkg/config"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envName     string
	profilePath string
	dataDir     string
	logLevel    string
	logFormat   string
	jsonOutput  bool
	version     string

	env config.Environment
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	g := &globalOptions{version: version}

	rootCmd := &cobra.Command{
		Use:   "stattweaks",
		Short: "stattweaks - runtime stat patcher with damage compensation",
		Long: `stattweaks raises selected stats on live game objects once they exist.

During a bounded retry window it locates the player and health objects,
raises maximum health and armor ratings, and then falls back to refunding
part of every health decrease when no damage hook can be confirmed.

Features:
  - Typed tuning profiles via CUE
  - OPA policy checks on profiles
  - Scriptable sandbox worlds via YAML and Starlark
  - SQLite run journal
  - Prometheus metrics and OpenTelemetry traces`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.LoadEnvironment()
			if err != nil {
				return err
			}
			g.env = env

			// Flags win over the environment.
			if !cmd.Flags().Changed("env") {
				g.envName = env.Env
			}
			if !cmd.Flags().Changed("profile") && env.Profile != "" {
				g.profilePath = env.Profile
			}
			if !cmd.Flags().Changed("data-dir") {
				g.dataDir = env.DataDir
			}
			if !cmd.Flags().Changed("log-level") {
				g.logLevel = env.LogLevel
			}
			if !cmd.Flags().Changed("log-format") {
				g.logFormat = env.LogFormat
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.envName, "env", "", "telemetry preset (default, development, production)")
	rootCmd.PersistentFlags().StringVarP(&g.profilePath, "profile", "p", "", "CUE profile file (stock profile when empty)")
	rootCmd.PersistentFlags().StringVar(&g.dataDir, "data-dir", ".", "directory for the journal and scan logs")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (trace, debug, info, warn, error; preset default when empty)")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format (console, json; preset default when empty)")
	rootCmd.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand(g))
	rootCmd.AddCommand(newScanCommand(g))
	rootCmd.AddCommand(newValidateCommand(g))
	rootCmd.AddCommand(newHistoryCommand(g))

	return rootCmd
}
