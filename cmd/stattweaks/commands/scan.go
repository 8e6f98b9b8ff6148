package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/stattweaks/pkg/diagnostics"
	"github.com/openfroyo/stattweaks/pkg/sandbox"
	"github.com/openfroyo/stattweaks/pkg/telemetry"
)

func newScanCommand(g *globalOptions) *cobra.Command {
	var (
		world     string
		noJournal bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Write the diagnostic type and member report for a world",
		Long: `Enumerate the modules, types and members of a sandbox world and write a
timestamped report to the data dir. Which modules are listed and which types
and members count as hits comes from the profile's scan section.

The same scan runs once at the start of 'stattweaks run'.`,
		Example: `  stattweaks scan --world world.yaml
  stattweaks scan --world world.yaml --data-dir ./logs --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			tel, err := g.newTelemetry(cmd, "", "none")
			if err != nil {
				return err
			}
			defer func() { _ = tel.Shutdown(ctx) }()
			ctx = tel.WithContext(ctx)

			profile, _, err := g.loadProfile(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			fx, err := sandbox.LoadWorld(world)
			if err != nil {
				return err
			}

			var sink diagnostics.RecordSink
			if !noJournal {
				store, err := g.openJournal(ctx)
				if err != nil {
					return err
				}
				defer store.Close()
				sink = store
			}

			op := telemetry.StartOperation(ctx, "diagnostics.scan")
			scanner := diagnostics.NewScanner(fx.World, scanOptions(profile, g.dataDir, ""), sink, tel.Logger.Zerolog())
			report, err := scanner.Run(op.Ctx)
			if report != nil {
				op.Span.SetAttributes(telemetry.AttrScanID.String(report.ScanID))
			}
			op.End(err)
			if report == nil {
				return err
			}
			if err != nil {
				op.Logger.WithError(err).Warn("Scan finished with errors")
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"scan_id": report.ScanID,
					"path":    report.Path,
					"lines":   report.Lines,
					"hits":    len(report.Records),
				})
			}
			if !quiet {
				for _, line := range report.Lines {
					fmt.Fprintln(out, line)
				}
			}
			if report.Path != "" {
				fmt.Fprintf(out, "report written to %s\n", report.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&world, "world", "w", "", "sandbox world YAML file")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record hits in the SQLite journal")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the report path")
	_ = cmd.MarkFlagRequired("world")

	return cmd
}
