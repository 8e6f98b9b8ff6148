package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/stores"
)

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var (
		limit     int
		eventType string
		level     string
		scans     string
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled runs and their events",
		Long: `Without arguments, list the most recent runs in the journal. With a run
ID, list that run's events in order. With --scan, list the hits of one
diagnostic scan.`,
		Example: `  stattweaks history
  stattweaks history 6f1c2a9e-... --type refund
  stattweaks history --scan 3b7d... --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := g.openJournal(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if scans != "" {
				records, err := store.ListScanRecords(ctx, scans)
				if err != nil {
					return err
				}
				if g.jsonOutput {
					return writeJSON(out, records)
				}
				return printScanRecords(out, records)
			}

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx, limit, 0)
				if err != nil {
					return err
				}
				if g.jsonOutput {
					return writeJSON(out, runs)
				}
				return printRuns(out, runs)
			}

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			filter := stores.EventFilter{RunID: &run.ID, Limit: limit}
			if eventType != "" {
				filter.Type = &eventType
			}
			if level != "" {
				l := stores.EventLevel(level)
				filter.Level = &l
			}
			events, err := store.ListEvents(ctx, filter)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(out, map[string]interface{}{"run": run, "events": events})
			}
			printRunHeader(out, run)
			return printEvents(out, events)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows (0 for all)")
	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().StringVar(&level, "level", "", "only events at this level (debug, info, warning, error)")
	cmd.Flags().StringVar(&scans, "scan", "", "list the hits of this scan ID")

	return cmd
}

func printRuns(w io.Writer, runs []*stores.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROFILE\tSTATUS\tPHASE\tPATCHES\tREFUNDS\tSTARTED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d (%.2f)\t%s\n",
			r.ID, r.Profile, r.Status, r.FinalPhase, r.PatchesApplied, r.PatchesTotal,
			r.Refunds, r.RefundTotal, r.StartedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func printRunHeader(w io.Writer, r *stores.Run) {
	fmt.Fprintf(w, "run %s (%s) on %s: %s", r.ID, r.Profile, r.World, r.Status)
	if r.CompletedAt != nil {
		fmt.Fprintf(w, " after %s", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintln(w)
	if r.Error != nil {
		fmt.Fprintf(w, "error: %s\n", *r.Error)
	}
}

func printEvents(w io.Writer, events []*stores.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tPHASE\tPATCH\tMESSAGE")
	for _, e := range events {
		patch := "-"
		if e.PatchID != nil {
			patch = *e.PatchID
		}
		msg := e.Message
		if engine.EventType(e.Type) == engine.EventTypeRefund {
			msg = fmt.Sprintf("%s (%.2f)", msg, e.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("15:04:05.000"), e.Level, e.Type, e.Phase, patch, msg)
	}
	return tw.Flush()
}

func printScanRecords(w io.Writer, records []*stores.ScanRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "no scan records")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tGROUP\tMODULE\tTYPE\tMEMBER")
	for _, r := range records {
		member := r.Member
		if r.MemberKind != "" {
			member = fmt.Sprintf("%s %s %s", r.MemberKind, r.ValueType, r.Member)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Kind, r.Group, r.Module, r.TypeName, member)
	}
	return tw.Flush()
}
