package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openfroyo/stattweaks/pkg/config"
	"github.com/openfroyo/stattweaks/pkg/diagnostics"
	"github.com/openfroyo/stattweaks/pkg/engine"
	"github.com/openfroyo/stattweaks/pkg/inventory"
	"github.com/openfroyo/stattweaks/pkg/locate"
	"github.com/openfroyo/stattweaks/pkg/policy"
	"github.com/openfroyo/stattweaks/pkg/sandbox"
	"github.com/openfroyo/stattweaks/pkg/stores"
	"github.com/openfroyo/stattweaks/pkg/telemetry"
)

// defaultLinger is how long a simulated run continues past the retry deadline.
const defaultLinger = 10 * time.Second

type runOptions struct {
	world         string
	scenario      string
	duration      time.Duration
	realtime      bool
	metricsAddr   string
	tracing       string
	eventsLevel   string
	logTypes      []string
	logPatch      string
	policyPaths   []string
	watchPolicies bool
	skipPolicy    bool
	noJournal     bool
	noScan        bool
}

// runReport is printed when a run ends.
type runReport struct {
	RunID    string           `json:"run_id"`
	Profile  string           `json:"profile"`
	Status   stores.RunStatus `json:"status"`
	Frames   int              `json:"frames"`
	Snapshot engine.Snapshot  `json:"snapshot"`
	Grant    string           `json:"grant,omitempty"`
	ScanLog  string           `json:"scan_log,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func newRunCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the patch runtime against a sandbox world",
		Long: `Load a sandbox world and tick the runtime against it.

Each frame the optional Starlark scenario mutates the world (spawning the
player, dealing damage), then the runtime ticks and the item grant retries.
Patches are attempted once per retry interval until every patch applies or
the deadline passes; after that the compensation fallback refunds part of
each health decrease.

Events go to the log, the SQLite journal and, when enabled, trace spans.`,
		Example: `  # Simulated run with the stock profile
  stattweaks run --world world.yaml --scenario damage.star

  # Custom profile, extra policies and a metrics endpoint
  stattweaks run -p hardcore.cue --world world.yaml --policy ./policies --metrics-addr :9464

  # Wall-clock ticks until interrupted
  stattweaks run --world world.yaml --realtime --duration 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("metrics-addr") {
				o.metricsAddr = g.env.MetricsAddr
			}
			report, err := runTuning(cmd.Context(), cmd, g, o)
			if report != nil {
				if perr := printRunReport(cmd.OutOrStdout(), g.jsonOutput, report); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&o.world, "world", "w", "", "sandbox world YAML file")
	cmd.Flags().StringVarP(&o.scenario, "scenario", "s", "", "Starlark scenario script")
	cmd.Flags().DurationVar(&o.duration, "duration", 0, "run length (default: deadline + 10s; 0 with --realtime runs until interrupted)")
	cmd.Flags().BoolVar(&o.realtime, "realtime", false, "tick on the wall clock instead of simulated time")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&o.tracing, "tracing", "", "trace exporter (none, stdout, otlp; preset default when empty)")
	cmd.Flags().StringVar(&o.eventsLevel, "events-level", "", "drop events below this level before they are logged, journaled or traced (info, warning, error)")
	cmd.Flags().StringSliceVar(&o.logTypes, "log-event-type", nil, "only log events of these types")
	cmd.Flags().StringVar(&o.logPatch, "log-patch", "", "only log events about this patch id")
	cmd.Flags().StringSliceVar(&o.policyPaths, "policy", nil, "extra policy files or directories")
	cmd.Flags().BoolVar(&o.watchPolicies, "watch-policies", false, "re-check the profile when policy files change")
	cmd.Flags().BoolVar(&o.skipPolicy, "skip-policy", false, "run even when policies deny the profile")
	cmd.Flags().BoolVar(&o.noJournal, "no-journal", false, "do not write the SQLite journal")
	cmd.Flags().BoolVar(&o.noScan, "no-scan", false, "skip the diagnostic scan")
	_ = cmd.MarkFlagRequired("world")

	return cmd
}

func runTuning(ctx context.Context, cmd *cobra.Command, g *globalOptions, o *runOptions) (*runReport, error) {
	if o.eventsLevel != "" && !telemetry.IsEventLevel(o.eventsLevel) {
		return nil, fmt.Errorf("unknown event level %q (want info, warning or error)", o.eventsLevel)
	}

	tel, err := g.newTelemetry(cmd, o.metricsAddr, o.tracing)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tel.Shutdown(context.WithoutCancel(ctx)) }()
	logger := tel.Logger.NewComponentLogger("run")

	profile, source, err := g.loadProfile(ctx, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	paths := splitPaths(o.policyPaths)
	policies, loader, err := newPolicyEngine(ctx, tel, paths)
	if err != nil {
		return nil, err
	}
	if err := checkPolicies(ctx, policies, profile, source, cmd.ErrOrStderr(), o.skipPolicy); err != nil {
		return nil, err
	}

	fx, err := sandbox.LoadWorld(o.world)
	if err != nil {
		return nil, err
	}
	var scenario *sandbox.Scenario
	if o.scenario != "" {
		scenario, err = sandbox.LoadScenario(o.scenario, fx, tel.Logger.NewComponentLogger("scenario").Zerolog())
		if err != nil {
			return nil, err
		}
	}

	runID := uuid.New().String()
	report := &runReport{RunID: runID, Profile: profile.Name, Status: stores.RunStatusRunning}

	if o.eventsLevel != "" {
		tel.Events.AddFilter(telemetry.FilterByLevel(o.eventsLevel))
	}

	var journal stores.Store
	if !o.noJournal {
		store, err := g.openJournal(ctx)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if err := store.CreateRun(ctx, &stores.Run{
			ID:        runID,
			Profile:   profile.Name,
			World:     o.world,
			Status:    stores.RunStatusRunning,
			StartedAt: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		journal = store
		journalEvents(tel, store)
	}

	tel.LogEvents(logFilter(o))
	tel.TraceEvents()

	ctx = tel.WithContext(ctx)
	ctx = telemetry.WithRunContext(ctx, runID, profile.Name)
	logger = logger.WithRunID(runID)

	if err := tel.Metrics.Serve(ctx, logger); err != nil {
		logger.WithError(err).Warn("Metrics endpoint unavailable")
	}

	if profile.Scan.Enabled && !o.noScan {
		report.ScanLog = runScan(ctx, fx, profile, g.dataDir, runID, journal, tel)
	}

	frames, loopErr := tickLoop(ctx, tel, profile, fx, scenario, o, func() (<-chan []policy.Policy, error) {
		if !o.watchPolicies || len(paths) == 0 {
			return nil, nil
		}
		return watchPolicies(ctx, loader, paths)
	}, policies, report)
	report.Frames = frames

	switch {
	case loopErr == nil:
		report.Status = stores.RunStatusCompleted
	case errors.Is(loopErr, context.Canceled):
		report.Status = stores.RunStatusCancelled
		loopErr = nil
	default:
		report.Status = stores.RunStatusFailed
		report.Error = loopErr.Error()
	}

	telemetry.EndRunContext(ctx, string(report.Status), loopErr)

	if journal != nil {
		var errMsg *string
		if report.Error != "" {
			errMsg = &report.Error
		}
		if err := journal.FinishRun(context.WithoutCancel(ctx), runID, report.Status, summaryOf(report.Snapshot), errMsg); err != nil {
			logger.WithError(err).Warn("Failed to finish journal run")
		}
	}

	return report, loopErr
}

// logFilter narrows which events reach the log.
func logFilter(o *runOptions) telemetry.EventFilter {
	var filters []telemetry.EventFilter
	if len(o.logTypes) > 0 {
		types := make([]engine.EventType, 0, len(o.logTypes))
		for _, t := range o.logTypes {
			types = append(types, engine.EventType(t))
		}
		filters = append(filters, telemetry.FilterByType(types...))
	}
	if o.logPatch != "" {
		filters = append(filters, telemetry.FilterByPatch(o.logPatch))
	}
	return telemetry.MatchAll(filters...)
}

// tickLoop drives scenario, runtime and granter from one goroutine.
func tickLoop(
	ctx context.Context,
	tel *telemetry.Telemetry,
	profile *config.Profile,
	fx *sandbox.Fixture,
	scenario *sandbox.Scenario,
	o *runOptions,
	startWatch func() (<-chan []policy.Policy, error),
	policies *policy.Engine,
	report *runReport,
) (int, error) {
	zl := tel.Logger.Zerolog()
	opts := profile.EngineOptions()

	locator := locate.New(fx.World, fx.Registry, zl, profile.Entities...)
	probe := engine.NewEventProbe(fx.World, opts.Probe, zl, tel.Metrics)
	rt := engine.NewRuntime(opts, engine.Dependencies{
		Locator:   locator,
		Probe:     probe,
		Publisher: tel.Events,
		Observer:  tel.Metrics,
		Logger:    zl,
	})

	var granter *inventory.Granter
	if profile.Inventory.Enabled {
		granter = inventory.NewGranter(profile.Inventory.GranterOptions(), fx.Catalog, locator, tel.Events, zl)
	}

	reloads, err := startWatch()
	if err != nil {
		tel.Logger.WithError(err).Warn("Policy watch unavailable")
	}

	step := profile.Schedule.Tick()
	maxFrames := 0
	switch {
	case o.duration > 0:
		maxFrames = int(o.duration / step)
	case !o.realtime:
		maxFrames = int((opts.Deadline + defaultLinger) / step)
	}

	if maxFrames > 0 {
		tel.Logger.Debugf("Simulating %d frames of %s", maxFrames, step)
	} else {
		tel.Logger.Debugf("Ticking every %s until interrupted", step)
	}

	start := time.Now()
	sim := sandbox.NewSimulation(fx, scenario, start, step)

	var ticker *time.Ticker
	if o.realtime {
		ticker = time.NewTicker(step)
		defer ticker.Stop()
	}

	defer func() {
		report.Snapshot = rt.Snapshot()
		if granter != nil {
			report.Grant = string(granter.State())
		}
	}()

	phase := rt.Phase()
	grantDone := granter == nil
	for maxFrames == 0 || sim.Frame() < maxFrames {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return sim.Frame(), ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return sim.Frame(), err
		}

		now, err := sim.Advance(ctx, string(phase))
		if err != nil {
			return sim.Frame(), fmt.Errorf("scenario frame %d: %w", sim.Frame(), err)
		}

		phase = rt.Tick(ctx, now)

		if !grantDone && granter.Tick(ctx, now) {
			grantDone = true
			tel.Metrics.RecordItemGrant(string(granter.State()))
		}

		select {
		case ps := <-reloads:
			recheckPolicies(ctx, tel, policies, profile, ps)
		default:
		}
	}

	return sim.Frame(), nil
}

// runScan runs the diagnostic scan; failures are logged and the run goes on.
func runScan(ctx context.Context, fx *sandbox.Fixture, profile *config.Profile, dir, runID string, journal stores.Store, tel *telemetry.Telemetry) string {
	op := telemetry.StartOperation(ctx, "diagnostics.scan")

	var sink diagnostics.RecordSink
	if journal != nil {
		sink = journal
	}
	scanner := diagnostics.NewScanner(fx.World, scanOptions(profile, dir, runID), sink, tel.Logger.Zerolog())
	report, err := scanner.Run(op.Ctx)
	if report == nil {
		op.End(err)
		return ""
	}
	op.Span.SetAttributes(telemetry.AttrScanID.String(report.ScanID))
	op.End(err)
	return report.Path
}

func checkPolicies(ctx context.Context, pe *policy.Engine, profile *config.Profile, source string, w io.Writer, skip bool) error {
	op := telemetry.StartOperation(ctx, "policy.evaluate")
	result, err := pe.Evaluate(op.Ctx, profile, &policy.Context{Operation: "run", Source: source, Timestamp: time.Now()})
	op.End(err)
	if err != nil {
		return err
	}

	printPolicyResult(w, result)
	if !result.Allowed && !skip {
		return &errValidation{count: len(result.Violations), what: "policy violation(s)"}
	}
	return nil
}

// watchPolicies forwards reloaded policy sets; only the newest pending set is kept.
func watchPolicies(ctx context.Context, loader *policy.Loader, paths []string) (<-chan []policy.Policy, error) {
	reloads := make(chan []policy.Policy, 1)
	err := loader.Watch(ctx, paths, func(ps []policy.Policy) error {
		select {
		case <-reloads:
		default:
		}
		select {
		case reloads <- ps:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reloads, nil
}

// recheckPolicies swaps in reloaded policies and re-evaluates the running
// profile. Patches already applied stay applied; findings are only logged.
func recheckPolicies(ctx context.Context, tel *telemetry.Telemetry, pe *policy.Engine, profile *config.Profile, ps []policy.Policy) {
	logger := tel.Logger.NewComponentLogger("policy")
	if err := pe.SetExternalPolicies(ctx, ps); err != nil {
		logger.WithError(err).Warn("Rejected reloaded policies")
		return
	}
	result, err := pe.Evaluate(ctx, profile, &policy.Context{Operation: "reload", Timestamp: time.Now()})
	if err != nil {
		logger.WithError(err).Warn("Policy re-check failed")
		return
	}
	for _, v := range append(result.Violations, result.Warnings...) {
		logger.WithField("policy", v.Policy).Warnf("%s: %s", v.Path, v.Message)
	}
	logger.Infof("Reloaded %d policies, profile allowed=%t", len(ps), result.Allowed)
}

func printRunReport(w io.Writer, asJSON bool, r *runReport) error {
	if asJSON {
		return writeJSON(w, r)
	}

	fmt.Fprintf(w, "run %s (%s): %s after %d frames, phase %s\n", r.RunID, r.Profile, r.Status, r.Frames, r.Snapshot.Phase)
	for _, rec := range r.Snapshot.Records {
		state := "pending"
		if rec.Applied {
			state = "applied via " + rec.Via
		}
		fmt.Fprintf(w, "  patch %-12s %s (%d attempts)\n", rec.ID, state, rec.Attempts)
	}
	if r.Snapshot.Hooked {
		fmt.Fprintln(w, "  damage hook confirmed; fallback disabled")
	}
	if r.Snapshot.HasBaseline {
		fmt.Fprintf(w, "  refunds: %d totalling %.2f\n", r.Snapshot.Refunds, r.Snapshot.RefundTotal)
	}
	if r.Grant != "" {
		fmt.Fprintf(w, "  item grant: %s\n", r.Grant)
	}
	if r.ScanLog != "" {
		fmt.Fprintf(w, "  scan log: %s\n", r.ScanLog)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
	return nil
}
