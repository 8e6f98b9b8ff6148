package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/stattweaks/pkg/config"
	"github.com/openfroyo/stattweaks/pkg/diagnostics"
	"github.com/openfroyo/stattweaks/pkg/policy"
	"github.com/openfroyo/stattweaks/pkg/stores"
	"github.com/openfroyo/stattweaks/pkg/telemetry"
)

// journalFile is the SQLite journal name inside the data dir.
const journalFile = "stattweaks.db"

// errValidation marks failures already reported to the user.
type errValidation struct {
	count int
	what  string
}

func (e *errValidation) Error() string {
	return fmt.Sprintf("%d %s", e.count, e.what)
}

// telemetryPreset returns the telemetry defaults for an environment name.
func telemetryPreset(name string) (*telemetry.Config, error) {
	switch name {
	case "", "default":
		return telemetry.DefaultConfig(), nil
	case "development":
		return telemetry.DevelopmentConfig(), nil
	case "production":
		cfg := telemetry.ProductionConfig()
		cfg.Tracing.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		return cfg, nil
	default:
		return nil, fmt.Errorf("unknown environment %q (want default, development or production)", name)
	}
}

// newTelemetry builds telemetry whose logger writes to the command's stderr.
// An empty tracing value keeps the preset's exporter.
func (g *globalOptions) newTelemetry(cmd *cobra.Command, metricsAddr string, tracing string) (*telemetry.Telemetry, error) {
	cfg, err := telemetryPreset(g.envName)
	if err != nil {
		return nil, err
	}
	cfg.ServiceVersion = g.version
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Logging.Format = g.logFormat
	}
	cfg.Metrics.ListenAddress = metricsAddr
	switch tracing {
	case "":
	case "none":
		cfg.Tracing.Enabled = false
	default:
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = tracing
		if cfg.Tracing.Endpoint == "" {
			cfg.Tracing.Endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := telemetry.NewWriterLogger(cmd.ErrOrStderr(), cfg.Logging)
	return telemetry.NewTelemetryWithLogger(cfg, logger)
}

// loadProfile returns the effective profile: the stock profile, or the
// profile file merged onto it, with environment overrides applied. Parse
// errors are printed to w.
func (g *globalOptions) loadProfile(ctx context.Context, w io.Writer) (*config.Profile, string, error) {
	source := "stock"
	profile := config.DefaultProfile()

	if g.profilePath != "" {
		source = g.profilePath
		result, err := config.NewProfileParser().ParseFile(ctx, g.profilePath)
		if err != nil {
			return nil, source, err
		}
		if result.HasErrors() {
			for _, e := range result.Errors {
				fmt.Fprintln(w, e.String())
			}
			return nil, source, &errValidation{count: len(result.Errors), what: "profile error(s)"}
		}
		profile = result.Profile
	}

	g.env.Apply(profile)
	if errs := config.NewProfileParser().Validate(profile); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(w, "%s (after environment overrides)\n", e.String())
		}
		return nil, source, &errValidation{count: len(errs), what: "profile error(s)"}
	}
	return profile, source, nil
}

// openJournal opens and migrates the run journal in the data dir.
func (g *globalOptions) openJournal(ctx context.Context) (*stores.SQLiteStore, error) {
	if err := os.MkdirAll(g.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: filepath.Join(g.dataDir, journalFile)})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// newPolicyEngine builds the policy engine with the built-in policies plus
// any loaded from paths.
func newPolicyEngine(ctx context.Context, tel *telemetry.Telemetry, paths []string) (*policy.Engine, *policy.Loader, error) {
	logger := tel.Logger.NewComponentLogger("policy").Zerolog()

	engine, err := policy.NewEngine(logger)
	if err != nil {
		return nil, nil, err
	}

	loader := policy.NewLoader(logger)
	if len(paths) > 0 {
		external, err := loader.LoadFromPaths(ctx, paths)
		if err != nil {
			return nil, nil, err
		}
		if err := engine.SetExternalPolicies(ctx, external); err != nil {
			return nil, nil, err
		}
	}
	return engine, loader, nil
}

// printPolicyResult writes findings, one per line.
func printPolicyResult(w io.Writer, result *policy.Result) {
	for _, v := range result.Violations {
		fmt.Fprintf(w, "%s: %s [%s] %s\n", v.Severity, v.Path, v.Policy, v.Message)
	}
	for _, v := range result.Warnings {
		fmt.Fprintf(w, "%s: %s [%s] %s\n", v.Severity, v.Path, v.Policy, v.Message)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "policy failure: %s\n", f)
	}
}

// scanOptions converts the profile's scan section.
func scanOptions(p *config.Profile, dir, runID string) diagnostics.Options {
	groups := make([]diagnostics.Group, 0, len(p.Scan.Groups))
	for _, sg := range p.Scan.Groups {
		groups = append(groups, diagnostics.Group{Keyword: sg.Keyword, MemberTokens: sg.MemberTokens})
	}
	return diagnostics.Options{
		Prefix:        p.Scan.Prefix,
		TargetModules: p.Scan.TargetModules,
		Groups:        groups,
		Dir:           dir,
		RunID:         runID,
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func splitPaths(values []string) []string {
	var out []string
	for _, v := range values {
		for _, p := range strings.Split(v, string(os.PathListSeparator)) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
