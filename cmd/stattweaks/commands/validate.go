package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/stattweaks/pkg/config"
	"github.com/openfroyo/stattweaks/pkg/policy"
)

func newValidateCommand(g *globalOptions) *cobra.Command {
	var (
		policyPaths []string
		export      bool
	)

	cmd := &cobra.Command{
		Use:   "validate [profile.cue]",
		Short: "Check a profile against its schema and the policies",
		Long: `Parse a CUE profile, validate it and evaluate the built-in and any extra
Rego policies against it. Exits non-zero on errors or blocking violations.

With --export the effective profile (stock defaults, file and environment
overrides merged) is printed as CUE.`,
		Example: `  stattweaks validate hardcore.cue
  stattweaks validate hardcore.cue --policy ./policies
  stattweaks validate --export > profile.cue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				g.profilePath = args[0]
			}

			tel, err := g.newTelemetry(cmd, "", "none")
			if err != nil {
				return err
			}
			defer func() { _ = tel.Shutdown(ctx) }()

			profile, source, err := g.loadProfile(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if export {
				data, err := config.NewProfileParser().ExportCUE(profile)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}

			engine, _, err := newPolicyEngine(ctx, tel, splitPaths(policyPaths))
			if err != nil {
				return err
			}
			result, err := engine.Evaluate(ctx, profile, &policy.Context{
				Operation: "validate",
				Source:    source,
				Timestamp: time.Now(),
			})
			if err != nil {
				return err
			}

			if g.jsonOutput {
				if err := writeJSON(out, map[string]interface{}{
					"profile": profile.Name,
					"source":  source,
					"result":  result,
				}); err != nil {
					return err
				}
			} else {
				printPolicyResult(out, result)
			}

			if !result.Allowed {
				return &errValidation{count: len(result.Violations), what: "policy violation(s)"}
			}
			if !g.jsonOutput {
				fmt.Fprintf(out, "profile %q (%s) is valid: %d patches, %d warnings\n",
					profile.Name, source, len(profile.Patches), len(result.Warnings))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "extra policy files or directories")
	cmd.Flags().BoolVar(&export, "export", false, "print the effective profile as CUE")

	return cmd
}
