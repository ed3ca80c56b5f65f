package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/landlordcomply/landlordcomply/internal/application/rules"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
)

type SeedSummary struct {
	*rules.SeedResult
	Source string `json:"source"`
	DryRun bool   `json:"dry_run"`
}

func (s SeedSummary) String() string {
	if s.DryRun {
		return fmt.Sprintf("%s is valid: %d jurisdiction(s)", s.Source, s.Jurisdictions)
	}
	return fmt.Sprintf("seeded %d jurisdiction(s) from %s: %d rule set(s) created, %d already present",
		s.Jurisdictions, s.Source, s.RuleSetsCreated, s.RuleSetsSkipped)
}

// NewRulesCmd groups jurisdiction rule administration.
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage jurisdiction rules",
	}
	cmd.AddCommand(newRulesSeedCmd())
	return cmd
}

func newRulesSeedCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load jurisdictions and rule sets from a YAML seed file",
		Long: "Upserts every jurisdiction in the file and adds rule set versions that are\n" +
			"not stored yet, in one transaction. Existing versions are never modified.\n" +
			"Without --file the bundled seed is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			seed, source, err := readSeed(file)
			if err != nil {
				return err
			}
			if dryRun {
				return PrintResult(cmd, SeedSummary{
					SeedResult: &rules.SeedResult{Jurisdictions: len(seed.Jurisdictions)},
					Source:     source,
					DryRun:     true,
				})
			}

			cfg, err := cliCtx.Config()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			seeder, closeFn, err := cliCtx.Deps.OpenSeeder(ctx, cfg, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := seeder.Seed(ctx, seed)
			if err != nil {
				cliCtx.Logger.Error("Seeding rolled back", logging.Err(err))
				return err
			}
			return PrintResult(cmd, SeedSummary{SeedResult: res, Source: source})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file path (default: bundled seed)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}

func readSeed(path string) (*rules.SeedFile, string, error) {
	if path == "" {
		f, err := rules.LoadDefaultSeed()
		return f, "bundled seed", err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, path, fmt.Errorf("open seed file: %w", err)
	}
	defer fh.Close()
	f, err := rules.ParseSeed(fh)
	return f, path, err
}
