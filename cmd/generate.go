package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seedforge/seedforge/pkg/generate"
	"github.com/seedforge/seedforge/pkg/llm"
	"github.com/seedforge/seedforge/pkg/models"
)

// generateCmd runs the generation pipeline for one or all entity types.
var generateCmd = &cobra.Command{
	Use:   "generate [entity-type]",
	Short: "Generate data files for configured entity types",
	Long: `Generate records for the named entity type, or for every configured
entity type in declaration order when --all is set. Entity types that
reference another type are generated against that type's existing data
file, so declaration order matters when running --all.

Partial results are written to the output file after every batch; an
interrupted run can continue with --resume.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		resume, _ := cmd.Flags().GetBool("resume")
		seed, _ := cmd.Flags().GetInt64("seed")

		if !all && len(args) == 0 {
			return fmt.Errorf("name an entity type or pass --all")
		}

		if cfg.Anthropic.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}

		client, err := llm.NewAnthropicClient(&llm.Config{
			APIKey:      cfg.Anthropic.APIKey,
			Model:       cfg.Anthropic.Model,
			MaxTokens:   cfg.Anthropic.MaxTokens,
			Temperature: &cfg.Anthropic.Temperature,
			Timeout:     cfg.Anthropic.Timeout(),
		}, logger)
		if err != nil {
			return err
		}

		sampling := generate.Sampling{Policy: generate.SampleFirstN}
		if seed != 0 {
			sampling = generate.Sampling{Policy: generate.SampleRandom, Seed: seed}
		}

		runner := generate.NewRunner(client, logger,
			generate.WithTheme(cfg.Data.ThemeSubject),
			generate.WithSampling(sampling),
			generate.WithMaxConsecutiveStalls(cfg.Generation.MaxConsecutiveStalls),
			generate.WithResume(resume),
		)

		var specs []*models.EntitySpec
		if all {
			specs = cfg.EntitySpecs()
		} else {
			spec := cfg.EntitySpec(args[0])
			if spec == nil {
				return fmt.Errorf("unknown entity type %q", args[0])
			}
			specs = append(specs, spec)
		}

		failed := 0
		for _, spec := range specs {
			report, err := runner.Run(cmd.Context(), spec)
			if err != nil && report == nil {
				return err
			}

			switch {
			case report.Status == models.RunComplete:
				color.Green("✓ %s: %d/%d records -> %s",
					report.EntityType, report.Produced, report.Target, report.OutputFile)
			default:
				failed++
				color.Red("✗ %s: %d/%d records (%s)",
					report.EntityType, report.Produced, report.Target, report.Reason)
			}
			if err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d entity types did not reach target", failed, len(specs))
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().Bool("all", false, "generate every configured entity type")
	generateCmd.Flags().Bool("resume", false, "continue from an existing output file")
	generateCmd.Flags().Int64("seed", 0, "random seed for linked-context sampling (0 uses first-n)")
	rootCmd.AddCommand(generateCmd)
}
