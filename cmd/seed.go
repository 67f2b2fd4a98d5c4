package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seedforge/seedforge/pkg/appapi"
	"github.com/seedforge/seedforge/pkg/seeder"
)

// seedCmd pushes generated data files into the running application.
var seedCmd = &cobra.Command{
	Use:   "seed [entity-type]",
	Short: "Seed generated data files into the target application",
	Long: `Submit every record of the named entity type's data file through the
application's create form, or every configured entity type in order
when --all is set. Failed submissions are reported and skipped, so a
partially seeded run can simply be re-run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if !all && len(args) == 0 {
			return fmt.Errorf("name an entity type or pass --all")
		}
		if cfg.App.AdminEmail == "" || cfg.App.AdminPassword == "" {
			return fmt.Errorf("APP_ADMIN_EMAIL and APP_ADMIN_PASSWORD are required")
		}

		client, err := appapi.NewClient(&appapi.Config{BaseURL: cfg.App.APIURL}, logger)
		if err != nil {
			return err
		}

		s := seeder.New(client, &seeder.Config{
			AdminEmail:    cfg.App.AdminEmail,
			AdminPassword: cfg.App.AdminPassword,
			SiteName:      cfg.App.SiteName,
		}, nil, logger)

		types := args
		if all {
			types = nil
			for _, e := range cfg.Entities {
				types = append(types, e.Type)
			}
		}

		failed := 0
		for _, entityType := range types {
			spec := cfg.EntitySpec(entityType)
			if spec == nil {
				return fmt.Errorf("unknown entity type %q", entityType)
			}
			target := cfg.SeedTarget(entityType)

			summary, err := s.Seed(cmd.Context(), spec, target.Endpoint)
			if err != nil {
				return err
			}

			if summary.Failed == 0 {
				color.Green("✓ %s: %d seeded, %d duplicates skipped",
					summary.EntityType, summary.Seeded, summary.Duplicates)
			} else {
				failed++
				color.Red("✗ %s: %d seeded, %d failed, %d duplicates skipped",
					summary.EntityType, summary.Seeded, summary.Failed, summary.Duplicates)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d entity types had failed submissions", failed)
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("all", false, "seed every configured entity type")
	rootCmd.AddCommand(seedCmd)
}
