package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/seedforge/seedforge/pkg/database"
)

// backfillCmd rewrites the columns the application's forms always stamp
// with "now" and the logged-in user.
var backfillCmd = &cobra.Command{
	Use:   "backfill [entity-type]",
	Short: "Spread record dates and owners over seeded data",
	Long: `Seeded records all carry the submission timestamp and the seeding
user's id. Backfill rewrites the date column with timestamps spread
over a past window during business hours, and distributes ownership
round-robin across the given user ids. Runs for the named entity type,
or for every entity type with a configured table when --all is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		months, _ := cmd.Flags().GetInt("months")
		shuffle, _ := cmd.Flags().GetBool("shuffle")
		ownersFlag, _ := cmd.Flags().GetString("owners")

		if !all && len(args) == 0 {
			return fmt.Errorf("name an entity type or pass --all")
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}

		owners, err := parseOwnerIDs(ownersFlag)
		if err != nil {
			return err
		}
		if len(owners) == 0 {
			owners = []int{cfg.App.OwnerID}
		}

		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		backfiller := database.NewBackfiller(db, logger)

		types := args
		if all {
			types = nil
			for _, e := range cfg.Entities {
				if e.Seed.Table != "" {
					types = append(types, e.Type)
				}
			}
		}

		for _, entityType := range types {
			target := cfg.SeedTarget(entityType)
			if target == nil || target.Table == "" {
				return fmt.Errorf("no seed table configured for %q", entityType)
			}
			idCol := target.IDColumn
			if idCol == "" {
				idCol = "id"
			}

			dateCol, _ := cmd.Flags().GetString("date-column")
			rows, err := backfiller.BackfillDates(cmd.Context(), target.Table, idCol, dateCol, months, shuffle)
			if err != nil {
				return err
			}

			if target.OwnerColumn != "" {
				if _, err := backfiller.BackfillOwners(cmd.Context(), target.Table, idCol, target.OwnerColumn, owners); err != nil {
					return err
				}
			}

			color.Green("✓ %s: %d rows backfilled", entityType, rows)
		}
		return nil
	},
}

func parseOwnerIDs(flag string) ([]int, error) {
	if strings.TrimSpace(flag) == "" {
		return nil, nil
	}
	parts := strings.Split(flag, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid owner id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	backfillCmd.Flags().Bool("all", false, "backfill every entity type with a configured table")
	backfillCmd.Flags().Int("months", 6, "spread dates over this many past months")
	backfillCmd.Flags().Bool("shuffle", false, "randomize which row gets which timestamp")
	backfillCmd.Flags().String("date-column", "dateEntered", "date column to rewrite")
	backfillCmd.Flags().String("owners", "", "comma-separated user ids for round-robin ownership")
	rootCmd.AddCommand(backfillCmd)
}
