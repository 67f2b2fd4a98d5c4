package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seedforge/seedforge/pkg/config"
	"github.com/seedforge/seedforge/pkg/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "seedforge",
	Short: "Generate and seed realistic test data for business applications",
	Long: `seedforge produces themed, internally consistent test data with a
generation model and seeds it into a running application through the
application's own forms, so every record passes real validation.

Typical flow:
  seedforge up              start the local application stack
  seedforge generate --all  generate data files for every entity type
  seedforge seed --all      push the data files into the application
  seedforge backfill        spread record dates and owners afterwards`,

	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

// Execute runs the CLI.
func Execute() error {
	defer func() {
		if logger != nil {
			logger.Sync()
		}
	}()
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, args []string) error {
	// .env is optional; real deployments set the environment directly.
	godotenv.Load()

	var err error
	cfg, err = config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err = logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}
