package cmd

import (
	"os"
	"os/exec"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// upCmd and downCmd wrap the docker compose stack the seeded application
// runs in locally.
var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the local application stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if err := runCompose(dir, "up", "-d"); err != nil {
			return err
		}
		color.Green("✓ stack is up")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the local application stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		if err := runCompose(dir, "down"); err != nil {
			return err
		}
		color.Green("✓ stack is down")
		return nil
	},
}

func runCompose(dir string, args ...string) error {
	compose := exec.Command("docker", append([]string{"compose"}, args...)...)
	compose.Dir = dir
	compose.Stdout = os.Stdout
	compose.Stderr = os.Stderr
	return compose.Run()
}

func init() {
	upCmd.Flags().String("dir", "docker", "directory holding the compose file")
	downCmd.Flags().String("dir", "docker", "directory holding the compose file")
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
}
