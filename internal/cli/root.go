// Package cli holds the academy command tree.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	buildVersion string

	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "academy",
	Short: "Football academy agenda service",
	Long: `academy schedules trainings, matches and meetings for the academy's
groups and subgroups, notifies the assigned coach and players, and serves the
agenda as JSON and iCalendar.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded when present")
}

// Execute runs the root command with the build version injected via ldflags.
func Execute(version string) error {
	buildVersion = version
	rootCmd.Version = version
	return rootCmd.Execute()
}
