package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"academy/internal/application/orchestrators"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the roster from a YAML file",
	Long: `Replace the stored players and coaches with the contents of a YAML roster
file and refresh the derived groups. Use --file - to read from stdin.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "roster.yaml", "roster file, or - for stdin")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if seedFile != "-" {
		f, err := os.Open(seedFile)
		if err != nil {
			return errors.Wrap(err, "open roster file")
		}
		defer f.Close()
		r = f
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := orchestrators.ExecuteSeedRoster(cmd.Context(), r, orchestrators.SeedRosterDeps{KV: a.kv, Log: a.log})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d players, %d coaches, %d groups.\n", res.Players, res.Coaches, len(res.Groups))
	return nil
}
