package cli

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"academy/internal/application/agenda"
	"academy/internal/application/projections"
)

var groupsByName bool

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Print the groups derived from the roster as JSON",
	RunE:  runGroups,
}

func init() {
	groupsCmd.Flags().BoolVar(&groupsByName, "by-name", false, "key groups by display name with palette colors")
	rootCmd.AddCommand(groupsCmd)
}

func runGroups(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	roster, err := agenda.NewRosterView(cmd.Context(), a.kv, a.log)
	if err != nil {
		return errors.Wrap(err, "load roster")
	}
	defer roster.Close()

	view := projections.QueryGetGroups(groupsByName, projections.GetGroupsDeps{Roster: roster})
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
