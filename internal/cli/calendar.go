package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"academy/internal/application/projections"
)

var (
	calMonth     string
	calGroups    []string
	calSubgroups []string
	calCoach     string
	calJSON      bool
	calICS       bool
	calFrom      string
	calTo        string
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Print the agenda for a month",
	Long: `Print the filtered agenda for a month as a table or JSON, or export the
filtered events as an iCalendar document with --ics.

Filters combine with AND across --group, --subgroup and --coach and with OR
within a repeated flag.`,
	RunE: runCalendar,
}

func init() {
	calendarCmd.Flags().StringVar(&calMonth, "month", "", "month as YYYY-MM (default current month)")
	calendarCmd.Flags().StringSliceVar(&calGroups, "group", nil, "group id or name; repeatable")
	calendarCmd.Flags().StringSliceVar(&calSubgroups, "subgroup", nil, "subgroup id or name; repeatable")
	calendarCmd.Flags().StringVar(&calCoach, "coach", "", "only events assigned to this coach id")
	calendarCmd.Flags().BoolVar(&calJSON, "json", false, "Output in JSON format")
	calendarCmd.Flags().BoolVar(&calICS, "ics", false, "export as iCalendar instead of a month view")
	calendarCmd.Flags().StringVar(&calFrom, "from", "", "with --ics: first date, YYYY-MM-DD")
	calendarCmd.Flags().StringVar(&calTo, "to", "", "with --ics: last date, YYYY-MM-DD")
	rootCmd.AddCommand(calendarCmd)
}

func runCalendar(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	events, roster, err := a.readModels(cmd.Context())
	if err != nil {
		return err
	}
	defer events.Close()
	defer roster.Close()

	out := cmd.OutOrStdout()
	if calICS {
		doc, err := projections.QueryExportAgendaICS(cmd.Context(), projections.ExportAgendaICSQuery{
			Groups:    calGroups,
			Subgroups: calSubgroups,
			From:      calFrom,
			To:        calTo,
		}, projections.ExportAgendaICSDeps{Events: events, Roster: roster, Location: a.cfg.Location, Now: time.Now, Log: a.log})
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, doc)
		return err
	}

	view, err := projections.QueryGetAgendaMonth(cmd.Context(), projections.GetAgendaMonthQuery{
		Month:     calMonth,
		Groups:    calGroups,
		Subgroups: calSubgroups,
		CoachID:   calCoach,
	}, projections.GetAgendaMonthDeps{Events: events, Roster: roster, Now: time.Now, Location: a.cfg.Location})
	if err != nil {
		return err
	}

	if calJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return printMonth(out, view)
}

// printMonth lists the current month's events one per line.
func printMonth(out io.Writer, view projections.AgendaMonthView) error {
	fmt.Fprintf(out, "%s  (prev %s, next %s)\n\n", view.Month, view.PrevMonth, view.NextMonth)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tTYPE\tTITLE\tGROUPS\tLOCATION")
	listed := 0
	for _, day := range view.Days {
		if !day.IsCurrentMonth {
			continue
		}
		date := day.Date
		if day.IsToday {
			date += "*"
		}
		for _, ev := range day.Events {
			groups := strings.Join(append(append([]string{}, ev.AssignedGroups...), ev.AssignedSubgroups...), ",")
			if groups == "" {
				groups = ev.Group
			}
			fmt.Fprintf(w, "%s\t%s-%s\t%s\t%s\t%s\t%s\n", date, ev.StartTime, ev.EndTime, ev.Type, ev.Title, groups, ev.Location)
			listed++
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if listed == 0 {
		fmt.Fprintln(out, "\nNo events this month.")
	}
	return nil
}
