package web

import (
	"net/http"

	"academy/internal/application/projections"
)

// handleCalendar returns the month grid for ?month=YYYY-MM (default: this month).
func (h *Handler) handleCalendar(w http.ResponseWriter, r *http.Request) {
	sel := selection(r)
	view, err := projections.QueryGetAgendaMonth(r.Context(), projections.GetAgendaMonthQuery{
		Month:     r.URL.Query().Get("month"),
		Groups:    sel.Groups,
		Subgroups: sel.Subgroups,
		CoachID:   r.URL.Query().Get("coach"),
	}, projections.GetAgendaMonthDeps{
		Events:   h.events,
		Roster:   h.roster,
		Now:      h.now,
		Location: h.location,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// handleCalendarICS exports the filtered agenda, optionally bounded by ?from= and ?to=.
func (h *Handler) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	sel := selection(r)
	body, err := projections.QueryExportAgendaICS(r.Context(), projections.ExportAgendaICSQuery{
		Groups:    sel.Groups,
		Subgroups: sel.Subgroups,
		From:      r.URL.Query().Get("from"),
		To:        r.URL.Query().Get("to"),
	}, projections.ExportAgendaICSDeps{
		Events:   h.events,
		Roster:   h.roster,
		Location: h.location,
		Now:      h.now,
		Log:      h.log,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="academy.ics"`)
	_, _ = w.Write([]byte(body))
}

// handleGroups lists the derived groups; ?by=name selects the palette variant.
func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	view := projections.QueryGetGroups(r.URL.Query().Get("by") == "name", projections.GetGroupsDeps{Roster: h.roster})
	if view.ByName != nil {
		h.writeJSON(w, http.StatusOK, view.ByName)
		return
	}
	h.writeJSON(w, http.StatusOK, view.ByID)
}
