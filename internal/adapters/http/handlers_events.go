package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"academy/internal/adapters/http/middleware"
	"academy/internal/application/agenda"
	"academy/internal/application/orchestrators"
	"academy/internal/domain/event"
)

// seriesRequest is an event draft plus the rule that repeats it.
type seriesRequest struct {
	event.Draft
	Recurrence string `json:"recurrence"`
}

// handleListEvents returns the events matching ?group= and ?subgroup=.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	sel := selection(r)
	events := event.Filter(h.events.List(), sel, h.roster.Snapshot().Directory)
	h.writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.events.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ev)
}

// handleCreateEvent submits a new event form.
func (h *Handler) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var draft event.Draft
	if err := strictDecode(w, r, &draft); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	saved, err := orchestrators.ExecuteSubmitEvent(r.Context(), orchestrators.SubmitEventInput{
		Draft:   draft,
		ActorID: middleware.ActorFrom(r.Context()),
	}, h.submitDeps())
	if err != nil {
		h.toast(r, agenda.ToastError, "Could not create the event")
		h.writeError(w, r, err)
		return
	}
	h.toast(r, agenda.ToastSuccess, "Event created")
	h.writeJSON(w, http.StatusCreated, saved)
}

// handleUpdateEvent submits an edit of an existing event.
func (h *Handler) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var draft event.Draft
	if err := strictDecode(w, r, &draft); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	saved, err := orchestrators.ExecuteSubmitEvent(r.Context(), orchestrators.SubmitEventInput{
		Draft:     draft,
		EditingID: chi.URLParam(r, "id"),
		ActorID:   middleware.ActorFrom(r.Context()),
	}, h.submitDeps())
	if err != nil {
		h.toast(r, agenda.ToastError, "Could not update the event")
		h.writeError(w, r, err)
		return
	}
	h.toast(r, agenda.ToastSuccess, "Event updated")
	h.writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.toast(r, agenda.ToastError, "Could not delete the event")
		h.writeError(w, r, err)
		return
	}
	h.toast(r, agenda.ToastSuccess, "Event deleted")
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateSeries creates one event per occurrence of the recurrence rule.
// A failure part way through answers with the error; the events already created
// stay and are listed in the log.
func (h *Handler) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req seriesRequest
	if err := strictDecode(w, r, &req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	generateID := h.generateID
	if generateID == nil {
		generateID = uuid.NewString
	}
	created, err := orchestrators.ExecuteCreateSeries(r.Context(), orchestrators.CreateSeriesInput{
		Draft:      req.Draft,
		Recurrence: req.Recurrence,
		ActorID:    middleware.ActorFrom(r.Context()),
	}, orchestrators.CreateSeriesDeps{
		Events:     h.events,
		Roster:     h.roster,
		GenerateID: generateID,
		Log:        h.log,
	})
	if err != nil {
		if len(created) > 0 {
			h.log.Warn("series_partially_created", zap.Int("created", len(created)), zap.String("series_id", created[0].SeriesID))
		}
		h.toast(r, agenda.ToastError, "Could not create the training series")
		h.writeError(w, r, err)
		return
	}
	h.toast(r, agenda.ToastSuccess, "Training series created")
	h.writeJSON(w, http.StatusCreated, created)
}

// toast shows a message to the acting user only.
func (h *Handler) toast(r *http.Request, level, message string) {
	h.toaster.Push(middleware.ActorFrom(r.Context()), level, message)
}

func (h *Handler) submitDeps() orchestrators.SubmitEventDeps {
	return orchestrators.SubmitEventDeps{Events: h.events, Roster: h.roster, Log: h.log}
}
