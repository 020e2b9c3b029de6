package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	notificationStore "academy/internal/adapters/storage/notification"
	outboxStore "academy/internal/adapters/storage/outbox"
	"academy/internal/application/agenda"
	"academy/internal/application/orchestrators"
	"academy/internal/domain/calendar"
	"academy/internal/domain/event"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON encodes v with the given status.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("response_encode_failed", zap.Error(err))
	}
}

// internalError logs the real error and returns a generic message to the client.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Error("internal_error", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

// writeError maps domain errors onto HTTP statuses:
// validation -> 422 with the field map, unknown id -> 404, duplicate id -> 409,
// anything else -> 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *event.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: verr.Error(), Fields: verr.Map()})
	case errors.Is(err, event.ErrInvalidType),
		errors.Is(err, event.ErrInvalidDate),
		errors.Is(err, calendar.ErrInvalidMonth),
		errors.Is(err, orchestrators.ErrInvalidRecurrence),
		errors.Is(err, orchestrators.ErrEmptySeries),
		errors.Is(err, agenda.ErrInvalidEvent):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, agenda.ErrNotFound),
		errors.Is(err, notificationStore.ErrNotFound),
		errors.Is(err, outboxStore.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: errors.Cause(err).Error()})
	case errors.Is(err, agenda.ErrDuplicateID),
		errors.Is(err, orchestrators.ErrTerminalEntry):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		h.internalError(w, r, err)
	}
}

// badRequest answers 400 with a message.
func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryList reads a repeated query parameter. Comma-separated values are split
// so ?group=a,b and ?group=a&group=b are equivalent.
func queryList(r *http.Request, name string) []string {
	var out []string
	for _, raw := range r.URL.Query()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// selection reads the group and subgroup filter from the query string.
func selection(r *http.Request) event.Selection {
	return event.Selection{Groups: queryList(r, "group"), Subgroups: queryList(r, "subgroup")}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSync picks up writes made by other contexts without waiting for the
// next poll, then answers with the events now held.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.PollNow(r.Context()); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"events": len(h.events.List())})
}
