package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"academy/internal/adapters/http/middleware"
	"academy/internal/application/listutil"
	"academy/internal/application/projections"
	"academy/internal/domain/outbox"
)

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		h.badRequest(w, "recipient is required")
		return
	}
	view, err := projections.QueryGetNotifications(r.Context(), projections.GetNotificationsQuery{
		RecipientID: recipient,
		Page:        listutil.ParsePageParams(r.URL.Query()),
	}, projections.GetNotificationsDeps{Notifications: h.notifications})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToasts returns the acting user's transient messages still visible.
func (h *Handler) handleToasts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.toaster.Active(middleware.ActorFrom(r.Context())))
}

func (h *Handler) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	h.toaster.Dismiss(middleware.ActorFrom(r.Context()), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// handleListOutbox lists outbox entries: ?status=failed (default) or ?status=pending.
func (h *Handler) handleListOutbox(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	var (
		entries []outbox.Entry
		err     error
	)
	switch r.URL.Query().Get("status") {
	case "", outbox.StatusFailed:
		entries, err = h.outbox.ListFailed(r.Context(), limit)
	case outbox.StatusPending:
		entries, err = h.outbox.ListPending(r.Context(), limit)
	default:
		h.badRequest(w, "status must be failed or pending")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []outbox.Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleRetryOutbox(w http.ResponseWriter, r *http.Request) {
	if err := h.outboxAdmin.ProcessSingle(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "retry triggered"})
}

func (h *Handler) handleAbandonOutbox(w http.ResponseWriter, r *http.Request) {
	if err := h.outboxAdmin.AbandonEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}
