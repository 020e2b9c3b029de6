package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"academy/internal/adapters/http/middleware"
	"academy/internal/adapters/http/perf"
	notificationStore "academy/internal/adapters/storage/notification"
	outboxStore "academy/internal/adapters/storage/outbox"
	"academy/internal/application/agenda"
	"academy/internal/domain/event"
)

// EventService is the EventStore surface the API drives.
type EventService interface {
	List() []event.Event
	Get(id string) (event.Event, error)
	Create(ctx context.Context, ev event.Event) (event.Event, error)
	Update(ctx context.Context, ev event.Event) (event.Event, error)
	Delete(ctx context.Context, id string) error
}

// RosterSource supplies the current roster snapshot.
type RosterSource interface {
	Snapshot() agenda.Snapshot
}

// OutboxAdmin retries or abandons outbox entries on request.
type OutboxAdmin interface {
	ProcessSingle(ctx context.Context, entryID string) error
	AbandonEntry(ctx context.Context, entryID string) error
}

// Syncer re-reads shared state that another context may have written.
type Syncer interface {
	PollNow(ctx context.Context) error
}

// Deps holds everything the router needs.
type Deps struct {
	Events        EventService
	Roster        RosterSource
	Notifications notificationStore.Store
	Outbox        outboxStore.Store
	OutboxAdmin   OutboxAdmin
	Toaster       *agenda.Toaster
	Sync          Syncer // optional; enables POST /api/sync
	Collector     *perf.Collector
	Log           *zap.Logger
	Location      *time.Location // academy timezone
	Now           func() time.Time
	GenerateID    func() string // series ids

	CSRFKey            []byte // 32 bytes
	Secure             bool   // cookies and CSRF over TLS only
	TrustedOrigins     []string
	RateLimitPerSecond int
	SlowRequest        time.Duration
}

// Handler serves the agenda API.
type Handler struct {
	events        EventService
	roster        RosterSource
	notifications notificationStore.Store
	outbox        outboxStore.Store
	outboxAdmin   OutboxAdmin
	toaster       *agenda.Toaster
	sync          Syncer
	log           *zap.Logger
	location      *time.Location
	now           func() time.Time
	generateID    func() string
}

// DefaultRateLimitPerSecond is used when Deps.RateLimitPerSecond is unset.
const DefaultRateLimitPerSecond = 10

// NewRouter wires the API routes and middleware. The returned stop func releases
// the rate limiter's sweeper.
// Middleware order, outer to inner: Recoverer -> Timing -> SecurityHeaders ->
// RateLimit -> CSRF -> Actor.
func NewRouter(deps Deps) (http.Handler, func()) {
	h := &Handler{
		events:        deps.Events,
		roster:        deps.Roster,
		notifications: deps.Notifications,
		outbox:        deps.Outbox,
		outboxAdmin:   deps.OutboxAdmin,
		toaster:       deps.Toaster,
		sync:          deps.Sync,
		log:           deps.Log,
		location:      deps.Location,
		now:           deps.Now,
		generateID:    deps.GenerateID,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.location == nil {
		h.location = time.UTC
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.toaster == nil {
		h.toaster = agenda.NewToaster(0)
	}

	rate := deps.RateLimitPerSecond
	if rate <= 0 {
		rate = DefaultRateLimitPerSecond
	}
	limiter := middleware.NewRateLimiter(rate, time.Second, h.log)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Timing(deps.Collector, h.log, deps.SlowRequest))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RateLimit(limiter))
	r.Use(middleware.CSRF(deps.CSRFKey, deps.Secure, deps.TrustedOrigins))
	r.Use(middleware.Actor)

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Route("/events", func(er chi.Router) {
			er.Get("/", h.handleListEvents)
			er.Post("/", h.handleCreateEvent)
			er.Post("/series", h.handleCreateSeries)
			er.Get("/{id}", h.handleGetEvent)
			er.Put("/{id}", h.handleUpdateEvent)
			er.Delete("/{id}", h.handleDeleteEvent)
		})

		api.Get("/calendar", h.handleCalendar)
		api.Get("/calendar.ics", h.handleCalendarICS)
		api.Get("/groups", h.handleGroups)

		api.Route("/notifications", func(nr chi.Router) {
			nr.Get("/", h.handleListNotifications)
			nr.Post("/{id}/read", h.handleMarkNotificationRead)
			nr.Delete("/{id}", h.handleDeleteNotification)
		})

		if h.sync != nil {
			api.Post("/sync", h.handleSync)
		}

		api.Get("/toasts", h.handleToasts)
		api.Delete("/toasts/{id}", h.handleDismissToast)

		if h.outbox != nil && h.outboxAdmin != nil {
			api.Route("/outbox", func(or chi.Router) {
				or.Get("/", h.handleListOutbox)
				or.Post("/{id}/retry", h.handleRetryOutbox)
				or.Post("/{id}/abandon", h.handleAbandonOutbox)
			})
		}
	})

	return r, limiter.Close
}
