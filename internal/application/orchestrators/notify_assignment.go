package orchestrators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"academy/internal/application/agenda"
	"academy/internal/domain/event"
	"academy/internal/domain/notification"
	"academy/internal/domain/outbox"
)

// RosterSource supplies the current players and coaches.
type RosterSource interface {
	Snapshot() agenda.Snapshot
}

// NotificationSaver persists a dispatch batch.
type NotificationSaver interface {
	SaveAll(ctx context.Context, ns []notification.Notification) error
}

// OutboxSaver enqueues external deliveries.
type OutboxSaver interface {
	Save(ctx context.Context, e outbox.Entry) error
}

// NotifyAssignmentDeps holds dependencies for NotifyAssignment.
type NotifyAssignmentDeps struct {
	Roster        RosterSource
	Notifications NotificationSaver
	Outbox        OutboxSaver // optional; nil disables email forwarding
	GenerateID    func() string
	Now           func() time.Time
	Log           *zap.Logger
}

// ExecuteNotifyAssignment fans an event out to its coach and audience, stores the
// notifications and queues an email for every recipient with an address.
// Unresolvable recipients are logged and skipped. Queueing failures are logged:
// the in-app notification already exists.
// PRE: ev has an ID
// POST: returns the stored notifications
func ExecuteNotifyAssignment(ctx context.Context, ev event.Event, deps NotifyAssignmentDeps) ([]notification.Notification, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	snap := deps.Roster.Snapshot()
	res := notification.Dispatch(ev, snap.Coaches, snap.Players, notification.DispatchOptions{
		GenerateID: deps.GenerateID,
		Now:        deps.Now,
	})
	for _, s := range res.Skipped {
		log.Info("notification_dispatch_skipped", zap.String("event_id", ev.ID), zap.String("recipient_id", s.RecipientID), zap.String("reason", s.Reason))
	}
	if len(res.Notifications) == 0 {
		return res.Notifications, nil
	}

	if err := deps.Notifications.SaveAll(ctx, res.Notifications); err != nil {
		return nil, errors.Wrapf(err, "save notifications for event %s", ev.ID)
	}
	log.Info("notifications_dispatched", zap.String("event_id", ev.ID), zap.Int("count", len(res.Notifications)))

	if deps.Outbox == nil {
		return res.Notifications, nil
	}
	for _, n := range res.Notifications {
		if n.Email == "" {
			continue
		}
		entry, err := outbox.NewEmailEntry(deps.GenerateID(), outbox.EmailPayload{
			NotificationID: n.ID,
			EventID:        ev.ID,
			To:             n.Email,
			RecipientName:  n.RecipientName,
			Subject:        n.Message,
			Markdown:       emailBody(n, ev),
		}, deps.Now())
		if err == nil {
			err = deps.Outbox.Save(ctx, entry)
		}
		if err != nil {
			log.Warn("notification_email_enqueue_failed", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return res.Notifications, nil
}

// AssignmentDispatcher adapts ExecuteNotifyAssignment to the EventStore hook.
func AssignmentDispatcher(deps NotifyAssignmentDeps) agenda.Dispatcher {
	return agenda.DispatchFunc(func(ctx context.Context, ev event.Event) error {
		_, err := ExecuteNotifyAssignment(ctx, ev, deps)
		return err
	})
}

// emailBody renders the markdown body of a notification email.
func emailBody(n notification.Notification, ev event.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n%s.\n\n", n.RecipientName, n.Message)
	fmt.Fprintf(&b, "- **When:** %s, %s to %s\n", ev.Date, ev.StartTime, ev.EndTime)
	if ev.Location != "" {
		fmt.Fprintf(&b, "- **Where:** %s\n", ev.Location)
	}
	fmt.Fprintf(&b, "- **Type:** %s (%s)\n", ev.Type, ev.SubType)
	if ev.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", ev.Description)
	}
	return b.String()
}
