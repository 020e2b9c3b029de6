package projections

import (
	"context"

	"academy/internal/application/agenda"
	"academy/internal/domain/event"
	"academy/internal/domain/notification"
)

// EventLister reads the canonical event collection.
type EventLister interface {
	List() []event.Event
}

// RosterSource supplies the current roster and its derived groups.
type RosterSource interface {
	Snapshot() agenda.Snapshot
}

// NotificationReader interface for notification queries.
type NotificationReader interface {
	ListByRecipient(ctx context.Context, recipientID string) ([]notification.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}
