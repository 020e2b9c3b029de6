package notification

import (
	"context"

	"github.com/pkg/errors"

	domain "academy/internal/domain/notification"
)

// ErrNotFound is returned when no notification has the requested id.
var ErrNotFound = errors.New("notification not found")

// Store persists Notification records.
type Store interface {
	// SaveAll inserts a dispatch batch atomically.
	// PRE: every notification has been validated
	// POST: all or none are persisted
	SaveAll(ctx context.Context, ns []domain.Notification) error

	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (domain.Notification, error)

	// ListByRecipient returns the recipient's notifications, newest first.
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error)

	// ListByEvent returns every notification produced for the event.
	ListByEvent(ctx context.Context, eventID string) ([]domain.Notification, error)

	// MarkRead sets the read flag; ErrNotFound for unknown ids.
	MarkRead(ctx context.Context, id string) error

	// Delete removes one notification; ErrNotFound for unknown ids.
	Delete(ctx context.Context, id string) error

	// CountUnread counts the recipient's unread notifications.
	CountUnread(ctx context.Context, recipientID string) (int, error)
}
