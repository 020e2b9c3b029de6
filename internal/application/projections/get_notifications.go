package projections

import (
	"context"

	"github.com/pkg/errors"

	"academy/internal/application/listutil"
	"academy/internal/domain/notification"
)

// GetNotificationsQuery selects a recipient's inbox page.
type GetNotificationsQuery struct {
	RecipientID string
	Page        listutil.PageParams // zero value is the first page
}

// NotificationsView is one page of a recipient's inbox.
type NotificationsView struct {
	RecipientID string                      `json:"recipientId"`
	Items       []notification.Notification `json:"items"`
	Unread      int                         `json:"unread"` // across all pages
	Page        listutil.PageInfo           `json:"page"`
}

// GetNotificationsDeps holds dependencies for the projection.
type GetNotificationsDeps struct {
	Notifications NotificationReader
}

// QueryGetNotifications returns a page of the recipient's notifications, newest first.
// PRE: q.RecipientID is non-empty
func QueryGetNotifications(ctx context.Context, q GetNotificationsQuery, deps GetNotificationsDeps) (NotificationsView, error) {
	recipientID := q.RecipientID
	if recipientID == "" {
		return NotificationsView{}, errors.New("recipient is required")
	}
	items, err := deps.Notifications.ListByRecipient(ctx, recipientID)
	if err != nil {
		return NotificationsView{}, err
	}
	unread, err := deps.Notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return NotificationsView{}, err
	}
	page, info := listutil.Paginate(items, q.Page)
	return NotificationsView{RecipientID: recipientID, Items: page, Unread: unread, Page: info}, nil
}
