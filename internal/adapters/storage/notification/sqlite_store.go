package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"academy/internal/adapters/storage"
	domain "academy/internal/domain/notification"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const selectColumns = `SELECT id, type, recipient_id, recipient_name, event_id, event_title, message, created_at, read FROM notification`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// Compile-time check that *SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SaveAll inserts a dispatch batch in one transaction.
// PRE: every notification has been validated
// POST: all or none are persisted
func (s *SQLiteStore) SaveAll(ctx context.Context, ns []domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin notification batch")
	}
	defer tx.Rollback()

	for _, n := range ns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notification (id, type, recipient_id, recipient_name, event_id, event_title, message, created_at, read)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Type, n.RecipientID, n.RecipientName, n.EventID, n.EventTitle, n.Message,
			n.Timestamp.UTC().Format(timeLayout), boolInt(n.Read))
		if err != nil {
			return errors.Wrapf(err, "insert notification %s", n.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit notification batch")
}

// GetByID retrieves a Notification by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Notification, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notification{}, ErrNotFound
	}
	return n, err
}

// ListByRecipient retrieves notifications addressed to the recipient, newest first.
func (s *SQLiteStore) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE recipient_id = ? ORDER BY created_at DESC, id`, recipientID)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications by recipient")
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ListByEvent retrieves notifications produced for an event in dispatch order.
func (s *SQLiteStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE event_id = ? ORDER BY created_at, rowid`, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications by event")
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// MarkRead flags a notification as read.
// POST: returns ErrNotFound if no row matched
func (s *SQLiteStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notification SET read = 1 WHERE id = ?`, id)
	return affectedOne(res, err, id)
}

// Delete removes a notification.
// POST: returns ErrNotFound if no row matched
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notification WHERE id = ?`, id)
	return affectedOne(res, err, id)
}

// CountUnread counts unread notifications for a recipient.
func (s *SQLiteStore) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification WHERE recipient_id = ? AND read = 0`, recipientID).Scan(&count)
	return count, errors.Wrap(err, "count unread notifications")
}

func affectedOne(res sql.Result, err error, id string) error {
	if err != nil {
		return errors.Wrapf(err, "notification %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "notification %s", id)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (domain.Notification, error) {
	var n domain.Notification
	var createdAt string
	var read int
	err := row.Scan(&n.ID, &n.Type, &n.RecipientID, &n.RecipientName, &n.EventID, &n.EventTitle,
		&n.Message, &createdAt, &read)
	if err != nil {
		return domain.Notification{}, err
	}
	n.Timestamp, _ = time.Parse(timeLayout, createdAt)
	n.Read = read != 0
	return n, nil
}

func scanNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	out := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
