package notification

import (
	"time"

	"github.com/pkg/errors"
)

// Recipient type constants.
const (
	TypeCoach  = "coach"
	TypePlayer = "player"
)

// Domain errors
var (
	ErrEmptyRecipient = errors.New("notification recipient is required")
	ErrEmptyEventID   = errors.New("notification event ID is required")
	ErrEmptyMessage   = errors.New("notification message cannot be empty")
	ErrInvalidType    = errors.New("notification type must be 'coach' or 'player'")
)

// Notification is a message addressed to one coach or player as a side effect of an
// event create or update. Only Read changes after creation.
type Notification struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	RecipientID   string    `json:"recipientId"`
	RecipientName string    `json:"recipientName"`
	Email         string    `json:"-"`
	EventID       string    `json:"eventId"`
	EventTitle    string    `json:"eventTitle"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
	Read          bool      `json:"read"`
}

// Validate checks if the Notification has valid data.
// PRE: Notification struct is populated
// POST: Returns nil if valid, error otherwise
func (n *Notification) Validate() error {
	if n.Type != TypeCoach && n.Type != TypePlayer {
		return ErrInvalidType
	}
	if n.RecipientID == "" {
		return ErrEmptyRecipient
	}
	if n.EventID == "" {
		return ErrEmptyEventID
	}
	if n.Message == "" {
		return ErrEmptyMessage
	}
	if n.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	return nil
}
