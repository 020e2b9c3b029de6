package notification

import (
	"fmt"
	"time"

	"academy/internal/domain/event"
	"academy/internal/domain/group"
	"academy/internal/domain/roster"
)

// Message templates.
const (
	coachTemplate  = "You have been assigned to %s on %s"
	playerTemplate = "You have been invited to %s on %s"
)

// DispatchOptions injects the id and clock sources.
type DispatchOptions struct {
	GenerateID func() string
	Now        func() time.Time
}

// Skip records a recipient that could not be resolved. Skips are never fatal.
type Skip struct {
	RecipientID string
	Reason      string
}

// Result is the output of Dispatch.
type Result struct {
	Notifications []Notification
	Skipped       []Skip
}

// Dispatch computes the audience of ev and emits one notification per recipient:
// the assigned coach when known, then every player in the event's audience
// (see event.Event.Includes), each player at most once.
// PRE: opts.GenerateID and opts.Now are non-nil
// POST: every notification is unread and stamped with the same dispatch time
func Dispatch(ev event.Event, coaches []roster.Coach, players []roster.Player, opts DispatchOptions) Result {
	now := opts.Now().UTC()
	res := Result{Notifications: []Notification{}}

	if ev.CoachID != "" {
		if c, ok := roster.FindCoach(coaches, ev.CoachID); ok {
			res.Notifications = append(res.Notifications, Notification{
				ID:            opts.GenerateID(),
				Type:          TypeCoach,
				RecipientID:   c.ID,
				RecipientName: c.Name,
				Email:         c.Email,
				EventID:       ev.ID,
				EventTitle:    ev.Title,
				Message:       fmt.Sprintf(coachTemplate, ev.Title, ev.Date),
				Timestamp:     now,
			})
		} else {
			res.Skipped = append(res.Skipped, Skip{RecipientID: ev.CoachID, Reason: "unknown coach"})
		}
	}

	dir := group.NewDirectory(players)
	seen := make(map[string]bool, len(players))
	for _, p := range players {
		if p.ID == "" || seen[p.ID] || !ev.Includes(p, dir) {
			continue
		}
		seen[p.ID] = true
		res.Notifications = append(res.Notifications, Notification{
			ID:            opts.GenerateID(),
			Type:          TypePlayer,
			RecipientID:   p.ID,
			RecipientName: p.Name,
			Email:         p.Email,
			EventID:       ev.ID,
			EventTitle:    ev.Title,
			Message:       fmt.Sprintf(playerTemplate, ev.Title, ev.Date),
			Timestamp:     now,
		})
	}

	c := ev.Canonical(dir)
	for _, g := range c.AssignedGroups {
		if _, ok := dir.Resolve(g); !ok {
			res.Skipped = append(res.Skipped, Skip{RecipientID: g, Reason: "unknown group"})
		}
	}
	return res
}
