package agenda

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultToastTTL is how long a toast stays visible.
const DefaultToastTTL = 4 * time.Second

// Toast levels
const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"
)

// Toast is a transient user-visible message.
type Toast struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Toaster holds each actor's toasts until their TTL elapses. Expiry is
// cosmetic: nothing depends on a toast being removed at an exact instant.
type Toaster struct {
	mu     sync.Mutex
	ttl    time.Duration
	toasts map[string][]Toast
	timers map[string]*time.Timer
	now    func() time.Time
}

// NewToaster creates a toaster; ttl <= 0 uses DefaultToastTTL.
func NewToaster(ttl time.Duration) *Toaster {
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	return &Toaster{ttl: ttl, toasts: map[string][]Toast{}, timers: map[string]*time.Timer{}, now: time.Now}
}

// Push adds a toast for actor and schedules its removal.
// POST: the toast is listed for actor only, until TTL elapses or Dismiss is called
func (t *Toaster) Push(actor, level, message string) Toast {
	toast := Toast{ID: uuid.NewString(), Level: level, Message: message, CreatedAt: t.now()}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.toasts[actor] = append(t.toasts[actor], toast)
	t.timers[toast.ID] = time.AfterFunc(t.ttl, func() { t.Dismiss(actor, toast.ID) })
	return toast
}

// Dismiss removes one of actor's toasts before its TTL. Ids of other actors
// are ignored.
func (t *Toaster) Dismiss(actor, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.toasts[actor]
	for i, toast := range list {
		if toast.ID != id {
			continue
		}
		if timer, ok := t.timers[id]; ok {
			timer.Stop()
			delete(t.timers, id)
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(t.toasts, actor)
		} else {
			t.toasts[actor] = list
		}
		return
	}
}

// Active returns actor's toasts still visible, oldest first.
func (t *Toaster) Active(actor string) []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast{}, t.toasts[actor]...)
}

// Close cancels every pending removal.
func (t *Toaster) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
