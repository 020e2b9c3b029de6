package kv

import (
	"sync"

	"go.uber.org/zap"
)

// mailboxSize bounds the changes queued for one slow subscriber. Overflow is dropped;
// the poller re-reads the collection on its next tick.
const mailboxSize = 64

type subscription struct {
	origin string
	key    string
	fn     func(Change)
	box    chan Change
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscription) run() {
	for {
		select {
		case c := <-s.box:
			s.fn(c)
		case <-s.done:
			return
		}
	}
}

// Hub fans a write out to the subscribers of every other context.
// Each subscriber has its own goroutine so callbacks may take their owner's locks
// without deadlocking against the writer.
type Hub struct {
	mu   sync.Mutex
	subs map[string][]*subscription
	log  *zap.Logger
}

// NewHub returns an empty hub. A nil logger discards drop warnings.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[string][]*subscription), log: log}
}

// Subscribe registers fn for changes to key written by any context but origin.
func (h *Hub) Subscribe(origin, key string, fn func(Change)) func() {
	s := &subscription{
		origin: origin,
		key:    key,
		fn:     fn,
		box:    make(chan Change, mailboxSize),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[key] = append(h.subs[key], s)
	h.mu.Unlock()
	go s.run()

	return func() {
		h.mu.Lock()
		list := h.subs[key]
		for i, cur := range list {
			if cur == s {
				h.subs[key] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
		h.mu.Unlock()
		s.stop()
	}
}

// Publish queues c for every subscriber of c.Key outside c.Origin.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	targets := make([]*subscription, 0, len(h.subs[c.Key]))
	for _, s := range h.subs[c.Key] {
		if s.origin != c.Origin {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		select {
		case s.box <- c:
		default:
			h.log.Warn("kv_change_dropped",
				zap.String("key", c.Key),
				zap.String("subscriber", s.origin),
				zap.Int64("version", c.Version))
		}
	}
}

// Close stops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string][]*subscription)
	h.mu.Unlock()
	for _, list := range all {
		for _, s := range list {
			s.stop()
		}
	}
}
