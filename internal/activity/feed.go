package activity

import (
	"context"
	"sync"
	"time"

	"optibid.com/internal/auth"
)

// Event types published on the feed.
const (
	TypeLoginSucceeded = "login.succeeded"
	TypeLoginFailed    = "login.failed"
)

const defaultCapacity = 256

// Event is one security-relevant action shown in the activity view.
type Event struct {
	Type        string    `json:"type"`
	Email       string    `json:"email"`
	PrincipalID string    `json:"principal_id,omitempty"`
	RemoteIP    string    `json:"remote_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Feed keeps a bounded history of events and fan-outs new ones to
// subscribers (SSE clients).
type Feed struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int

	ring  []Event
	head  int
	count int
}

// New returns a feed retaining the last capacity events; capacity <= 0 uses
// the default.
func New(capacity int) *Feed {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Feed{
		subs: make(map[int]chan Event),
		ring: make([]Event, capacity),
	}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (f *Feed) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)

	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(ch)
		f.mu.Unlock()
	}()

	return ch
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish records the event and fan-outs it to all subscribers without blocking.
func (f *Feed) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ring[f.head] = evt
	f.head = (f.head + 1) % len(f.ring)
	if f.count < len(f.ring) {
		f.count++
	}
	for _, ch := range f.subs {
		select {
		case ch <- evt:
		default:
			// slow subscriber, drop
		}
	}
}

// Recent returns up to limit events for email, newest first. An empty email
// matches every event.
func (f *Feed) Recent(email string, limit int) []Event {
	email = auth.NormalizeEmail(email)
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > f.count {
		limit = f.count
	}
	out := make([]Event, 0, limit)
	for i := 1; i <= f.count && len(out) < limit; i++ {
		evt := f.ring[(f.head-i+len(f.ring))%len(f.ring)]
		if email != "" && evt.Email != email {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// ObserveLogin turns a login attempt into a feed event.
func (f *Feed) ObserveLogin(_ context.Context, attempt auth.LoginAttempt) {
	evt := Event{
		Type:        TypeLoginFailed,
		Email:       attempt.Email,
		PrincipalID: attempt.PrincipalID,
		RemoteIP:    attempt.Client.IP,
		UserAgent:   attempt.Client.UserAgent,
		Reason:      attempt.Reason,
		Timestamp:   attempt.At,
	}
	if attempt.Success {
		evt.Type = TypeLoginSucceeded
	}
	f.Publish(evt)
}

var _ auth.LoginObserver = (*Feed)(nil)
