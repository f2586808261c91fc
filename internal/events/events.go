// Package events fans out feed events to WebSocket subscribers. Delivery is
// fire and forget: a slow subscriber is disconnected rather than allowed to
// apply backpressure to the publishing path.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Type identifies what happened to a post.
type Type string

const (
	TypePostNew        Type = "post:new"
	TypePostUpdated    Type = "post:updated"
	TypePostExpired    Type = "post:expired"
	TypePostNearby     Type = "post:nearby"
	TypeVendorLocation Type = "vendor:location"
)

// Event is a single feed notification.
type Event struct {
	Type      Type            `json:"type"`
	PostID    string          `json:"post_id"`
	Category  string          `json:"category,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher delivers events to interested subscribers.
type Publisher interface {
	Publish(ev Event)
}

// Recorder collects published events for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Publisher = (*Recorder)(nil)

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType filters recorded events.
func (r *Recorder) ByType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

var _ Publisher = NoopPublisher{}

func (NoopPublisher) Publish(Event) {}
