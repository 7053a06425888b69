// Package events emits run and endpoint state changes to interested systems.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	TypeRunState      = "run.state"
	TypeEndpointState = "endpoint.state"
)

// Event is one state change. It is serialized as JSON.
type Event struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Version    string    `json:"version"`
	Endpoint   string    `json:"endpoint,omitempty"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Notifier delivers events. Delivery failures never change a run's outcome.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) error { return nil }
func (Discard) Close() error { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Notify(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
