package counter

import (
	"encoding/json"
	"time"
)

// EventKind names a lifecycle transition of a widget.
type EventKind string

const (
	EventMount   EventKind = "mount"
	EventRender  EventKind = "render"
	EventUpdate  EventKind = "update"
	EventVeto    EventKind = "veto"
	EventUnmount EventKind = "unmount"
)

// Event is the diagnostic record published for every lifecycle transition.
type Event struct {
	Widget   string    `json:"widget"`
	Kind     EventKind `json:"kind"`
	Previous *State    `json:"previous,omitempty"`
	Next     *State    `json:"next,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is the subset of a pub/sub backend a widget needs.
// *live.Context and every live.PubSub satisfy it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Subject returns the pub/sub subject lifecycle events of widget id are published on.
func Subject(id string) string {
	return "lifecycle.counter." + id
}

func (w *Widget) emit(kind EventKind, prev, next *State) {
	evt := w.logger.Debug().Str("event", string(kind))
	if prev != nil {
		evt = evt.Int("previous", prev.Counter)
	}
	if next != nil {
		evt = evt.Int("next", next.Counter)
	}
	evt.Msg("lifecycle")
	w.metrics.observe(kind)

	if w.events == nil {
		return
	}
	data, err := json.Marshal(Event{
		Widget:   w.id,
		Kind:     kind,
		Previous: prev,
		Next:     next,
		At:       time.Now().UTC(),
	})
	if err != nil {
		w.logger.Error().Err(err).Msg("encode lifecycle event")
		return
	}
	if err := w.events.Publish(Subject(w.id), data); err != nil {
		w.logger.Warn().Err(err).Str("event", string(kind)).Msg("publish lifecycle event")
	}
}
