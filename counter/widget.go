// Package counter provides a counter widget: an integer that two buttons move up
// and down, rendered through an update lifecycle with a pluggable gate.
//
// Every proposal made by Increment or Decrement is stored. The gate only decides
// whether the widget re-renders and fires OnUpdated, so a vetoing gate can leave
// the displayed counter behind the stored one.
package counter

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/ryanhamamura/live/h"
	"github.com/ryanhamamura/live/lifecycle"
)

// Hooks are the notifications a widget fires. All are optional.
type Hooks struct {
	// OnMount fires once, after the first render.
	OnMount func()
	// OnUpdated fires after the render of every applied change.
	OnUpdated func(previous, next State)
	// OnUnmount fires once when a mounted widget is disposed.
	OnUnmount func(final State)
}

// Option configures a Widget.
type Option func(*Widget)

// WithID overrides the random widget id.
func WithID(id string) Option {
	return func(w *Widget) {
		if id != "" {
			w.id = id
		}
	}
}

// WithGate sets the function deciding whether a proposed change is rendered.
// nil keeps AlwaysApply.
func WithGate(g lifecycle.Gate[State]) Option {
	return func(w *Widget) {
		if g != nil {
			w.gate = g
		}
	}
}

// WithHooks sets the lifecycle notifications.
func WithHooks(hooks Hooks) Option {
	return func(w *Widget) { w.hooks = hooks }
}

// WithLogger sets the logger lifecycle transitions are written to.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// WithMetrics counts the widget's lifecycle transitions in m.
func WithMetrics(m *Metrics) Option {
	return func(w *Widget) { w.metrics = m }
}

// WithEvents publishes every lifecycle transition as a JSON Event on Subject(id).
func WithEvents(p Publisher) Option {
	return func(w *Widget) { w.events = p }
}

// WithKeys binds keyboard keys to Increment and Decrement while the page has
// focus. An empty key leaves that direction to its button only.
// See https://developer.mozilla.org/en-US/docs/Web/API/KeyboardEvent/key
func WithKeys(inc, dec string) Option {
	return func(w *Widget) { w.incKey, w.decKey = inc, dec }
}

// Widget holds one counter and renders it as a heading with the message prop,
// a paragraph with the counter and a "+" and a "-" button.
type Widget struct {
	id      string
	gate    lifecycle.Gate[State]
	hooks   Hooks
	logger  zerolog.Logger
	events  Publisher
	metrics *Metrics
	machine *lifecycle.Machine[State]

	incKey, decKey string

	mu        sync.RWMutex
	message   string
	tree      h.H
	displayed State
	rendered  bool
	inc, dec  h.H
	push      func()
}

// New creates an unmounted widget with counter 0.
func New(message string, opts ...Option) *Widget {
	w := &Widget{
		id:      genID(),
		gate:    AlwaysApply,
		logger:  zerolog.Nop(),
		message: message,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.logger = w.logger.With().Str("widget", w.id).Logger()
	w.machine = lifecycle.New(State{}, w.render, lifecycle.Hooks[State]{
		OnMount:           w.onMount,
		ShouldApplyUpdate: w.shouldApply,
		OnUpdated:         w.onUpdated,
		OnUnmount:         w.onUnmount,
	}, lifecycle.Options{Name: "counter", Logger: &w.logger})
	return w
}

// ID returns the widget id.
func (w *Widget) ID() string { return w.id }

// Message returns the message prop.
func (w *Widget) Message() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.message
}

// SetMessage replaces the message prop. It is read on the next render; setting
// it does not render by itself.
func (w *Widget) SetMessage(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.message = message
}

// Bind attaches host controls to the widget: inc and dec are attributes added to
// the "+" and "-" buttons, push is called after every render following the first.
func (w *Widget) Bind(inc, dec h.H, push func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inc, w.dec, w.push = inc, dec, push
}

// Keys returns the keys set by WithKeys.
func (w *Widget) Keys() (inc, dec string) { return w.incKey, w.decKey }

// Mount performs the first render and fires OnMount. Later calls do nothing.
func (w *Widget) Mount() {
	w.machine.Mount()
}

// Increment proposes counter+1.
func (w *Widget) Increment() {
	w.propose(Increment)
}

// Decrement proposes counter-1. There is no floor.
func (w *Widget) Decrement() {
	w.propose(Decrement)
}

func (w *Widget) propose(a Action) {
	out := w.machine.Update(func(s State) State { return Transition(s, a) })
	w.logger.Debug().Stringer("action", a).Stringer("outcome", out).Stringer("phase", w.machine.Phase()).Msg("proposal")
}

// Dispose unmounts the widget. Later proposals are ignored.
func (w *Widget) Dispose() {
	w.machine.Dispose()
}

// Render projects the stored state and message prop into a tree. It does not
// change what the widget displays; see View.
func (w *Widget) Render() h.H {
	return w.build(w.machine.State())
}

// View returns the tree produced by the last lifecycle render, or nil before mount.
func (w *Widget) View() h.H {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tree
}

// State returns the stored state.
func (w *Widget) State() State { return w.machine.State() }

// Displayed returns the state the last lifecycle render showed.
func (w *Widget) Displayed() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.displayed
}

// Phase returns the lifecycle phase.
func (w *Widget) Phase() lifecycle.Phase { return w.machine.Phase() }

// Stats returns render and proposal counters.
func (w *Widget) Stats() lifecycle.Stats { return w.machine.Stats() }

func (w *Widget) build(s State) h.H {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return h.Div(
		h.Class("counter"),
		h.H2(h.Text(w.message)),
		h.P(h.Textf("%d", s.Counter)),
		h.Button(h.Text("+"), w.inc),
		h.Button(h.Text("-"), w.dec),
	)
}

// render is the lifecycle render step.
func (w *Widget) render(s State) {
	tree := w.build(s)

	w.mu.Lock()
	w.tree = tree
	w.displayed = s
	first := !w.rendered
	w.rendered = true
	push := w.push
	w.mu.Unlock()

	w.emit(EventRender, nil, &s)
	if push != nil && !first {
		push()
	}
}

func (w *Widget) onMount(State) {
	w.emit(EventMount, nil, nil)
	if w.hooks.OnMount != nil {
		w.hooks.OnMount()
	}
}

func (w *Widget) shouldApply(current, proposed State) bool {
	ok := w.gate(current, proposed)
	if !ok {
		w.emit(EventVeto, &current, &proposed)
	}
	return ok
}

func (w *Widget) onUpdated(previous, next State) {
	w.emit(EventUpdate, &previous, &next)
	if w.hooks.OnUpdated != nil {
		w.hooks.OnUpdated(previous, next)
	}
}

func (w *Widget) onUnmount(final State) {
	w.emit(EventUnmount, nil, &final)
	if w.hooks.OnUnmount != nil {
		w.hooks.OnUnmount(final)
	}
}

func genID() string {
	return uuid.NewString()
}
