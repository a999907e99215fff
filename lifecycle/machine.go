// Package lifecycle implements the update protocol of a stateful component as an
// explicit state machine.
//
// A Machine owns one state value. Proposed changes pass through a gate that
// decides whether the change is rendered; the value itself is stored either way.
// Mount, update and unmount notifications fire exactly once per trigger.
package lifecycle

import (
	"sync"

	"github.com/rs/zerolog"
)

// Gate reports whether a proposed state should be rendered. Returning false
// skips the render and the OnUpdated notification but not the state assignment.
type Gate[S any] func(current, proposed S) bool

// Always is the default gate: every proposal is rendered.
func Always[S any](current, proposed S) bool { return true }

// Never vetoes every proposal.
func Never[S any](current, proposed S) bool { return false }

// Hooks are the callbacks a host invokes around the update protocol.
// Every field is optional.
type Hooks[S any] struct {
	// OnMount fires once, after the first render.
	OnMount func(state S)

	// ShouldApplyUpdate gates every proposal made while mounted. nil means Always.
	ShouldApplyUpdate Gate[S]

	// OnUpdated fires after the render of every applied proposal.
	OnUpdated func(previous, next S)

	// OnUnmount fires once when a mounted machine is disposed.
	OnUnmount func(final S)
}

// Options configures a Machine.
type Options struct {
	// Name identifies the machine in log events.
	Name string

	// Logger receives lifecycle diagnostics. nil disables logging.
	Logger *zerolog.Logger
}

// Stats counts what a machine did since creation.
type Stats struct {
	Renders int
	Applied int
	Vetoed  int
	Dropped int
}

// Machine drives a single state value through Unmounted, Mounted, UpdatePending
// and Disposed.
//
// Proposals are processed one at a time. A proposal made while another is in
// flight, including one made from inside a hook or the render function, is
// queued and processed after the current one completes.
type Machine[S any] struct {
	mu       sync.Mutex
	state    S
	phase    Phase
	queue    []func(S) S
	draining bool
	// unmountOwed is set when Dispose lands while a proposal or mount is in
	// flight; the draining goroutine fires OnUnmount when it finishes.
	unmountOwed bool
	stats       Stats

	render func(S)
	hooks  Hooks[S]
	name   string
	logger zerolog.Logger
}

// New returns an unmounted machine holding initial. render is called with the
// state to display on mount and on every applied proposal.
func New[S any](initial S, render func(S), hooks Hooks[S], opts Options) *Machine[S] {
	if render == nil {
		render = func(S) {}
	}
	if hooks.ShouldApplyUpdate == nil {
		hooks.ShouldApplyUpdate = Always[S]
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Machine[S]{
		state:  initial,
		phase:  Unmounted,
		render: render,
		hooks:  hooks,
		name:   opts.Name,
		logger: logger,
	}
}

func (m *Machine[S]) log(evt *zerolog.Event) *zerolog.Event {
	if m.name != "" {
		evt = evt.Str("component", m.name)
	}
	return evt
}

// State returns the stored state. After a vetoed proposal this differs from what
// was last rendered.
func (m *Machine[S]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Phase returns the current lifecycle phase.
func (m *Machine[S]) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Stats returns a snapshot of the machine counters.
func (m *Machine[S]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Mount renders the current state and fires OnMount. It reports false if the
// machine was already mounted or disposed. Proposals made from OnMount are
// processed right after it returns.
func (m *Machine[S]) Mount() bool {
	m.mu.Lock()
	if m.phase != Unmounted || m.draining {
		phase := m.phase
		m.mu.Unlock()
		m.log(m.logger.Warn()).Stringer("phase", phase).Msg("mount ignored")
		return false
	}
	m.draining = true
	state := m.state
	m.stats.Renders++
	m.mu.Unlock()

	m.invoke("render", func() { m.render(state) })

	m.mu.Lock()
	if m.phase == Disposed {
		m.draining = false
		m.unmountOwed = false
		m.mu.Unlock()
		return false
	}
	m.phase = Mounted
	m.mu.Unlock()
	m.log(m.logger.Debug()).Msg("mounted")

	if m.hooks.OnMount != nil {
		m.invoke("OnMount", func() { m.hooks.OnMount(state) })
	}
	m.drain()
	return true
}

// Propose submits next as the new state.
func (m *Machine[S]) Propose(next S) Outcome {
	return m.Update(func(S) S { return next })
}

// Update submits the state computed by fn from the state current at the time
// the proposal is processed.
//
// Before mount the result is stored without rendering (Deferred). After
// disposal the proposal is ignored (Dropped). While another proposal is in
// flight it is queued (Queued). Otherwise it runs to completion and reports
// Applied or Vetoed. fn must not call back into the machine; a panic in fn
// drops the proposal.
func (m *Machine[S]) Update(fn func(S) S) Outcome {
	m.mu.Lock()
	switch {
	case m.phase == Disposed:
		m.stats.Dropped++
		m.mu.Unlock()
		m.log(m.logger.Warn()).Msg("update after dispose ignored")
		return Dropped
	case m.phase == Unmounted && !m.draining:
		defer m.mu.Unlock()
		var next S
		current := m.state
		if !m.invoke("transition", func() { next = fn(current) }) {
			m.stats.Dropped++
			return Dropped
		}
		m.state = next
		m.log(m.logger.Debug()).Msg("update before mount stored")
		return Deferred
	}
	m.queue = append(m.queue, fn)
	if m.draining {
		m.mu.Unlock()
		return Queued
	}
	m.draining = true
	m.mu.Unlock()
	return m.drain()
}

// drain processes queued proposals until the queue is empty. Only the goroutine
// that set draining calls it.
func (m *Machine[S]) drain() Outcome {
	result := Queued
	first := true
	for {
		m.mu.Lock()
		if len(m.queue) == 0 || m.phase == Disposed {
			m.queue = nil
			m.draining = false
			owed := m.unmountOwed
			m.unmountOwed = false
			final := m.state
			m.mu.Unlock()
			if owed {
				m.unmount(final)
			}
			return result
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		current := m.state
		m.phase = UpdatePending
		m.mu.Unlock()

		out := m.process(current, fn)
		if first {
			result = out
			first = false
		}
	}
}

func (m *Machine[S]) process(current S, fn func(S) S) Outcome {
	var proposed S
	ok := m.invoke("transition", func() { proposed = fn(current) })
	if !ok {
		m.mu.Lock()
		m.stats.Dropped++
		m.mu.Unlock()
		m.settle()
		return Dropped
	}

	apply := true
	m.invoke("ShouldApplyUpdate", func() { apply = m.hooks.ShouldApplyUpdate(current, proposed) })

	m.mu.Lock()
	if m.phase == Disposed {
		m.stats.Dropped++
		m.mu.Unlock()
		return Dropped
	}
	m.state = proposed
	if !apply {
		m.stats.Vetoed++
		m.phase = Mounted
		m.mu.Unlock()
		m.log(m.logger.Debug()).Msg("update vetoed, render skipped")
		return Vetoed
	}
	m.stats.Renders++
	m.mu.Unlock()

	m.invoke("render", func() { m.render(proposed) })

	m.mu.Lock()
	if m.phase == Disposed {
		m.stats.Dropped++
		m.mu.Unlock()
		m.log(m.logger.Debug()).Msg("disposed during render, update not notified")
		return Dropped
	}
	m.stats.Applied++
	m.mu.Unlock()
	if m.hooks.OnUpdated != nil {
		m.invoke("OnUpdated", func() { m.hooks.OnUpdated(current, proposed) })
	}
	m.settle()
	m.log(m.logger.Debug()).Msg("update applied")
	return Applied
}

// settle returns an in-flight machine to Mounted unless a hook disposed it.
func (m *Machine[S]) settle() {
	m.mu.Lock()
	if m.phase == UpdatePending {
		m.phase = Mounted
	}
	m.mu.Unlock()
}

// Dispose moves the machine to its terminal phase and fires OnUnmount if it was
// mounted. Queued proposals are discarded. It reports false when already disposed.
//
// When a proposal or the mount is in flight, Dispose returns at once and
// OnUnmount fires after the in-flight work, so it is always the last hook.
// An in-flight proposal that has not reached OnUpdated reports Dropped.
func (m *Machine[S]) Dispose() bool {
	m.mu.Lock()
	if m.phase == Disposed {
		m.mu.Unlock()
		return false
	}
	wasMounted := m.phase != Unmounted
	m.phase = Disposed
	m.queue = nil
	if m.draining {
		m.unmountOwed = wasMounted
		m.mu.Unlock()
		m.log(m.logger.Debug()).Bool("mounted", wasMounted).Msg("disposed while busy")
		return true
	}
	final := m.state
	m.mu.Unlock()
	m.log(m.logger.Debug()).Bool("mounted", wasMounted).Msg("disposed")

	if wasMounted {
		m.unmount(final)
	}
	return true
}

func (m *Machine[S]) unmount(final S) {
	if m.hooks.OnUnmount != nil {
		m.invoke("OnUnmount", func() { m.hooks.OnUnmount(final) })
	}
}

// invoke runs a user callback, recovering and logging a panic. It reports
// whether fn returned normally.
func (m *Machine[S]) invoke(hook string, fn func()) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			m.log(m.logger.Error()).Str("hook", hook).Msgf("panic: %v", rec)
			ok = false
		}
	}()
	fn()
	return true
}
