package counter

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ryanhamamura/live/h"
	"github.com/ryanhamamura/live/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type update struct{ prev, next int }

type spy struct {
	mounts   int
	updates  []update
	unmounts []int
}

func (s *spy) hooks() Hooks {
	return Hooks{
		OnMount:   func() { s.mounts++ },
		OnUpdated: func(prev, next State) { s.updates = append(s.updates, update{prev.Counter, next.Counter}) },
		OnUnmount: func(final State) { s.unmounts = append(s.unmounts, final.Counter) },
	}
}

func mounted(t *testing.T, opts ...Option) (*Widget, *spy) {
	t.Helper()
	s := &spy{}
	w := New("About page", append([]Option{WithHooks(s.hooks())}, opts...)...)
	w.Mount()
	return w, s
}

func render(t *testing.T, n h.H) string {
	t.Helper()
	require.NotNil(t, n)
	var b bytes.Buffer
	require.NoError(t, n.Render(&b))
	return b.String()
}

func TestWidget_InitialState(t *testing.T) {
	w, s := mounted(t)

	assert.Equal(t, 0, w.State().Counter)
	assert.Equal(t, 0, w.Displayed().Counter)
	assert.Equal(t, 1, s.mounts)
	assert.Empty(t, s.updates)
	assert.Equal(t, lifecycle.Mounted, w.Phase())
	assert.Equal(t, "<div class=\"counter\"><h2>About page</h2><p>0</p><button>+</button><button>-</button></div>", render(t, w.View()))
}

func TestWidget_ViewIsNilBeforeMount(t *testing.T) {
	w := New("About page")
	assert.Nil(t, w.View())
	assert.Equal(t, lifecycle.Unmounted, w.Phase())
}

func TestWidget_IncrementStep(t *testing.T) {
	for _, start := range []int{0, 7, -3} {
		w, s := mounted(t)
		for w.State().Counter < start {
			w.Increment()
		}
		for w.State().Counter > start {
			w.Decrement()
		}
		s.updates = nil

		w.Increment()
		assert.Equal(t, start+1, w.Displayed().Counter)
		assert.Equal(t, []update{{start, start + 1}}, s.updates)
	}
}

func TestWidget_DecrementHasNoFloor(t *testing.T) {
	w, s := mounted(t)
	w.Decrement()
	assert.Equal(t, -1, w.State().Counter)
	assert.Equal(t, -1, w.Displayed().Counter)
	assert.Contains(t, render(t, w.View()), "<p>-1</p>")
	assert.Equal(t, []update{{0, -1}}, s.updates)
}

func TestWidget_VetoStoresButDoesNotRender(t *testing.T) {
	w, s := mounted(t, WithGate(NeverApply))

	w.Increment()
	assert.Equal(t, 1, w.State().Counter, "state is stored even when the render is vetoed")
	assert.Equal(t, 0, w.Displayed().Counter)
	assert.Contains(t, render(t, w.View()), "<p>0</p>")
	assert.Empty(t, s.updates)
	assert.Equal(t, 1, w.Stats().Renders)
	assert.Equal(t, 1, w.Stats().Vetoed)
}

func TestWidget_Sequence(t *testing.T) {
	w, s := mounted(t)
	w.Increment()
	w.Increment()
	w.Decrement()

	assert.Equal(t, 1, w.State().Counter)
	assert.Equal(t, 1, w.Displayed().Counter)
	assert.Equal(t, []update{{0, 1}, {1, 2}, {2, 1}}, s.updates)
	assert.Equal(t, 3, w.Stats().Applied)
}

func TestWidget_InstancesAreIndependent(t *testing.T) {
	a, sa := mounted(t)
	b, sb := mounted(t)
	assert.NotEqual(t, a.ID(), b.ID())

	a.Increment()
	a.Increment()
	b.Decrement()

	assert.Equal(t, 2, a.State().Counter)
	assert.Equal(t, -1, b.State().Counter)
	assert.Len(t, sa.updates, 2)
	assert.Len(t, sb.updates, 1)
}

func TestWidget_SkipDecrementGate(t *testing.T) {
	w, s := mounted(t, WithGate(SkipDecrement))

	w.Increment()
	w.Increment()
	require.Equal(t, 2, w.Displayed().Counter)

	w.Decrement()
	assert.Equal(t, 1, w.State().Counter)
	assert.Equal(t, 2, w.Displayed().Counter, "decrement is stored but not shown")

	w.Increment()
	assert.Equal(t, 2, w.State().Counter)
	assert.Equal(t, 2, w.Displayed().Counter, "increment after a hidden decrement shows no change")
	assert.Equal(t, []update{{0, 1}, {1, 2}, {1, 2}}, s.updates)
}

func TestWidget_GateReceivesCurrentAndProposed(t *testing.T) {
	var seen [][2]int
	w, _ := mounted(t, WithGate(func(current, proposed State) bool {
		seen = append(seen, [2]int{current.Counter, proposed.Counter})
		return true
	}))
	w.Increment()
	w.Decrement()
	assert.Equal(t, [][2]int{{0, 1}, {1, 0}}, seen)
}

func TestWidget_MountIsOnce(t *testing.T) {
	w, s := mounted(t)
	w.Mount()
	w.Mount()
	assert.Equal(t, 1, s.mounts)
	assert.Equal(t, 1, w.Stats().Renders)
}

func TestWidget_DisposeUnmountsOnce(t *testing.T) {
	w, s := mounted(t)
	w.Increment()
	w.Dispose()
	w.Dispose()

	assert.Equal(t, []int{1}, s.unmounts)
	assert.Equal(t, lifecycle.Disposed, w.Phase())

	w.Increment()
	assert.Equal(t, 1, w.State().Counter, "proposals after dispose are ignored")
	assert.Len(t, s.updates, 1)
}

func TestWidget_MessageIsReadOnEveryRender(t *testing.T) {
	w, _ := mounted(t)
	w.SetMessage("Changed")
	assert.Contains(t, render(t, w.View()), "<h2>About page</h2>", "setting the prop alone does not render")
	assert.Contains(t, render(t, w.Render()), "<h2>Changed</h2>")

	w.Increment()
	assert.Contains(t, render(t, w.View()), "<h2>Changed</h2>")
	assert.Equal(t, "Changed", w.Message())
}

func TestWidget_RenderDoesNotChangeDisplayed(t *testing.T) {
	w, _ := mounted(t, WithGate(NeverApply))
	w.Increment()
	assert.Contains(t, render(t, w.Render()), "<p>1</p>")
	assert.Equal(t, 0, w.Displayed().Counter)
}

func TestWidget_BindPushesAfterFirstRender(t *testing.T) {
	pushes := 0
	w := New("About page")
	w.Bind(h.Data("on:click", "inc()"), h.Data("on:click", "dec()"), func() { pushes++ })

	w.Mount()
	assert.Equal(t, 0, pushes, "the first render is written by the host, not pushed")
	out := render(t, w.View())
	assert.Contains(t, out, `<button data-on:click="inc()">+</button>`)
	assert.Contains(t, out, `<button data-on:click="dec()">-</button>`)

	w.Increment()
	assert.Equal(t, 1, pushes)

	vetoed := New("About page", WithGate(NeverApply))
	vetoed.Bind(nil, nil, func() { pushes++ })
	vetoed.Mount()
	vetoed.Increment()
	assert.Equal(t, 1, pushes)
}

func TestWidget_HookPanicDoesNotBreakLifecycle(t *testing.T) {
	w := New("About page", WithHooks(Hooks{
		OnUpdated: func(State, State) { panic("boom") },
	}))
	w.Mount()
	assert.NotPanics(t, w.Increment)
	assert.Equal(t, 1, w.Displayed().Counter)
	assert.Equal(t, lifecycle.Mounted, w.Phase())
}

type memPublisher struct {
	mu   sync.Mutex
	msgs map[string][][]byte
	err  error
}

func (p *memPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.msgs == nil {
		p.msgs = make(map[string][][]byte)
	}
	p.msgs[subject] = append(p.msgs[subject], data)
	return p.err
}

func (p *memPublisher) kinds(t *testing.T, subject string) []EventKind {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	var kinds []EventKind
	for _, data := range p.msgs[subject] {
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		kinds = append(kinds, evt.Kind)
	}
	return kinds
}

func TestWidget_PublishesLifecycleEvents(t *testing.T) {
	pub := &memPublisher{}
	w, _ := mounted(t, WithID("w1"), WithEvents(pub), WithGate(SkipDecrement))

	w.Increment()
	w.Decrement()
	w.Dispose()

	assert.Equal(t, []EventKind{
		EventRender, EventMount,
		EventRender, EventUpdate,
		EventVeto,
		EventUnmount,
	}, pub.kinds(t, Subject("w1")))

	var update Event
	require.NoError(t, json.Unmarshal(pub.msgs[Subject("w1")][3], &update))
	assert.Equal(t, "w1", update.Widget)
	require.NotNil(t, update.Previous)
	require.NotNil(t, update.Next)
	assert.Equal(t, 0, update.Previous.Counter)
	assert.Equal(t, 1, update.Next.Counter)
}

func TestWidget_PublishErrorsAreNotFatal(t *testing.T) {
	pub := &memPublisher{err: errors.New("backend down")}
	w, s := mounted(t, WithEvents(pub))
	w.Increment()
	assert.Equal(t, 1, w.Displayed().Counter)
	assert.Len(t, s.updates, 1)
}

func TestWidget_KeysDefaultToNone(t *testing.T) {
	inc, dec := New("x").Keys()
	assert.Empty(t, inc)
	assert.Empty(t, dec)

	inc, dec = New("x", WithKeys("+", "-")).Keys()
	assert.Equal(t, "+", inc)
	assert.Equal(t, "-", dec)
}

func TestWidget_DisposeDuringRenderPublishesNoUpdate(t *testing.T) {
	pub := &memPublisher{}
	entered := make(chan struct{})
	release := make(chan struct{})
	var pushes int
	w := New("About page", WithID("w2"), WithEvents(pub))
	w.Bind(nil, nil, func() {
		pushes++
		if pushes == 1 {
			close(entered)
			<-release
		}
	})
	w.Mount()

	done := make(chan struct{})
	go func() {
		w.Increment()
		close(done)
	}()
	<-entered
	w.Dispose()
	close(release)
	<-done

	assert.Equal(t, []EventKind{EventRender, EventMount, EventRender, EventUnmount}, pub.kinds(t, Subject("w2")))
	assert.Equal(t, lifecycle.Disposed, w.Phase())
}
