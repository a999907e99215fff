package live

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/ryanhamamura/live/h"
	"golang.org/x/time/rate"
)

// Context is the bridge between a component and the browser showing it.
//
// It holds the view, the actions its buttons trigger, and the hooks the host
// runs when the component is mounted and disposed. Page contexts own the SSE
// stream; component contexts share their page's.
type Context struct {
	id              string
	route           string
	app             *V
	view            func() h.H
	components      []*Context
	parentPageCtx   *Context
	patchChan       chan patch
	actionRegistry  map[string]actionEntry
	actionLimiter   *rate.Limiter
	csrfToken       string
	mountHooks      []func()
	disposeHooks    []func()
	subscriptions   []Subscription
	mounted         bool
	disposed        bool
	mu              sync.Mutex
	sseConnected    atomic.Bool
	createdAt       time.Time
	ctxDisposedChan chan struct{}
	reqCtx          context.Context
}

// ID returns the context id. Contexts created while a page is being validated
// at registration have an empty id.
func (c *Context) ID() string {
	return c.id
}

// Logger returns the application logger tagged with this context id.
func (c *Context) Logger() zerolog.Logger {
	return c.app.logger.With().Str("live-ctx", c.id).Logger()
}

// View defines the UI rendered by this context. Changes are pushed to the
// browser with Sync.
func (c *Context) View(f func() h.H) {
	if f == nil {
		panic("nil viewfn")
	}
	c.view = func() h.H { return h.Div(h.ID(c.id), f()) }
}

// Component registers a child context with its own view, actions and hooks and
// returns the child's view for placement in the parent view. A component added
// to an already mounted context is mounted right away.
//
// Example:
//
//	v.Page("/", func(c *live.Context) {
//		about := c.Component(func(c *live.Context) {
//			c.View(func() h.H { return h.P(h.Text("about")) })
//		})
//		c.View(func() h.H {
//			return h.Div(h.H1(h.Text("Home")), about())
//		})
//	})
func (c *Context) Component(initCtx func(c *Context)) func() h.H {
	id := c.id + "/_component/" + genRandID()
	comp := newContext(id, c.route, c.app)
	comp.parentPageCtx = c.page()
	initCtx(comp)

	c.mu.Lock()
	c.components = append(c.components, comp)
	mounted := c.mounted
	c.mu.Unlock()
	if mounted {
		comp.mount()
	}
	return func() h.H {
		if comp.view == nil {
			return nil
		}
		return comp.view()
	}
}

func (c *Context) isComponent() bool {
	return c.parentPageCtx != nil
}

func (c *Context) page() *Context {
	if c.isComponent() {
		return c.parentPageCtx
	}
	return c
}

// Action registers an event handler and returns a trigger for it that can be
// attached to elements in the view.
//
// Example:
//
//	n := 0
//	increment := c.Action(func() {
//		n++
//		c.Sync()
//	})
//
//	c.View(func() h.H {
//		return h.Button(h.Text("+"), increment.OnClick())
//	})
func (c *Context) Action(f func(), options ...ActionOption) *ActionTrigger {
	id := genRandID()
	if f == nil {
		c.app.logErr(c, "failed to bind action '%s' to context: nil func", id)
		return nil
	}
	entry := actionEntry{fn: f}
	for _, opt := range options {
		opt(&entry)
	}

	p := c.page()
	p.mu.Lock()
	p.actionRegistry[id] = entry
	p.mu.Unlock()
	return &ActionTrigger{id: id}
}

func (c *Context) getAction(id string) (actionEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.actionRegistry[id]; ok {
		return e, nil
	}
	return actionEntry{}, fmt.Errorf("action '%s': %w", id, ErrActionNotFound)
}

// OnMount registers fn to run once, right before the context's first view is
// written to the browser. Components run their hooks before their parent.
func (c *Context) OnMount(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mountHooks = append(c.mountHooks, fn)
}

// OnDispose registers fn to run once when the context is torn down: the
// browser closed the page, the SSE stream ended, or the application shut down.
// Dispose hooks run in reverse registration order.
func (c *Context) OnDispose(fn func()) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposeHooks = append(c.disposeHooks, fn)
}

func (c *Context) mount() {
	c.mu.Lock()
	if c.mounted || c.disposed {
		c.mu.Unlock()
		return
	}
	c.mounted = true
	components := append([]*Context(nil), c.components...)
	hooks := append([]func(){}, c.mountHooks...)
	c.mu.Unlock()

	for _, comp := range components {
		comp.mount()
	}
	for _, fn := range hooks {
		c.invokeHook("OnMount", fn)
	}
}

func (c *Context) dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	components := append([]*Context(nil), c.components...)
	hooks := append([]func(){}, c.disposeHooks...)
	c.mu.Unlock()

	for _, comp := range components {
		comp.dispose()
	}
	for i := len(hooks) - 1; i >= 0; i-- {
		c.invokeHook("OnDispose", hooks[i])
	}
	c.unsubscribeAll()
	close(c.ctxDisposedChan)
}

// invokeHook runs a lifecycle hook, logging a panic instead of propagating it.
func (c *Context) invokeHook(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.app.logErr(c, "%s hook panicked: %v", name, rec)
		}
	}()
	fn()
}

// sendPatch queues a patch on the page's SSE stream. When the queue is full the
// patch is dropped rather than blocking the caller.
func (c *Context) sendPatch(p patch) {
	select {
	case c.page().patchChan <- p:
	default:
		c.app.logDebug(c, "patch dropped: queue full")
	}
}

// Sync renders the view and pushes it to the browser over the SSE stream.
func (c *Context) Sync() {
	if c.view == nil {
		c.app.logWarn(c, "sync failed: context has no view")
		return
	}
	b := new(bytes.Buffer)
	if err := c.view().Render(b); err != nil {
		c.app.logErr(c, "sync view failed: %v", err)
		return
	}
	c.sendPatch(patch{patchTypeElements, b.String()})
}

// ExecScript runs s once in the browser.
func (c *Context) ExecScript(s string) {
	if s == "" {
		c.app.logWarn(c, "exec script failed: empty script")
		return
	}
	c.sendPatch(patch{patchTypeScript, s})
}

// Session returns the browser session of the page request that created this
// context. Without a session manager the returned session is a no-op.
func (c *Context) Session() *Session {
	return &Session{
		ctx:     c.page().reqCtx,
		manager: c.app.sessionManager,
	}
}

func newContext(id string, route string, v *V) *Context {
	if v == nil {
		panic("create context failed: app pointer is nil")
	}
	return &Context{
		id:              id,
		route:           route,
		app:             v,
		actionRegistry:  make(map[string]actionEntry),
		actionLimiter:   newLimiter(v.actionRateLimit, defaultActionRate, defaultActionBurst),
		csrfToken:       genCSRFToken(),
		patchChan:       make(chan patch, 16),
		createdAt:       time.Now(),
		ctxDisposedChan: make(chan struct{}),
	}
}
