// Package live is a small server-driven host for stateful Go components.
//
// A page is a tree of Contexts. Each Context owns a view, actions bound to
// buttons, and mount/dispose hooks. The first view render happens when the page
// is requested; later renders are pushed to the browser over an SSE stream
// with Datastar, only when a component asks for it with Sync.
package live

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
	"github.com/ryanhamamura/live/h"
	"github.com/starfederation/datastar-go/datastar"
)

const defaultDatastarSrc = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"

var (
	// ErrContextNotFound is returned when a request names a context that is not registered.
	ErrContextNotFound = errors.New("context not found")
	// ErrActionNotFound is returned when a request names an action that is not registered.
	ErrActionNotFound = errors.New("action not found")
)

// V is the root application.
// It manages page routing, contexts, and the SSE streams that carry live updates.
type V struct {
	cfg                  Options
	mux                  *http.ServeMux
	server               *http.Server
	logger               zerolog.Logger
	contextRegistry      map[string]*Context
	contextRegistryMutex sync.RWMutex
	documentHeadIncludes []h.H
	documentFootIncludes []h.H
	sessionManager       *scs.SessionManager
	pubsub               PubSub
	actionRateLimit      RateLimitConfig
	datastarSrc          string
	datastarContent      []byte
	datastarOnce         sync.Once
	reaperStop           chan struct{}
	shutdownOnce         sync.Once
}

func (v *V) logEvent(evt *zerolog.Event, c *Context) *zerolog.Event {
	if c != nil && c.id != "" {
		evt = evt.Str("live-ctx", c.id)
	}
	return evt
}

func (v *V) logErr(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Error(), c).Msgf(format, a...)
}

func (v *V) logWarn(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Warn(), c).Msgf(format, a...)
}

func (v *V) logInfo(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Info(), c).Msgf(format, a...)
}

func (v *V) logDebug(c *Context, format string, a ...any) {
	v.logEvent(v.logger.Debug(), c).Msgf(format, a...)
}

func newConsoleLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger().Level(level)
}

// Config overrides the default configuration with the given options.
func (v *V) Config(cfg Options) {
	if cfg.Logger != nil {
		v.logger = *cfg.Logger
	} else if cfg.LogLevel != nil || cfg.DevMode != v.cfg.DevMode {
		level := zerolog.InfoLevel
		if cfg.LogLevel != nil {
			level = *cfg.LogLevel
		}
		if cfg.DevMode {
			v.logger = newConsoleLogger(level)
		} else {
			v.logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		}
	}
	v.cfg.DevMode = cfg.DevMode
	if cfg.DocumentTitle != "" {
		v.cfg.DocumentTitle = cfg.DocumentTitle
	}
	for _, plugin := range cfg.Plugins {
		if plugin != nil {
			plugin(v)
		}
	}
	if cfg.ServerAddress != "" {
		v.cfg.ServerAddress = cfg.ServerAddress
	}
	if cfg.SessionManager != nil {
		v.sessionManager = cfg.SessionManager
	}
	if cfg.DatastarContent != nil {
		v.datastarContent = cfg.DatastarContent
		v.datastarSrc = "/_datastar.js"
	}
	if cfg.DatastarPath != "" {
		v.datastarSrc = cfg.DatastarPath
	}
	if cfg.PubSub != nil {
		v.pubsub = cfg.PubSub
	}
	if cfg.ContextTTL != 0 {
		v.cfg.ContextTTL = cfg.ContextTTL
	}
	if cfg.ActionRateLimit.Rate != 0 || cfg.ActionRateLimit.Burst != 0 {
		v.actionRateLimit = cfg.ActionRateLimit
	}
}

// AppendToHead appends the given nodes to the head of every page document.
func (v *V) AppendToHead(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentHeadIncludes = append(v.documentHeadIncludes, el)
		}
	}
}

// AppendToFoot appends the given nodes to the end of every page document body.
func (v *V) AppendToFoot(elements ...h.H) {
	for _, el := range elements {
		if el != nil {
			v.documentFootIncludes = append(v.documentFootIncludes, el)
		}
	}
}

// Page registers a route and the function that initializes a Context for each
// request to it. The function declares components, actions and the view.
//
// Example:
//
//	v.Page("/", func(c *live.Context) {
//		c.View(func() h.H {
//			return h.H1(h.Text("Hello"))
//		})
//	})
//
// Page panics if the init function panics or never calls View.
func (v *V) Page(route string, initContextFn func(c *Context)) {
	v.ensureDatastarHandler()
	func() {
		defer func() {
			if err := recover(); err != nil {
				v.logger.WithLevel(zerolog.FatalLevel).Msgf("failed to register page with init func that panics: %v", err)
				panic(err)
			}
		}()
		c := newContext("", route, v)
		initContextFn(c)
		c.view()
		c.dispose()
	}()

	v.mux.HandleFunc("GET "+route, func(w http.ResponseWriter, r *http.Request) {
		v.logDebug(nil, "GET %s", r.URL.String())
		if strings.Contains(r.URL.Path, "favicon") ||
			strings.Contains(r.URL.Path, ".well-known") {
			return
		}
		id := fmt.Sprintf("%s_/%s", route, genRandID())
		c := newContext(id, route, v)
		c.reqCtx = r.Context()
		initContextFn(c)
		v.registerCtx(c)
		c.mount()

		headElements := []h.H{h.Script(h.Type("module"), h.Src(v.datastarSrc))}
		headElements = append(headElements, v.documentHeadIncludes...)
		headElements = append(headElements,
			h.Meta(h.Data("signals", fmt.Sprintf("{'live-ctx':'%s','live-csrf':'%s'}", id, c.csrfToken))),
			h.Meta(h.Data("init", "@get('/_sse')")),
			h.Meta(h.Data("init", fmt.Sprintf(`window.addEventListener('beforeunload', () => {
			navigator.sendBeacon('/_session/close', '%s');});`, c.id))),
		)

		bodyElements := []h.H{c.view()}
		bodyElements = append(bodyElements, v.documentFootIncludes...)
		doc := h.HTML5(h.HTML5Props{
			Title: v.cfg.DocumentTitle,
			Head:  headElements,
			Body:  bodyElements,
		})
		if err := doc.Render(w); err != nil {
			v.logErr(c, "render page failed: %v", err)
		}
	})
}

func (v *V) registerCtx(c *Context) {
	if c == nil {
		v.logErr(nil, "failed to add nil context to registry")
		return
	}
	v.contextRegistryMutex.Lock()
	v.contextRegistry[c.id] = c
	n := len(v.contextRegistry)
	v.contextRegistryMutex.Unlock()
	v.logDebug(c, "new context added to registry")
	v.logDebug(nil, "number of contexts in registry: %d", n)
}

func (v *V) unregisterCtx(c *Context) {
	if c.id == "" {
		v.logErr(c, "unregister ctx failed: ctx contains empty id")
		return
	}
	v.contextRegistryMutex.Lock()
	delete(v.contextRegistry, c.id)
	n := len(v.contextRegistry)
	v.contextRegistryMutex.Unlock()
	v.logDebug(c, "ctx removed from registry")
	v.logDebug(nil, "number of contexts in registry: %d", n)
}

func (v *V) cleanupCtx(c *Context) {
	c.dispose()
	v.unregisterCtx(c)
}

func (v *V) getCtx(id string) (*Context, error) {
	v.contextRegistryMutex.RLock()
	defer v.contextRegistryMutex.RUnlock()
	if c, ok := v.contextRegistry[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("ctx '%s': %w", id, ErrContextNotFound)
}

func (v *V) startReaper() {
	ttl := v.cfg.ContextTTL
	if ttl < 0 {
		return
	}
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	interval := max(ttl/3, 5*time.Second)
	v.reaperStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-v.reaperStop:
				return
			case <-ticker.C:
				v.reapOrphanedContexts(ttl)
			}
		}
	}()
}

// reapOrphanedContexts disposes contexts whose browser never opened an SSE
// stream within ttl, so their components get unmounted.
func (v *V) reapOrphanedContexts(ttl time.Duration) {
	now := time.Now()
	v.contextRegistryMutex.RLock()
	var orphans []*Context
	for _, c := range v.contextRegistry {
		if !c.sseConnected.Load() && now.Sub(c.createdAt) > ttl {
			orphans = append(orphans, c)
		}
	}
	v.contextRegistryMutex.RUnlock()

	for _, c := range orphans {
		v.logInfo(c, "reaping orphaned context (no SSE connection after %s)", ttl)
		v.cleanupCtx(c)
	}
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM is received,
// then shuts down gracefully.
func (v *V) Start() {
	v.server = &http.Server{
		Addr:              v.cfg.ServerAddress,
		Handler:           v.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	v.startReaper()

	errCh := make(chan error, 1)
	go func() {
		errCh <- v.server.ListenAndServe()
	}()

	v.logInfo(nil, "live started at [%s]", v.cfg.ServerAddress)

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		v.logInfo(nil, "received signal %v, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			v.logger.Fatal().Err(err).Msg("http server failed")
		}
		return
	}

	v.Shutdown()
}

// Shutdown disposes every context, stops the server and closes the pub/sub
// backend. It is safe to call more than once.
func (v *V) Shutdown() {
	v.shutdownOnce.Do(v.shutdown)
}

func (v *V) shutdown() {
	if v.reaperStop != nil {
		close(v.reaperStop)
	}
	v.logInfo(nil, "draining all contexts")
	v.drainAllContexts()

	if v.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.server.Shutdown(ctx); err != nil {
			v.logErr(nil, "http server shutdown error: %v", err)
		}
	}

	if v.pubsub != nil {
		if err := v.pubsub.Close(); err != nil {
			v.logErr(nil, "pubsub close error: %v", err)
		}
	}

	v.logInfo(nil, "shutdown complete")
}

func (v *V) drainAllContexts() {
	v.contextRegistryMutex.Lock()
	contexts := make([]*Context, 0, len(v.contextRegistry))
	for _, c := range v.contextRegistry {
		contexts = append(contexts, c)
	}
	v.contextRegistry = make(map[string]*Context)
	v.contextRegistryMutex.Unlock()

	for _, c := range contexts {
		v.logDebug(c, "disposing context")
		c.dispose()
	}
	v.logInfo(nil, "drained %d context(s)", len(contexts))
}

// HTTPServeMux returns the underlying multiplexer for middleware and tests.
// It can only be modified before Start.
func (v *V) HTTPServeMux() *http.ServeMux {
	return v.mux
}

// Handler returns the application handler, wrapped with session loading when a
// session manager is configured.
func (v *V) Handler() http.Handler {
	if v.sessionManager != nil {
		return v.sessionManager.LoadAndSave(v.mux)
	}
	return v.mux
}

// ensureDatastarHandler serves the Datastar script when its content was supplied
// through Options. Otherwise pages load it from datastarSrc directly.
func (v *V) ensureDatastarHandler() {
	v.datastarOnce.Do(func() {
		if v.datastarContent == nil || !strings.HasPrefix(v.datastarSrc, "/") {
			return
		}
		v.mux.HandleFunc("GET "+v.datastarSrc, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write(v.datastarContent)
		})
	})
}

type patchType int

const (
	patchTypeElements patchType = iota
	patchTypeScript
)

type patch struct {
	typ     patchType
	content string
}

// New creates a new *V application with default configuration.
func New() *V {
	v := &V{
		mux:             http.NewServeMux(),
		logger:          newConsoleLogger(zerolog.InfoLevel),
		contextRegistry: make(map[string]*Context),
		sessionManager:  scs.New(),
		datastarSrc:     defaultDatastarSrc,
		cfg: Options{
			ServerAddress: ":3000",
			DocumentTitle: "live",
		},
	}

	v.mux.HandleFunc("GET /_sse", v.handleSSE)
	v.mux.HandleFunc("GET /_action/{id}", v.handleAction)
	v.mux.HandleFunc("POST /_session/close", v.handleSessionClose)
	return v
}

func (v *V) handleSSE(w http.ResponseWriter, r *http.Request) {
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs["live-ctx"].(string)

	c, err := v.getCtx(cID)
	if err != nil {
		v.logErr(nil, "sse stream failed to start: %v", err)
		http.Error(w, "unknown context", http.StatusNotFound)
		return
	}

	sse := datastar.NewSSE(w, r, datastar.WithCompression(datastar.WithBrotli(datastar.WithBrotliLevel(5))))
	c.sseConnected.Store(true)
	v.logDebug(c, "SSE connection established")

	go c.Sync()

	for {
		select {
		case <-sse.Context().Done():
			v.logDebug(c, "SSE connection ended")
			v.cleanupCtx(c)
			return
		case <-c.ctxDisposedChan:
			v.logDebug(c, "context disposed, closing SSE")
			return
		case p := <-c.patchChan:
			var err error
			switch p.typ {
			case patchTypeElements:
				err = sse.PatchElements(p.content)
			case patchTypeScript:
				err = sse.ExecuteScript(p.content, datastar.WithExecuteScriptAutoRemove(true))
			}
			// a closed connection is not worth logging
			if err != nil && sse.Context().Err() == nil {
				v.logErr(c, "send patch failed: %v", err)
			}
		}
	}
}

func (v *V) handleAction(w http.ResponseWriter, r *http.Request) {
	actionID := r.PathValue("id")
	var sigs map[string]any
	_ = datastar.ReadSignals(r, &sigs)
	cID, _ := sigs["live-ctx"].(string)
	c, err := v.getCtx(cID)
	if err != nil {
		v.logErr(nil, "action '%s' failed: %v", actionID, err)
		http.Error(w, "unknown context", http.StatusNotFound)
		return
	}
	csrfToken, _ := sigs["live-csrf"].(string)
	if subtle.ConstantTimeCompare([]byte(csrfToken), []byte(c.csrfToken)) != 1 {
		v.logWarn(c, "action '%s' rejected: invalid CSRF token", actionID)
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}
	if c.actionLimiter != nil && !c.actionLimiter.Allow() {
		v.logWarn(c, "action '%s' rate limited", actionID)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	entry, err := c.getAction(actionID)
	if err != nil {
		v.logDebug(c, "action '%s' failed: %v", actionID, err)
		http.Error(w, "unknown action", http.StatusNotFound)
		return
	}
	if entry.limiter != nil && !entry.limiter.Allow() {
		v.logWarn(c, "action '%s' rate limited (per-action)", actionID)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			v.logErr(c, "action '%s' failed: %v", actionID, rec)
			http.Error(w, "action failed", http.StatusInternalServerError)
		}
	}()
	entry.fn()
}

func (v *V) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1024))
	if err != nil {
		v.logErr(nil, "error reading body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c, err := v.getCtx(string(bytes.TrimSpace(body)))
	if err != nil {
		v.logDebug(nil, "failed to handle session close: %v", err)
		return
	}
	v.logDebug(c, "session close event triggered")
	v.cleanupCtx(c)
}

func genRandID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func genCSRFToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
