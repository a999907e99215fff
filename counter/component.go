package counter

import (
	"github.com/ryanhamamura/live"
	"github.com/ryanhamamura/live/h"
)

// Attach adds a counter widget as a component of c and returns it together with
// its view for placement in c's view.
//
// The host mounts the widget when the page is first served, routes the "+" and
// "-" buttons and any WithKeys keys to Increment and Decrement, pushes every
// applied render to the browser, and disposes the widget with the page. When
// the application has a pub/sub backend, lifecycle events are published on
// Subject(w.ID()).
//
// Example:
//
//	v.Page("/about", func(c *live.Context) {
//		_, about := counter.Attach(c, "About page")
//		c.View(func() h.H { return h.Div(about()) })
//	})
func Attach(c *live.Context, message string, opts ...Option) (*Widget, func() h.H) {
	var w *Widget
	view := c.Component(func(cc *live.Context) {
		base := []Option{WithLogger(cc.Logger())}
		if cc.HasPubSub() {
			base = append(base, WithEvents(cc))
		}
		w = New(message, append(base, opts...)...)

		inc := cc.Action(w.Increment)
		dec := cc.Action(w.Decrement)
		incKey, decKey := w.Keys()
		w.Bind(trigger(inc, incKey), trigger(dec, decKey), cc.Sync)

		cc.OnMount(w.Mount)
		cc.OnDispose(w.Dispose)
		cc.View(w.View)
	})
	return w, view
}

func trigger(a *live.ActionTrigger, key string) h.H {
	if key == "" {
		return a.OnClick()
	}
	return h.Group(a.OnClick(), a.OnKeyDown(key, live.WithWindow()))
}
