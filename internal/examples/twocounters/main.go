package main

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/ryanhamamura/live"
	"github.com/ryanhamamura/live/counter"
	"github.com/ryanhamamura/live/h"
)

// Two independent counters on one page. The right one hides decrements until
// the next increment. "+" and "-" drive the left counter from the keyboard,
// the up and down arrows the right one.

//go:embed counter.css
var counterCSS []byte

func main() {
	v := live.New()
	v.Config(live.Options{
		DevMode:       true,
		DocumentTitle: "Two counters",
		LogLevel:      live.LogLevelDebug,
		Plugins:       []live.Plugin{stylesPlugin},
	})

	v.Page("/", func(c *live.Context) {
		_, left := counter.Attach(c, "Always rendered", counter.WithKeys("+", "-"))
		_, right := counter.Attach(c, "Decrements hidden",
			counter.WithGate(counter.SkipDecrement),
			counter.WithKeys("ArrowUp", "ArrowDown"),
			counter.WithHooks(counter.Hooks{
				OnUpdated: func(_, next counter.State) {
					c.ExecScript(fmt.Sprintf("document.title = %q", fmt.Sprintf("Two counters (%d)", next.Counter)))
				},
			}),
		)

		c.View(func() h.H {
			return h.Div(left(), right())
		})
	})

	v.Start()
}

func stylesPlugin(v *live.V) {
	v.HTTPServeMux().HandleFunc("GET /_plugins/counter/style.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = w.Write(counterCSS)
	})
	v.AppendToHead(h.Link(h.Rel("stylesheet"), h.Href("/_plugins/counter/style.css")))
	v.AppendToFoot(h.P(h.Class("hint"), h.Text("Keys: + and - for the left counter, arrow up and down for the right one.")))
}
