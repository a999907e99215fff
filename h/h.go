// Package h provides a Go-native DSL for HTML composition.
// Every element, attribute, and text node is constructed as a function that returns a [h.H] DOM node.
//
// Example:
//
//	h.Div(
//		h.H2(h.Text("About page")),
//		h.P(h.Textf("%d", 0)),
//	)
package h

import (
	"io"

	g "maragu.dev/gomponents"
	gc "maragu.dev/gomponents/components"
)

// H represents a DOM node.
type H interface {
	Render(w io.Writer) error
}

// Text creates a text DOM node that renders the escaped string t.
func Text(t string) H {
	return g.Text(t)
}

// Textf creates a text DOM node that renders the interpolated and escaped string format.
func Textf(format string, a ...any) H {
	return g.Textf(format, a...)
}

// Raw creates a text DOM node that renders the unescaped string s.
func Raw(s string) H {
	return g.Raw(s)
}

// Attr creates an attribute DOM node with a name and optional value.
// A name alone is a boolean attribute (like "disabled").
// More than one value makes Attr panic.
func Attr(name string, value ...string) H {
	return g.Attr(name, value...)
}

// If returns n when condition holds and nil otherwise. Nil nodes render nothing.
func If(condition bool, n H) H {
	if condition {
		return n
	}
	return nil
}

// Group renders the given nodes one after the other without a wrapping element.
func Group(children ...H) H {
	return g.Group(retype(children))
}

// HTML5Props defines properties for HTML5 pages. Title is always set, Description
// and Language only if non-empty.
type HTML5Props struct {
	Title       string
	Description string
	Language    string
	Head        []H
	Body        []H
	HTMLAttrs   []H
}

// HTML5 document template.
func HTML5(p HTML5Props) H {
	return gc.HTML5(gc.HTML5Props{
		Title:       p.Title,
		Description: p.Description,
		Language:    p.Language,
		Head:        retype(p.Head),
		Body:        retype(p.Body),
		HTMLAttrs:   retype(p.HTMLAttrs),
	})
}

func retype(nodes []H) []g.Node {
	out := make([]g.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
