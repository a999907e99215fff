package live

import (
	"fmt"

	"github.com/ryanhamamura/live/h"
)

// ActionTrigger is a handle to a registered action, used to bind it to browser events.
type ActionTrigger struct {
	id string
}

// ID returns the action id used in the action URL.
func (a *ActionTrigger) ID() string {
	return a.id
}

// TriggerOption configures how an action trigger listens for its event.
type TriggerOption interface {
	apply(*triggerOpts)
}

type triggerOpts struct {
	window         bool
	preventDefault bool
}

type withWindowOpt struct{}

func (withWindowOpt) apply(opts *triggerOpts) { opts.window = true }

// WithWindow scopes the event listener to the window instead of the element.
func WithWindow() TriggerOption { return withWindowOpt{} }

type withPreventDefaultOpt struct{}

func (withPreventDefaultOpt) apply(opts *triggerOpts) { opts.preventDefault = true }

// WithPreventDefault stops the browser's default handling of the event.
func WithPreventDefault() TriggerOption { return withPreventDefaultOpt{} }

func applyOptions(options ...TriggerOption) triggerOpts {
	var opts triggerOpts
	for _, opt := range options {
		if opt != nil {
			opt.apply(&opts)
		}
	}
	return opts
}

func (a *ActionTrigger) expr(opts triggerOpts) string {
	call := fmt.Sprintf("@get('/_action/%s')", a.id)
	if opts.preventDefault {
		return "evt.preventDefault();" + call
	}
	return call
}

// OnClick returns an attribute that triggers the action on click.
func (a *ActionTrigger) OnClick(options ...TriggerOption) h.H {
	opts := applyOptions(options...)
	name := "on:click"
	if opts.window {
		name += "__window"
	}
	return h.Data(name, a.expr(opts))
}

// OnKeyDown returns an attribute that triggers the action when key is pressed.
// An empty key matches any key.
// See https://developer.mozilla.org/en-US/docs/Web/API/KeyboardEvent/key
func (a *ActionTrigger) OnKeyDown(key string, options ...TriggerOption) h.H {
	opts := applyOptions(options...)
	var condition string
	if key != "" {
		condition = fmt.Sprintf("evt.key==='%s' && ", key)
	}
	name := "on:keydown"
	if opts.window {
		name += "__window"
	}
	return h.Data(name, condition+"("+a.expr(opts)+")")
}
