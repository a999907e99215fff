package live

import (
	"errors"
	"fmt"
)

// ErrNoPubSub is returned by Publish and Subscribe when no backend is configured.
var ErrNoPubSub = errors.New("pubsub not configured")

// PubSub is an interface for publish/subscribe messaging backends.
// The livenats sub-package provides an embedded NATS implementation.
type PubSub interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
	Close() error
}

// Subscription represents an active subscription that can be manually unsubscribed.
type Subscription interface {
	Unsubscribe() error
}

// HasPubSub reports whether the application has a pub/sub backend.
func (c *Context) HasPubSub() bool {
	return c.app.pubsub != nil
}

// Publish sends data on subject. Contexts created at page registration publish
// nothing and report no error.
func (c *Context) Publish(subject string, data []byte) error {
	if c.id == "" {
		return nil
	}
	if c.app.pubsub == nil {
		return ErrNoPubSub
	}
	return c.app.pubsub.Publish(subject, data)
}

// Subscribe calls handler for every message on subject until the context is
// disposed or the subscription is unsubscribed. Handlers run on the backend's
// goroutines; call Sync from them to push view changes.
func (c *Context) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	if c.id == "" {
		return nil, nil
	}
	if c.app.pubsub == nil {
		return nil, ErrNoPubSub
	}
	sub, err := c.app.pubsub.Subscribe(subject, handler)
	if err != nil {
		return nil, fmt.Errorf("live: subscribe %q: %w", subject, err)
	}
	c.mu.Lock()
	c.subscriptions = append(c.subscriptions, sub)
	c.mu.Unlock()
	return sub, nil
}

func (c *Context) unsubscribeAll() {
	c.mu.Lock()
	subs := c.subscriptions
	c.subscriptions = nil
	c.mu.Unlock()
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.app.logWarn(c, "unsubscribe failed: %v", err)
		}
	}
}
