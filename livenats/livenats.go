// Package livenats provides an embedded NATS server with JetStream as a
// pub/sub backend for live applications.
package livenats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/delaneyj/toolbelt/embeddednats"
	"github.com/nats-io/nats.go"
	"github.com/ryanhamamura/live"
)

// NATS implements live.PubSub using an embedded NATS server with JetStream.
type NATS struct {
	server *embeddednats.Server
	nc     *nats.Conn
	js     nats.JetStreamContext
}

var _ live.PubSub = (*NATS)(nil)

// New starts an embedded NATS server with JetStream enabled, storing its data
// in dataDir. The server shuts down when ctx is cancelled.
func New(ctx context.Context, dataDir string) (*NATS, error) {
	ns, err := embeddednats.New(ctx, embeddednats.WithDirectory(dataDir))
	if err != nil {
		return nil, fmt.Errorf("livenats: start server: %w", err)
	}
	ns.WaitForServer()

	nc, err := ns.Client()
	if err != nil {
		ns.Close()
		return nil, fmt.Errorf("livenats: connect client: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		ns.Close()
		return nil, fmt.Errorf("livenats: init jetstream: %w", err)
	}

	return &NATS{server: ns, nc: nc, js: js}, nil
}

// Publish sends data on subject with a core NATS publish. A JetStream stream
// whose subjects match captures it.
func (n *NATS) Publish(subject string, data []byte) error {
	return n.nc.Publish(subject, data)
}

// Subscribe creates a core NATS subscription for real-time fan-out delivery.
func (n *NATS) Subscribe(subject string, handler func(data []byte)) (live.Subscription, error) {
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Close drains the client connection and shuts the embedded server down.
func (n *NATS) Close() error {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
	}
	return n.server.Close()
}

// Conn returns the underlying NATS connection.
func (n *NATS) Conn() *nats.Conn {
	return n.nc
}

// JetStream returns the JetStream context for stream configuration and replay.
func (n *NATS) JetStream() nats.JetStreamContext {
	return n.js
}

// StreamConfig describes a JetStream stream that retains published messages.
type StreamConfig struct {
	Name     string
	Subjects []string
	MaxMsgs  int64
	MaxAge   time.Duration
}

// EnsureStream creates the stream described by cfg, or updates it when a stream
// with that name already exists.
func EnsureStream(n *NATS, cfg StreamConfig) error {
	sc := &nats.StreamConfig{
		Name:      cfg.Name,
		Subjects:  cfg.Subjects,
		Retention: nats.LimitsPolicy,
		MaxMsgs:   cfg.MaxMsgs,
		MaxAge:    cfg.MaxAge,
	}
	_, err := n.js.AddStream(sc)
	if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		_, err = n.js.UpdateStream(sc)
	}
	if err != nil {
		return fmt.Errorf("livenats: ensure stream %q: %w", cfg.Name, err)
	}
	return nil
}

// Last returns up to limit most recent messages retained by stream on subject,
// oldest first.
func Last(n *NATS, stream, subject string, limit int) ([][]byte, error) {
	info, err := n.js.StreamInfo(stream)
	if err != nil {
		return nil, fmt.Errorf("livenats: stream info %q: %w", stream, err)
	}
	if info.State.Msgs == 0 || limit <= 0 {
		return nil, nil
	}
	sub, err := n.js.SubscribeSync(subject,
		nats.BindStream(stream),
		nats.DeliverAll(),
		nats.AckNone(),
	)
	if err != nil {
		return nil, fmt.Errorf("livenats: replay %q: %w", subject, err)
	}
	defer sub.Unsubscribe()

	var out [][]byte
	for {
		msg, err := sub.NextMsg(200 * time.Millisecond)
		if errors.Is(err, nats.ErrTimeout) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("livenats: replay %q: %w", subject, err)
		}
		out = append(out, msg.Data)
		if len(out) > limit {
			out = out[1:]
		}
	}
	return out, nil
}
