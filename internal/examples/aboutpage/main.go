package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/ryanhamamura/live"
	"github.com/ryanhamamura/live/counter"
	"github.com/ryanhamamura/live/h"
	"github.com/ryanhamamura/live/internal/config"
	"github.com/ryanhamamura/live/livenats"
)

const lifecycleStream = "LIFECYCLE"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Log.ZerologLevel()
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	if cfg.Log.Dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	gate, err := counter.GateByName(cfg.Counter.Gate)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid counter gate")
	}

	opts := live.Options{
		DevMode:       cfg.Log.Dev,
		Logger:        &logger,
		ServerAddress: cfg.Server.Address,
		DocumentTitle: "About",
		ContextTTL:    cfg.Server.ContextTTL,
	}

	if cfg.Sessions.DB != "" {
		db, err := sql.Open("sqlite3", cfg.Sessions.DB)
		if err != nil {
			logger.Fatal().Err(err).Msg("open session database")
		}
		defer db.Close()
		sm, err := live.NewSQLiteSessionManager(db)
		if err != nil {
			logger.Fatal().Err(err).Msg("create session manager")
		}
		opts.SessionManager = sm
	}

	var ps *livenats.NATS
	if cfg.NATS.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ps, err = livenats.New(ctx, cfg.NATS.Dir)
		if err != nil {
			logger.Fatal().Err(err).Msg("start nats")
		}
		err = livenats.EnsureStream(ps, livenats.StreamConfig{
			Name:     lifecycleStream,
			Subjects: []string{counter.Subject(">")},
			MaxMsgs:  1000,
			MaxAge:   24 * time.Hour,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("ensure lifecycle stream")
		}
		opts.PubSub = ps
	}

	reg := prometheus.NewRegistry()
	metrics := counter.NewMetrics(reg)

	v := live.New()
	v.Config(opts)
	v.HTTPServeMux().Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	v.AppendToHead(h.StyleEl(h.Raw(`
		body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 2rem auto; }
		.counter button { min-width: 2.5rem; margin-right: .25rem; }
		.log { font-size: .85rem; color: #555; }
	`)))

	v.Page("/", func(c *live.Context) {
		visits := c.Session().GetInt("visits") + 1
		c.Session().Set("visits", visits)
		lastVisit := c.Session().PopString("lastVisit")
		c.Session().Set("lastVisit", time.Now().Format(time.Kitchen))

		message := cfg.Counter.Message
		if visits > 1 {
			message = fmt.Sprintf("%s (visit %d)", message, visits)
		}

		w, about := counter.Attach(c, message, counter.WithGate(gate), counter.WithMetrics(metrics))

		var mu sync.Mutex
		var events []counter.Event
		var earlier int
		if ps != nil && c.ID() != "" && cfg.NATS.Replay > 0 {
			if msgs, err := livenats.Last(ps, lifecycleStream, counter.Subject(">"), cfg.NATS.Replay); err != nil {
				logger.Warn().Err(err).Msg("replay lifecycle events")
			} else {
				earlier = len(msgs)
			}
		}
		if c.HasPubSub() {
			_, err := live.Subscribe(c, counter.Subject(w.ID()), func(evt counter.Event) {
				mu.Lock()
				events = append(events, evt)
				if len(events) > 20 {
					events = events[1:]
				}
				mu.Unlock()
				c.Sync()
			})
			if err != nil {
				logger.Warn().Err(err).Msg("subscribe to lifecycle events")
			}
		}

		c.View(func() h.H {
			mu.Lock()
			defer mu.Unlock()
			items := make([]h.H, 0, len(events))
			for i := len(events) - 1; i >= 0; i-- {
				items = append(items, h.Li(h.Code(h.Text(describe(events[i])))))
			}
			return h.Div(
				h.H1(h.Text("About")),
				h.If(lastVisit != "", h.Small(h.Textf("Last visit at %s", lastVisit))),
				about(),
				h.If(c.HasPubSub(), h.Section(
					h.Class("log"),
					h.H3(h.Text("Lifecycle")),
					h.If(earlier > 0, h.Small(h.Textf("%d earlier event(s) retained", earlier))),
					h.Ul(items...),
				)),
			)
		})
	})

	v.Start()
}

func describe(evt counter.Event) string {
	switch {
	case evt.Previous != nil && evt.Next != nil:
		return fmt.Sprintf("%s %d -> %d", evt.Kind, evt.Previous.Counter, evt.Next.Counter)
	case evt.Next != nil:
		return fmt.Sprintf("%s %d", evt.Kind, evt.Next.Counter)
	}
	return string(evt.Kind)
}
