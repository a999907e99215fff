package live

import (
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/rs/zerolog"
)

func ptr(l zerolog.Level) *zerolog.Level { return &l }

var (
	LogLevelDebug = ptr(zerolog.DebugLevel)
	LogLevelInfo  = ptr(zerolog.InfoLevel)
	LogLevelWarn  = ptr(zerolog.WarnLevel)
	LogLevelError = ptr(zerolog.ErrorLevel)
)

// Plugin is a func that can mutate the app at configuration time, e.g. to add
// stylesheets to every page.
type Plugin func(v *V)

// Options defines configuration options for the application.
type Options struct {
	// DevMode switches logging to a human readable console writer.
	DevMode bool

	// The http server address. e.g. ':3000'
	ServerAddress string

	// LogLevel sets the minimum log level. nil keeps the default (Info).
	LogLevel *zerolog.Level

	// Logger overrides the default logger entirely. When set, LogLevel and
	// DevMode have no effect on logging.
	Logger *zerolog.Logger

	// The title of the HTML document.
	DocumentTitle string

	// Plugins applied in order by Config.
	Plugins []Plugin

	// SessionManager replaces the default in-memory session manager. Configure
	// it (lifetime, cookie, store) before passing it.
	SessionManager *scs.SessionManager

	// DatastarContent is served as the Datastar script when set. By default
	// pages load Datastar from a CDN.
	DatastarContent []byte

	// DatastarPath is the script src. With DatastarContent it is also the route
	// the content is served on. Defaults to "/_datastar.js" in that case.
	DatastarPath string

	// PubSub enables publish/subscribe messaging. Use livenats.New for an
	// embedded NATS backend, or supply any PubSub implementation.
	PubSub PubSub

	// ContextTTL is how long a page context may wait for its SSE stream before
	// it is disposed. Zero means 30s, negative disables the reaper.
	ContextTTL time.Duration

	// ActionRateLimit is the per-context action limit.
	ActionRateLimit RateLimitConfig
}
