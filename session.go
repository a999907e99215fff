package live

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Session provides access to the browser session of a page request.
// Session data persists across page views for the same browser.
type Session struct {
	ctx     context.Context
	manager *scs.SessionManager
}

func (s *Session) ok() bool {
	return s.manager != nil && s.ctx != nil
}

// Get retrieves a value from the session.
func (s *Session) Get(key string) any {
	if !s.ok() {
		return nil
	}
	return s.manager.Get(s.ctx, key)
}

// GetString retrieves a string value from the session.
func (s *Session) GetString(key string) string {
	if !s.ok() {
		return ""
	}
	return s.manager.GetString(s.ctx, key)
}

// GetInt retrieves an int value from the session.
func (s *Session) GetInt(key string) int {
	if !s.ok() {
		return 0
	}
	return s.manager.GetInt(s.ctx, key)
}

// Set stores a value in the session.
func (s *Session) Set(key string, val any) {
	if !s.ok() {
		return
	}
	s.manager.Put(s.ctx, key, val)
}

// PopString retrieves a string value and deletes it from the session.
func (s *Session) PopString(key string) string {
	if !s.ok() {
		return ""
	}
	return s.manager.PopString(s.ctx, key)
}

// ID returns the session token, empty until the session is first written.
func (s *Session) ID() string {
	if !s.ok() {
		return ""
	}
	return s.manager.Token(s.ctx)
}

const sqliteSessionSchema = `CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	expiry REAL NOT NULL
)`

const sqliteSessionIndex = `CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry)`

// NewSQLiteSessionManager creates the sessions table in db if needed and
// returns a session manager backed by it. Expired sessions are removed every
// five minutes.
func NewSQLiteSessionManager(db *sql.DB) (*scs.SessionManager, error) {
	if _, err := db.Exec(sqliteSessionSchema); err != nil {
		return nil, fmt.Errorf("live: create sessions table: %w", err)
	}
	if _, err := db.Exec(sqliteSessionIndex); err != nil {
		return nil, fmt.Errorf("live: create sessions index: %w", err)
	}
	sm := scs.New()
	sm.Store = sqlite3store.NewWithCleanupInterval(db, 5*time.Minute)
	sm.Lifetime = 24 * time.Hour
	return sm, nil
}
