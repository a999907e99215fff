package live

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteSessionManager(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sessions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS sessions_expiry_idx")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sm, err := NewSQLiteSessionManager(db)
	require.NoError(t, err)
	require.NotNil(t, sm)
	assert.Equal(t, 24*time.Hour, sm.Lifetime)

	store, ok := sm.Store.(*sqlite3store.SQLite3Store)
	require.True(t, ok, "sessions are stored in sqlite")
	store.StopCleanup()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLiteSessionManager_SchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("disk I/O error"))

	sm, err := NewSQLiteSessionManager(db)
	assert.Nil(t, sm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create sessions table")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSQLiteSessionManager_IndexError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX").WillReturnError(errors.New("locked"))

	_, err = NewSQLiteSessionManager(db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create sessions index")
	assert.NoError(t, mock.ExpectationsWereMet())
}
