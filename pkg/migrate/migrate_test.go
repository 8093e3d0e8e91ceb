package migrate

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabkimd/userprov/pkg/config"
	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/types"
)

type execCall struct {
	query string
	args  []any
}

type fakeExecer struct {
	calls  []execCall
	failOn map[string]error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.calls = append(f.calls, execCall{query: query, args: args})
	if err, ok := f.failOn[args[0].(string)]; ok {
		return nil, err
	}
	return nil, nil
}

func TestMigrate(t *testing.T) {
	db := &fakeExecer{failOn: map[string]error{"bob": errors.New("duplicate entry")}}
	m, err := New(db, "")
	require.NoError(t, err)

	result, err := m.Migrate(context.Background(), []types.UserRecord{
		{Username: "Alice", Password: "$2b$10$hash", Email: "alice@example.com", IsPublic: true},
		{Username: "bob"},
		{Username: "carol", FullName: "Carol C"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Upserted)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "bob", result.Failures[0].Username)
	assert.True(t, perrors.IsErrorCode(result.Failures[0].Err, perrors.ErrDatabase))

	require.Len(t, db.calls, 3, "failures do not stop the migration")
	assert.Contains(t, db.calls[0].query, "INSERT INTO auth_user")
	assert.Contains(t, db.calls[0].query, "ON DUPLICATE KEY UPDATE")
	assert.Equal(t, []any{"alice", "$2b$10$hash", "alice@example.com", nil, 1}, db.calls[0].args)
	assert.Equal(t, []any{"carol", nil, nil, "Carol C", 0}, db.calls[2].args)
}

func TestMigrateCancelled(t *testing.T) {
	db := &fakeExecer{}
	m, err := New(db, "accounts")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Migrate(ctx, []types.UserRecord{{Username: "alice"}})
	require.Error(t, err)
	assert.True(t, perrors.IsErrorCode(err, perrors.ErrDatabase))
	assert.Empty(t, db.calls)
}

func TestNewRejectsBadTable(t *testing.T) {
	for _, table := range []string{"auth_user; DROP TABLE x", "1users", "a-b"} {
		_, err := New(&fakeExecer{}, table)
		assert.True(t, perrors.IsErrorCode(err, perrors.ErrConfig), table)
	}

	m, err := New(&fakeExecer{}, "accounts")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.query, "INSERT INTO accounts"))
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.Database{
		Host:     "db.internal",
		Port:     3307,
		User:     "authsvc",
		Password: "secret",
		Name:     "auth",
		Timeout:  5 * time.Second,
	})

	assert.True(t, strings.HasPrefix(dsn, "authsvc:secret@tcp(db.internal:3307)/auth"), dsn)
	assert.Contains(t, dsn, "timeout=5s")
}
