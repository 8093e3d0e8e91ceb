package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/kabkimd/userprov/pkg/errors"
	"github.com/kabkimd/userprov/pkg/logging"
	"github.com/kabkimd/userprov/pkg/types"
)

// DefaultTable is the account table written by Migrate.
const DefaultTable = "auth_user"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Execer is the subset of *sql.DB used by the migrator.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Failure records a user whose upsert failed.
type Failure struct {
	Username string
	Err      error
}

// Result summarises a migration.
type Result struct {
	Total    int
	Upserted int
	Failures []Failure
}

// Migrator upserts user records into an account table.
type Migrator struct {
	db     Execer
	query  string
	logger zerolog.Logger
}

// New creates a Migrator writing to table.
func New(db Execer, table string) (*Migrator, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, perrors.Newf(perrors.ErrConfig, "invalid table name %q", table).
			WithDetail("key", "database.table")
	}
	return &Migrator{
		db:     db,
		query:  upsertQuery(table),
		logger: logging.GetLogger("migrate"),
	}, nil
}

func upsertQuery(table string) string {
	return fmt.Sprintf(`INSERT INTO %s
  (username, password_hash, email, full_name, is_public)
VALUES (?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  password_hash = VALUES(password_hash),
  email         = VALUES(email),
  full_name     = VALUES(full_name),
  is_public     = VALUES(is_public)`, table)
}

// Migrate upserts every record. It only returns an error when ctx is done;
// per-user failures are reported in the Result.
func (m *Migrator) Migrate(ctx context.Context, users []types.UserRecord) (Result, error) {
	result := Result{Total: len(users)}
	m.logger.Info().Int("users", len(users)).Msg("Migrating users")

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return result, perrors.Wrap(err, perrors.ErrDatabase, "migration interrupted")
		}

		username := strings.ToLower(u.Username)
		_, err := m.db.ExecContext(ctx, m.query, Args(u)...)
		if err != nil {
			m.logger.Error().Err(err).Str("user", username).Msg("Failed to upsert user")
			result.Failures = append(result.Failures, Failure{
				Username: username,
				Err:      perrors.Wrap(err, perrors.ErrDatabase, "upsert failed").WithDetail(perrors.DetailUser, username),
			})
			continue
		}

		m.logger.Debug().Str("user", username).Msg("Upserted user")
		result.Upserted++
	}

	m.logger.Info().
		Int("upserted", result.Upserted).
		Int("failed", len(result.Failures)).
		Msg("Migration complete")

	return result, nil
}

// Args returns the statement arguments for u: lowercased username, password
// hash, email, full name and the visibility flag as 0 or 1. Empty optional
// fields become NULL.
func Args(u types.UserRecord) []any {
	isPublic := 0
	if u.IsPublic {
		isPublic = 1
	}
	return []any{
		strings.ToLower(u.Username),
		nullable(u.Password),
		nullable(u.Email),
		nullable(u.FullName),
		isPublic,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
