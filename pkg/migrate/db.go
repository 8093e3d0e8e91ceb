package migrate

import (
	"context"
	"database/sql"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/kabkimd/userprov/pkg/config"
	perrors "github.com/kabkimd/userprov/pkg/errors"
)

// DSN builds the MySQL data source name for cfg.
func DSN(cfg config.Database) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.Timeout = cfg.Timeout
	return mc.FormatDSN()
}

// Open connects to the database described by cfg and verifies the
// connection.
func Open(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, perrors.Wrap(err, perrors.ErrDatabase, "cannot open database").
			WithDetail("host", cfg.Host)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, perrors.Wrap(err, perrors.ErrDatabase, "cannot reach database").
			WithDetail("host", cfg.Host)
	}
	return db, nil
}
