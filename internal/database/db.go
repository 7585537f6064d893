// Package database opens the bun connection used by the repositories and
// runs schema migrations and seeding.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// Open connects to the database named by rawURL and verifies the connection.
// postgres:// and postgresql:// URLs use pgdriver; mysql:// URLs use the
// go-sql-driver/mysql driver. Queries are logged through log.
func Open(ctx context.Context, rawURL string, log logrus.FieldLogger) (*bun.DB, error) {
	sqldb, dialect, err := openSQL(rawURL)
	if err != nil {
		return nil, err
	}

	// Pool settings
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(25)
	sqldb.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var db *bun.DB
	switch dialect {
	case "mysql":
		db = bun.NewDB(sqldb, mysqldialect.New())
	default:
		db = bun.NewDB(sqldb, pgdialect.New())
	}
	db.AddQueryHook(NewQueryHook(log))
	return db, nil
}

func openSQL(rawURL string) (*sql.DB, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(rawURL))), "pg", nil
	case "mysql":
		dsn, err := MySQLDSN(u)
		if err != nil {
			return nil, "", err
		}
		sqldb, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, "", err
		}
		return sqldb, "mysql", nil
	default:
		return nil, "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}

// MySQLDSN converts a mysql:// URL into the driver's DSN format. parseTime
// is always on and times are read as UTC. clientFoundRows makes UPDATE report
// matched rows like Postgres does. Other query parameters are forwarded.
func MySQLDSN(u *url.URL) (string, error) {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Hostname() + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if cfg.DBName == "" {
		return "", fmt.Errorf("mysql url %q has no database name", u.Redacted())
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC

	params := map[string]string{"charset": "utf8mb4"}
	for k, vs := range u.Query() {
		if len(vs) > 0 && k != "parseTime" && k != "loc" {
			params[k] = vs[0]
		}
	}
	cfg.Params = params
	return cfg.FormatDSN(), nil
}
