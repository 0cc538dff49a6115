// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"embed"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported database types
const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

// Migrate brings the schema up to date.
// Safe to call on every start - goose skips applied migrations.
func Migrate(conn *sql.DB, dbType string) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect(dbType); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(conn, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

func sqliteDSN(path string) string {
	values := url.Values{}
	values.Set("_time_format", "sqlite")
	values.Add("_pragma", "journal_mode(WAL)")
	values.Add("_pragma", "synchronous(NORMAL)")
	values.Add("_pragma", "busy_timeout(5000)")

	return fmt.Sprintf("file:%s?%s", path, values.Encode())
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func rebind(dbType, query string) string {
	if dbType != TypePostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
