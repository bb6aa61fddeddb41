package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pagecraft/internal/domain"
)

// DB wraps the SQL connection together with the dialect it speaks.
type DB struct {
	conn   *sql.DB
	driver domain.DatabaseDriver
}

// Open connects to a SQL backend and runs migrations. Use mongostore for
// MongoDB.
func Open(ctx context.Context, cfg domain.DatabaseConnection) (*DB, error) {
	var (
		driverName string
		dsn        string
		err        error
	)
	switch cfg.Driver {
	case domain.DatabaseDriverSQLite, "":
		cfg.Driver = domain.DatabaseDriverSQLite
		driverName = "sqlite"
		dsn, err = buildSQLiteDSN(&cfg)
	case domain.DatabaseDriverPostgres:
		driverName = "postgres"
		dsn = buildPostgresDSN(&cfg)
	case domain.DatabaseDriverMySQL:
		driverName = "mysql"
		dsn = buildMySQLDSN(&cfg)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == domain.DatabaseDriverSQLite {
		// SQLite only supports one writer
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	db := &DB{conn: conn, driver: cfg.Driver}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenSQLite opens (or creates) the SQLite file at path.
func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	return Open(ctx, domain.DatabaseConnection{Driver: domain.DatabaseDriverSQLite, Host: path})
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) Driver() domain.DatabaseDriver {
	return db.driver
}

// rebind rewrites ? placeholders for dialects that number them.
func (db *DB) rebind(query string) string {
	if db.driver != domain.DatabaseDriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, db.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, db.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, db.rebind(query), args...)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn in a transaction, committing when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// upsert returns an INSERT that overwrites the non-key columns when key
// already exists.
func (db *DB) upsert(table, key string, cols ...string) string {
	all := append([]string{key}, cols...)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(all)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(all, ", "), marks)
	sets := make([]string, len(cols))
	if db.driver == domain.DatabaseDriverMySQL {
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return q + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", key) + strings.Join(sets, ", ")
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, domain.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}
