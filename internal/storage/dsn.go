package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"pagecraft/internal/domain"
)

// buildSQLiteDSN creates the database directory and enables WAL with a busy
// timeout. Host is the file path.
func buildSQLiteDSN(conn *domain.DatabaseConnection) (string, error) {
	if conn.DSN != "" {
		return conn.DSN, nil
	}
	if conn.Host == "" {
		return "", fmt.Errorf("sqlite: database path is required")
	}
	if conn.Host != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(conn.Host), 0o755); err != nil {
			return "", fmt.Errorf("create db directory: %w", err)
		}
	}
	return conn.Host + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", nil
}

// buildPostgresDSN constructs a Postgres connection string.
func buildPostgresDSN(conn *domain.DatabaseConnection) string {
	if conn.DSN != "" {
		return conn.DSN
	}
	port := conn.Port
	if port == 0 {
		port = 5432
	}
	sslMode := conn.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		conn.Host, port, conn.Username, conn.Password, conn.Database, sslMode,
	)
}

// buildMySQLDSN constructs a MySQL DSN. clientFoundRows makes UPDATE report
// matched rows, which the version check relies on.
func buildMySQLDSN(conn *domain.DatabaseConnection) string {
	if conn.DSN != "" {
		return conn.DSN
	}
	port := conn.Port
	if port == 0 {
		port = 3306
	}
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("charset", "utf8mb4")
	params.Set("clientFoundRows", "true")
	if conn.SSLMode == "require" {
		params.Set("tls", "true")
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		conn.Username, conn.Password, conn.Host, port, conn.Database, params.Encode(),
	)
}
