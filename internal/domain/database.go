package domain

// DatabaseDriver selects the persistence backend.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

// DatabaseConnection holds what is needed to reach the backend. For sqlite
// Host is the database file path.
type DatabaseConnection struct {
	Driver   DatabaseDriver `json:"driver" yaml:"driver"`
	Host     string         `json:"host" yaml:"host"`
	Port     int            `json:"port" yaml:"port"`
	Database string         `json:"database" yaml:"database"`
	Username string         `json:"username" yaml:"username"`
	Password string         `json:"-" yaml:"password"`
	SSLMode  string         `json:"sslMode" yaml:"ssl_mode"`
	// DSN overrides every other field when set.
	DSN string `json:"-" yaml:"dsn"`
}
