// Package paramsource loads known-good parameter values from a SQL database.
package paramsource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres
	_ "github.com/mattn/go-sqlite3"      // for sqlite3

	"api-contract-tester/internal/logger"
	"api-contract-tester/internal/types"
)

// DefaultQuery reads the two-column (name, value) parameter table.
const DefaultQuery = "SELECT name, value FROM contract_params"

// DBConfig holds database connection configuration. DSN takes precedence
// over the individual connection fields.
type DBConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Query    string `yaml:"query"`
}

// Enabled reports whether a database source is configured.
func (c DBConfig) Enabled() bool {
	return c.Driver != ""
}

// DataSourceName returns the DSN, building it from the connection fields when unset.
func (c DBConfig) DataSourceName() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database), nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			c.User, c.Password, c.Host, c.Port, c.Database), nil
	case "sqlserver":
		return fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			c.Host, c.Port, c.User, c.Password, c.Database), nil
	case "sqlite3":
		return c.Database, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", c.Driver)
	}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, error) {
	dsn, err := cfg.DataSourceName()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}
	return db, nil
}

// LoadFromDB runs query and returns its rows as a parameter table. The query
// must yield exactly two columns: the parameter name and its value. Later
// rows win over earlier ones with the same name.
func LoadFromDB(ctx context.Context, db *sql.DB, query string) (types.ValidParamTable, error) {
	if strings.TrimSpace(query) == "" {
		query = DefaultQuery
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter values: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	if len(cols) != 2 {
		return nil, fmt.Errorf("parameter query must return 2 columns (name, value), got %d", len(cols))
	}

	table := types.ValidParamTable{}
	for rows.Next() {
		var (
			name  string
			value any
		)
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan parameter row: %w", err)
		}
		if b, ok := value.([]byte); ok {
			value = string(b)
		}
		table[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read parameter rows: %w", err)
	}
	return table, nil
}

// Load opens the configured database, reads the parameter table and closes the connection.
func Load(ctx context.Context, cfg DBConfig, log *logger.Logger) (types.ValidParamTable, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	table, err := LoadFromDB(ctx, db, cfg.Query)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded %d parameter value(s) from %s", len(table), cfg.Driver)
	return table, nil
}
