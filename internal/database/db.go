package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/iliyamo/practice-booking/internal/config"
)

// Supported values of config.Config.DBDriver.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

//go:embed schema_mysql.sql
var mysqlSchema string

//go:embed schema_sqlite.sql
var sqliteSchema string

// Open connects to the database selected by cfg.DBDriver.
func Open(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == DriverSQLite {
		return OpenSQLite(cfg.SQLitePath)
	}
	return OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open(DriverMySQL, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	return db, ping(db)
}

// OpenSQLite opens (or creates) a SQLite database file.  Writers are
// serialised through a single connection; SQLite allows one writer at a
// time and this keeps transactions from failing with SQLITE_BUSY.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, ping(db)
}

func ping(db *sql.DB) error {
	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

// Migrate applies the embedded schema for driver.  Every statement is
// idempotent, so Migrate is safe to run on each start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	schema := mysqlSchema
	if driver == DriverSQLite {
		schema = sqliteSchema
	}
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
