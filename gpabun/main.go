// Package gpabun reads entity metadata from Bun models and checks it against
// a live database.
package gpabun

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lemmego/gpameta"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// =====================================
// Connection
// =====================================

// Open creates a bun database for config. PostgreSQL goes through pgdriver
// unless the driver is "pq" or the bun "driver" option selects lib/pq.
func Open(config gpameta.Config) (*bun.DB, error) {
	var sqlDB *sql.DB
	var err error

	driver := strings.ToLower(config.Driver)
	switch driver {
	case "postgres", "postgresql", "pgsql", "pq":
		if driver == "pq" || config.StringOption("bun", "driver") == "pq" {
			sqlDB, err = createPostgresConnection(config)
		} else {
			sqlDB = createPgDriverConnection(config)
		}
	case "mysql":
		sqlDB, err = createMySQLConnection(config)
	case "sqlite", "sqlite3":
		sqlDB, err = createSQLiteConnection(config)
	default:
		return nil, gpameta.NewErrorf(gpameta.ErrorTypeUnsupported, "unsupported driver: %s", config.Driver)
	}
	if err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "failed to connect to database", err)
	}

	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	var db *bun.DB
	switch driver {
	case "mysql":
		db = bun.NewDB(sqlDB, mysqldialect.New())
	case "sqlite", "sqlite3":
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	default:
		db = bun.NewDB(sqlDB, pgdialect.New())
	}

	if logLevel := config.StringOption("bun", "log_level"); logLevel != "" && logLevel != "silent" {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(logLevel == "debug"),
		))
	}
	return db, nil
}

// =====================================
// Validator
// =====================================

// Validator checks mapped tables and columns against the database catalog
type Validator struct {
	db *bun.DB
}

// NewValidator creates a validator over db
func NewValidator(db *bun.DB) *Validator {
	return &Validator{db: db}
}

// Validate reports every table or column the source set maps to that the
// database lacks
func (v *Validator) Validate(ctx context.Context, set *gpameta.SourceSet) (*gpameta.ValidationReport, error) {
	expected, err := set.ExpectedTables()
	if err != nil {
		return nil, err
	}
	inspector := &catalogInspector{ctx: ctx, db: v.db, columns: make(map[string]map[string]bool)}
	return gpameta.CheckTables(expected, inspector)
}

// catalogInspector lists each table's columns once and answers from the cache
type catalogInspector struct {
	ctx     context.Context
	db      *bun.DB
	columns map[string]map[string]bool
}

func (i *catalogInspector) HasTable(table string) (bool, error) {
	cols, err := i.load(table)
	if err != nil {
		return false, err
	}
	return len(cols) > 0, nil
}

func (i *catalogInspector) HasColumn(table, column string) (bool, error) {
	cols, err := i.load(table)
	if err != nil {
		return false, err
	}
	return cols[column], nil
}

func (i *catalogInspector) load(table string) (map[string]bool, error) {
	if cols, ok := i.columns[table]; ok {
		return cols, nil
	}

	var names []string
	var err error
	switch i.db.Dialect().Name() {
	case dialect.SQLite:
		err = i.db.NewRaw("SELECT name FROM pragma_table_info(?)", table).Scan(i.ctx, &names)
	case dialect.MySQL:
		err = i.db.NewRaw(`
			SELECT column_name FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
		`, table).Scan(i.ctx, &names)
	default:
		schemaName, tableName := "", table
		if dot := strings.LastIndex(table, "."); dot >= 0 {
			schemaName, tableName = table[:dot], table[dot+1:]
		}
		err = i.db.NewRaw(`
			SELECT column_name FROM information_schema.columns
			WHERE table_name = ? AND table_schema = COALESCE(NULLIF(?, ''), current_schema())
		`, tableName, schemaName).Scan(i.ctx, &names)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, convertBunError(err)
	}

	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	i.columns[table] = cols
	return cols, nil
}

// =====================================
// Connection Helpers
// =====================================

// createPostgresConnection creates a PostgreSQL connection through lib/pq
func createPostgresConnection(config gpameta.Config) (*sql.DB, error) {
	return sql.Open("postgres", buildPostgresURL(config))
}

// createPgDriverConnection creates a PostgreSQL connection through bun's pgdriver
func createPgDriverConnection(config gpameta.Config) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(buildPostgresURL(config))))
}

func buildPostgresURL(config gpameta.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn = strings.Replace(dsn, "sslmode=disable", "sslmode="+config.SSL.Mode, 1)
	}
	return dsn
}

// createMySQLConnection creates a MySQL connection
func createMySQLConnection(config gpameta.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("mysql", config.ConnectionURL)
	}

	mysqlConfig := mysql.Config{
		User:      config.Username,
		Passwd:    config.Password,
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%d", config.Host, config.Port),
		DBName:    config.Database,
		ParseTime: true,
	}
	if config.SSL.Enabled {
		mysqlConfig.TLSConfig = config.SSL.Mode
	}

	return sql.Open("mysql", mysqlConfig.FormatDSN())
}

// createSQLiteConnection creates a SQLite connection
func createSQLiteConnection(config gpameta.Config) (*sql.DB, error) {
	if config.ConnectionURL != "" {
		return sql.Open("sqlite3", config.ConnectionURL)
	}
	database := config.Database
	if database == "" {
		database = ":memory:"
	}
	return sql.Open("sqlite3", database)
}

// =====================================
// Error Conversion
// =====================================

// convertBunError converts Bun errors to gpameta errors
func convertBunError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeNotFound, "record not found", err)
	case strings.Contains(err.Error(), "timeout"), strings.Contains(err.Error(), "connection"):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "connection error", err)
	default:
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeInternal, "database operation failed", err)
	}
}
