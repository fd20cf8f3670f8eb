// Package gpagorm reads entity metadata from GORM models and checks it
// against a live database through GORM's migrator.
package gpagorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lemmego/gpameta"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// =====================================
// Connection
// =====================================

// Open connects to the database described by config
func Open(config gpameta.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NamingStrategy: NamingStrategy(config),
	}

	switch config.StringOption("gorm", "log_level") {
	case "silent":
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	case "error":
		gormConfig.Logger = logger.Default.LogMode(logger.Error)
	case "warn":
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	case "info":
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch strings.ToLower(config.Driver) {
	case "postgres", "postgresql", "pgsql", "pq":
		dialector = postgres.Open(buildPostgresDSN(config))
	case "mysql":
		dialector = mysql.Open(buildMySQLDSN(config))
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(buildSQLiteDSN(config))
	case "sqlserver", "mssql":
		dialector = sqlserver.Open(buildSQLServerDSN(config))
	default:
		return nil, gpameta.NewErrorf(gpameta.ErrorTypeUnsupported, "unsupported driver: %s", config.Driver)
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "failed to connect to database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "failed to get underlying sql.DB", err)
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
	return db, nil
}

// =====================================
// Validator
// =====================================

// Validator checks mapped tables and columns with the GORM migrator
type Validator struct {
	db *gorm.DB
}

// NewValidator creates a validator over an open connection
func NewValidator(db *gorm.DB) *Validator {
	return &Validator{db: db}
}

// Validate reports every table or column the source set maps to that the
// database lacks
func (v *Validator) Validate(ctx context.Context, set *gpameta.SourceSet) (*gpameta.ValidationReport, error) {
	expected, err := set.ExpectedTables()
	if err != nil {
		return nil, err
	}
	return gpameta.CheckTables(expected, migratorInspector{m: v.db.WithContext(ctx).Migrator()})
}

type migratorInspector struct {
	m gorm.Migrator
}

func (i migratorInspector) HasTable(table string) (bool, error) {
	return i.m.HasTable(table), nil
}

func (i migratorInspector) HasColumn(table, column string) (bool, error) {
	return i.m.HasColumn(table, column), nil
}

// =====================================
// Error Conversion
// =====================================

// convertGormError converts GORM errors to gpameta errors
func convertGormError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrNotImplemented):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeUnsupported, "operation not implemented", err)
	case errors.Is(err, gorm.ErrUnsupportedRelation):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeMapping, "unsupported relation", err)
	case errors.Is(err, gorm.ErrPrimaryKeyRequired):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeValidation, "primary key required", err)
	case errors.Is(err, gorm.ErrModelValueRequired):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeValidation, "model value required", err)
	case errors.Is(err, gorm.ErrInvalidData):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeValidation, "invalid data", err)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "unsupported data type"):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeMapping, "unsupported data type", err)
	case strings.Contains(errStr, "invalid field") || strings.Contains(errStr, "define a valid foreign key"):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeMapping, "invalid relation", err)
	case strings.Contains(errStr, "connection"):
		return gpameta.NewErrorWithCause(gpameta.ErrorTypeConnection, "connection error", err)
	}
	return gpameta.NewErrorWithCause(gpameta.ErrorTypeInternal, "gorm operation failed", err)
}

// =====================================
// DSN Builders
// =====================================

// buildPostgresDSN builds a PostgreSQL DSN
func buildPostgresDSN(config gpameta.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database)

	if config.SSL.Enabled {
		dsn += " sslmode=" + config.SSL.Mode
		if config.SSL.CertFile != "" {
			dsn += " sslcert=" + config.SSL.CertFile
		}
		if config.SSL.KeyFile != "" {
			dsn += " sslkey=" + config.SSL.KeyFile
		}
		if config.SSL.CAFile != "" {
			dsn += " sslrootcert=" + config.SSL.CAFile
		}
	} else {
		dsn += " sslmode=disable"
	}

	return dsn
}

// buildMySQLDSN builds a MySQL DSN
func buildMySQLDSN(config gpameta.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username, config.Password, config.Host, config.Port, config.Database)

	if config.SSL.Enabled {
		dsn += "&tls=" + config.SSL.Mode
	}

	return dsn
}

// buildSQLServerDSN builds a SQL Server DSN
func buildSQLServerDSN(config gpameta.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		config.Username, config.Password, config.Host, config.Port, config.Database)
}

func buildSQLiteDSN(config gpameta.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}
	if config.Database == "" {
		return ":memory:"
	}
	return config.Database
}
