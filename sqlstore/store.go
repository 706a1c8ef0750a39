// Package sqlstore implements the field schema store on SQL databases with
// gorm.
//
// SQLite, PostgreSQL and MySQL are supported. Every Field update runs in a
// single database transaction that row-locks the field, so writers of one
// field are serialized while writers of different fields proceed in parallel.
// SQLite has no row locks and serializes writers at the database level.
package sqlstore

import (
	"context"
	"fmt"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jacentio/taskfields/field"
)

// Supported dialects.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
	MySQL    = "mysql"
)

// Config holds configuration for the Store.
type Config struct {
	// Dialect is one of SQLite, Postgres or MySQL.
	// Default: SQLite
	Dialect string

	// NewID generates ids for created rows.
	// Default: uuid.NewString
	NewID func() string

	// BatchSize caps the rows of one multi-row INSERT.
	// Default: 500
	BatchSize int
}

// DefaultConfig returns the SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Dialect:   SQLite,
		NewID:     uuid.NewString,
		BatchSize: 500,
	}
}

func (c *Config) validate() {
	if c.Dialect == "" {
		c.Dialect = SQLite
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.BatchSize < 1 {
		c.BatchSize = 500
	}
}

// Store is a field.Store on a SQL database.
type Store struct {
	db     *gorm.DB
	config Config
}

var _ field.Store = (*Store)(nil)

// New wraps an open database. The gorm.Config of db should set
// TranslateError so constraint violations map to field errors.
func New(db *gorm.DB, config Config) *Store {
	config.validate()
	return &Store{db: db, config: config}
}

// GormConfig is the gorm configuration Open uses.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	}
}

// Open opens the database for the dialect and wraps it.
func Open(dialect, dsn string) (*Store, error) {
	dialector, err := newDialector(dialect, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	cfg := DefaultConfig()
	cfg.Dialect = dialect
	return New(db, cfg), nil
}

func newDialector(dialect, dsn string) (gorm.Dialector, error) {
	switch dialect {
	case SQLite:
		return sqlite.Open(sqliteDSN(dsn)), nil
	case Postgres:
		return postgres.Open(dsn), nil
	case MySQL:
		cfg, err := mysqldriver.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return mysql.Open(cfg.FormatDSN()), nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
}

// sqliteDSN switches on foreign key enforcement, which the cascades rely on.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on"
}

// DB returns the underlying database.
func (s *Store) DB() *gorm.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunInTx implements field.Store.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx field.Tx) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		fnErr = fn(ctx, &tx{db: gtx, config: s.config})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return fmt.Errorf("commit: %w", err)
	}
	return err
}

// FindField implements field.Store.
func (s *Store) FindField(ctx context.Context, productID, id string) (*field.Field, error) {
	return findField(s.db.WithContext(ctx), productID, id)
}

// ListFields implements field.Store.
func (s *Store) ListFields(ctx context.Context, productID string) ([]field.Field, error) {
	var rows []fieldModel
	err := withTree(s.db.WithContext(ctx)).
		Where("product_id = ?", productID).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	fields := make([]field.Field, 0, len(rows))
	for _, m := range rows {
		fields = append(fields, m.toField())
	}
	return fields, nil
}

// ListTaskValues implements field.Store.
func (s *Store) ListTaskValues(ctx context.Context, taskIDs ...string) ([]field.TaskValue, error) {
	return listTaskValues(s.db.WithContext(ctx), taskIDs)
}
