package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"example.com/backstage/services/analytics/config"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is the adapter over the analytics store. Appends go to the primary
// connection, queries to the read-only connection.
type Store struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
	dialect    Dialect
}

// Connect opens the primary and read-only connections described by cfg
func Connect(cfg config.DatabaseConfig) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := open(dialect, cfg.DSN, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDB := db
	if cfg.ReadOnlyDSN != "" && cfg.ReadOnlyDSN != cfg.DSN {
		readOnlyDB, err = open(dialect, cfg.ReadOnlyDSN, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to read-only database")
		}
	}

	log.Info().Str("driver", dialect.Name()).Msg("Connected to analytics store")

	return NewStore(db, readOnlyDB, dialect), nil
}

// NewStore wraps already opened connections
func NewStore(db, readOnlyDB *gorm.DB, dialect Dialect) *Store {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return &Store{db: db, readOnlyDB: readOnlyDB, dialect: dialect}
}

func open(dialect Dialect, dsn string, cfg config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.LogQueries {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialect.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}

	if dialect.Name() == DriverSQLite {
		// sqlite allows a single writer; in-memory databases also vanish with their last connection
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return db, nil
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return db, nil
}

// Dialect returns the SQL dialect of the store
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Bootstrap creates every analytics table that does not exist yet
func (s *Store) Bootstrap(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return newStorageError("bootstrap", "", err)
		}
	}

	log.Info().Str("driver", s.dialect.Name()).Msg("Analytics schema ready")
	return nil
}

// Insert appends rows to table in a single statement. Each row must align with columns.
func (s *Store) Insert(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	if !identifier.MatchString(table) {
		return newStorageError("insert", table, errors.New("invalid table name"))
	}
	for _, col := range columns {
		if !identifier.MatchString(col) {
			return newStorageError("insert", table, errors.Errorf("invalid column name %q", col))
		}
	}

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	tuples := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return newStorageError("insert", table,
				errors.Errorf("row %d has %d values, expected %d", i, len(row), len(columns)))
		}
		tuples = append(tuples, tuple)
		args = append(args, row...)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(tuples, ", "))

	if err := s.db.WithContext(ctx).Exec(stmt, args...).Error; err != nil {
		return newStorageError("insert", table, err)
	}

	return nil
}

// Query runs a read statement with bound arguments and scans every row into dest,
// a pointer to a slice of structs or to a scalar. No matching rows is not an error.
func (s *Store) Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := s.readOnlyDB.WithContext(ctx).Raw(query, args...).Scan(dest).Error; err != nil {
		return newStorageError("query", "", err)
	}
	return nil
}

// Ping checks that the primary connection is alive
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return newStorageError("ping", "", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return newStorageError("ping", "", err)
	}
	return nil
}

// Close closes both connections
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	if s.readOnlyDB != s.db {
		if readSQLDB, err := s.readOnlyDB.DB(); err == nil {
			if err := readSQLDB.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close read-only connection")
			}
		}
	}

	return sqlDB.Close()
}
