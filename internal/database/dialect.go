package database

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/driver/clickhouse"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported store drivers
const (
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
	DriverSQLite     = "sqlite"
)

// Dialect supplies the driver-specific pieces of SQL: connection, DDL and calendar bucketing
type Dialect interface {
	Name() string
	Open(dsn string) gorm.Dialector
	// DayBucket renders column as a YYYY-MM-DD string
	DayBucket(column string) string
	// MonthBucket renders column as a YYYY-MM string
	MonthBucket(column string) string
	Schema() []string
}

// DialectFor returns the dialect registered under driver
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverClickHouse:
		return clickHouseDialect{}, nil
	case DriverPostgres, "postgresql":
		return postgresDialect{}, nil
	case DriverSQLite, "sqlite3":
		return sqliteDialect{}, nil
	default:
		return nil, errors.Errorf("unsupported database driver %q", driver)
	}
}

// tableLayout is the logical shape of one append-only table
type tableLayout struct {
	name     string
	columns  [][2]string // name, logical type
	ordering []string
}

// Logical types, mapped per dialect
const (
	typeUUID      = "uuid"
	typeString    = "string"
	typeFloat     = "float"
	typeUInt16    = "uint16"
	typeTimestamp = "timestamp"
)

var layouts = []tableLayout{
	{
		name: "events",
		columns: [][2]string{
			{"event_id", typeUUID},
			{"event_type", typeString},
			{"user_id", typeString},
			{"job_id", typeString},
			{"metadata", typeString},
			{"timestamp", typeTimestamp},
		},
		ordering: []string{"timestamp", "event_type", "job_id"},
	},
	{
		name: "system_metrics",
		columns: [][2]string{
			{"service", typeString},
			{"endpoint", typeString},
			{"status_code", typeUInt16},
			{"latency_ms", typeFloat},
			{"timestamp", typeTimestamp},
		},
		ordering: []string{"timestamp", "service", "endpoint"},
	},
	{
		name: "financial_events",
		columns: [][2]string{
			{"event_id", typeUUID},
			{"user_id", typeString},
			{"counterparty_id", typeString},
			{"amount", typeFloat},
			{"currency", typeString},
			{"category", typeString},
			{"job_id", typeString},
			{"transaction_id", typeString},
			{"cost_center", typeString},
			{"timestamp", typeTimestamp},
		},
		ordering: []string{"timestamp", "category", "user_id"},
	},
}

func columnList(layout tableLayout, typeOf func(string) string) string {
	defs := make([]string, 0, len(layout.columns))
	for _, col := range layout.columns {
		defs = append(defs, fmt.Sprintf("%s %s", col[0], typeOf(col[1])))
	}
	return strings.Join(defs, ", ")
}

// indexedSchema renders CREATE TABLE plus a composite index carrying the ordering key
func indexedSchema(typeOf func(string) string) []string {
	stmts := make([]string, 0, len(layouts)*2)
	for _, layout := range layouts {
		stmts = append(stmts,
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", layout.name, columnList(layout, typeOf)),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_order ON %s (%s)",
				layout.name, layout.name, strings.Join(layout.ordering, ", ")),
		)
	}
	return stmts
}

type clickHouseDialect struct{}

func (clickHouseDialect) Name() string { return DriverClickHouse }

func (clickHouseDialect) Open(dsn string) gorm.Dialector { return clickhouse.Open(dsn) }

func (clickHouseDialect) DayBucket(column string) string {
	return fmt.Sprintf("toString(toDate(%s))", column)
}

func (clickHouseDialect) MonthBucket(column string) string {
	return fmt.Sprintf("formatDateTime(%s, '%%Y-%%m')", column)
}

func (clickHouseDialect) Schema() []string {
	typeOf := func(t string) string {
		switch t {
		case typeUUID:
			return "UUID"
		case typeFloat:
			return "Float64"
		case typeUInt16:
			return "UInt16"
		case typeTimestamp:
			return "DateTime64(3, 'UTC')"
		default:
			return "String"
		}
	}

	stmts := make([]string, 0, len(layouts))
	for _, layout := range layouts {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY (%s)",
			layout.name, columnList(layout, typeOf), strings.Join(layout.ordering, ", "),
		))
	}
	return stmts
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return DriverPostgres }

func (postgresDialect) Open(dsn string) gorm.Dialector { return postgres.Open(dsn) }

func (postgresDialect) DayBucket(column string) string {
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM-DD')", column)
}

func (postgresDialect) MonthBucket(column string) string {
	return fmt.Sprintf("to_char(%s AT TIME ZONE 'UTC', 'YYYY-MM')", column)
}

func (postgresDialect) Schema() []string {
	return indexedSchema(func(t string) string {
		switch t {
		case typeUUID:
			return "UUID NOT NULL"
		case typeFloat:
			return "DOUBLE PRECISION NOT NULL"
		case typeUInt16:
			return "INTEGER NOT NULL"
		case typeTimestamp:
			return "TIMESTAMPTZ(3) NOT NULL"
		default:
			return "TEXT NOT NULL DEFAULT ''"
		}
	})
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return DriverSQLite }

func (sqliteDialect) Open(dsn string) gorm.Dialector { return sqlite.Open(dsn) }

func (sqliteDialect) DayBucket(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", column)
}

func (sqliteDialect) MonthBucket(column string) string {
	return fmt.Sprintf("strftime('%%Y-%%m', %s)", column)
}

func (sqliteDialect) Schema() []string {
	return indexedSchema(func(t string) string {
		switch t {
		case typeUUID:
			return "TEXT NOT NULL"
		case typeFloat:
			return "REAL NOT NULL"
		case typeUInt16:
			return "INTEGER NOT NULL"
		case typeTimestamp:
			return "DATETIME NOT NULL"
		default:
			return "TEXT NOT NULL DEFAULT ''"
		}
	})
}
