// Package export writes the series and statement values of a run to an
// external database for analysis outside leapfm.
//
// Every sink stores one long-format table with a row per (run, kind,
// name, period). Sinks self-register by type name; see Register.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// DefaultTable is the table written when Config.Table is empty.
const DefaultTable = "leapfm_results"

// Row kinds.
const (
	KindSeries   = "series"
	KindLineItem = "line_item"
)

// Config holds the connection settings of an export target.
type Config struct {
	// Type selects the sink (e.g., "duckdb", "postgres", "sqlite")
	Type string `koanf:"type"`

	// Path is the file path for file-based databases.
	// Use ":memory:" for in-memory databases
	Path string `koanf:"path"`

	// DSN overrides the connection string built from the other fields
	DSN string `koanf:"dsn"`

	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Table is the destination table, optionally schema-qualified
	Table string `koanf:"table"`

	// Options contains additional driver-specific options
	Options map[string]string `koanf:"options"`
}

// Batch is the payload of one export.
type Batch struct {
	RunID     string
	Scenario  string
	Series    map[string][]float64
	LineItems map[string][]float64
}

// Rows returns the number of rows the batch expands to.
func (b Batch) Rows() int {
	n := 0
	for _, s := range b.Series {
		n += len(s)
	}
	for _, s := range b.LineItems {
		n += len(s)
	}
	return n
}

// Sink defines the interface every export target implements.
type Sink interface {
	// Connect opens the target database.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Write replaces any rows of b.RunID with the batch and returns the
	// number of rows inserted.
	Write(ctx context.Context, b Batch) (int64, error)

	// DialectName returns the SQL dialect of the sink.
	DialectName() string
}

// dialect captures what differs between database/sql backends.
type dialect struct {
	name        string
	driver      string
	textType    string
	intType     string
	floatType   string
	placeholder func(i int) string
}

func questionMarks(int) string { return "?" }

func dollarN(i int) string { return fmt.Sprintf("$%d", i) }

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// sqlSink implements Sink over database/sql.
type sqlSink struct {
	db      *sql.DB
	dialect dialect
	table   string
	logger  *slog.Logger
}

func newSQLSink(d dialect) *sqlSink {
	return &sqlSink{dialect: d, table: DefaultTable, logger: slog.New(slog.DiscardHandler)}
}

// NewWithDB wraps an open connection in the sink of the given type.
func NewWithDB(db *sql.DB, sinkType, table string, logger *slog.Logger) (Sink, error) {
	factory, ok := Get(sinkType)
	if !ok {
		return nil, fmt.Errorf("unknown export type %q (available: %s)", sinkType, strings.Join(List(), ", "))
	}
	sink, ok := factory().(interface{ attach(*sql.DB, string, *slog.Logger) error })
	if !ok {
		return nil, fmt.Errorf("export type %q cannot wrap a connection", sinkType)
	}
	if err := sink.attach(db, table, logger); err != nil {
		return nil, err
	}
	return sink.(Sink), nil
}

func (s *sqlSink) attach(db *sql.DB, table string, logger *slog.Logger) error {
	if table == "" {
		table = DefaultTable
	}
	if !tablePattern.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	if logger != nil {
		s.logger = logger
	}
	s.db = db
	s.table = table
	return nil
}

func (s *sqlSink) open(ctx context.Context, dsn string, cfg Config) error {
	db, err := sql.Open(s.dialect.driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", s.dialect.name, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", s.dialect.name, err)
	}
	if err := s.attach(db, cfg.Table, nil); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

// Close closes the connection.
func (s *sqlSink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DialectName returns the SQL dialect of the sink.
func (s *sqlSink) DialectName() string {
	return s.dialect.name
}

func (s *sqlSink) createSQL() string {
	d := s.dialect
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (run_id %s NOT NULL, scenario %s NOT NULL, kind %s NOT NULL, name %s NOT NULL, period %s NOT NULL, amount %s NOT NULL)",
		s.table, d.textType, d.textType, d.textType, d.textType, d.intType, d.floatType,
	)
}

func (s *sqlSink) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE run_id = %s", s.table, s.dialect.placeholder(1)) //nolint:gosec // table name is validated
}

func (s *sqlSink) insertSQL() string {
	p := make([]string, 6)
	for i := range p {
		p[i] = s.dialect.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (run_id, scenario, kind, name, period, amount) VALUES (%s)", s.table, strings.Join(p, ", ")) //nolint:gosec // table name is validated
}

// Write replaces the rows of b.RunID inside one transaction.
func (s *sqlSink) Write(ctx context.Context, b Batch) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database connection not established")
	}
	if b.RunID == "" {
		return 0, fmt.Errorf("batch has no run id")
	}

	if _, err := s.db.ExecContext(ctx, s.createSQL()); err != nil {
		return 0, fmt.Errorf("failed to create table %s: %w", s.table, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.deleteSQL(), b.RunID); err != nil {
		return 0, fmt.Errorf("failed to clear previous rows: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var written int64
	for _, part := range []struct {
		kind   string
		values map[string][]float64
	}{{KindSeries, b.Series}, {KindLineItem, b.LineItems}} {
		for _, name := range sortedKeys(part.values) {
			for period, v := range part.values[name] {
				if _, err := stmt.ExecContext(ctx, b.RunID, b.Scenario, part.kind, name, period, v); err != nil {
					return written, fmt.Errorf("failed to insert %s %q: %w", part.kind, name, err)
				}
				written++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Debug("exported run", slog.String("sink", s.dialect.name), slog.String("table", s.table),
		slog.String("run_id", b.RunID), slog.Int64("rows", written))
	return written, nil
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
