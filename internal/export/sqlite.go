package export

import (
	"context"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

func init() {
	Register("sqlite", func() Sink { return NewSQLiteSink() })
}

// SQLiteSink writes results to a SQLite database file.
type SQLiteSink struct {
	*sqlSink
}

// NewSQLiteSink creates a new SQLite sink instance.
func NewSQLiteSink() *SQLiteSink {
	return &SQLiteSink{sqlSink: newSQLSink(dialect{
		name:        "sqlite",
		driver:      "sqlite",
		textType:    "TEXT",
		intType:     "INTEGER",
		floatType:   "REAL",
		placeholder: questionMarks,
	})}
}

// Connect opens the SQLite file at cfg.Path.
func (s *SQLiteSink) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if cfg.DSN != "" {
		path = cfg.DSN
	}
	if err := s.open(ctx, path, cfg); err != nil {
		return err
	}
	if path == ":memory:" {
		s.db.SetMaxOpenConns(1)
	}
	return nil
}

// Ensure SQLiteSink implements Sink interface
var _ Sink = (*SQLiteSink)(nil)
