package export

import (
	"context"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func() Sink { return NewDuckDBSink() })
}

// DuckDBSink writes results to a DuckDB database file.
type DuckDBSink struct {
	*sqlSink
}

// NewDuckDBSink creates a new DuckDB sink instance.
func NewDuckDBSink() *DuckDBSink {
	return &DuckDBSink{sqlSink: newSQLSink(dialect{
		name:        "duckdb",
		driver:      "duckdb",
		textType:    "VARCHAR",
		intType:     "INTEGER",
		floatType:   "DOUBLE",
		placeholder: questionMarks,
	})}
}

// Connect opens DuckDB at cfg.Path.
// Use ":memory:" as the path for an in-memory database.
func (s *DuckDBSink) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if cfg.DSN != "" {
		path = cfg.DSN
	}
	if path == ":memory:" {
		path = ""
	}
	return s.open(ctx, path, cfg)
}

// Ensure DuckDBSink implements Sink interface
var _ Sink = (*DuckDBSink)(nil)
