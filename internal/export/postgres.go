package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", func() Sink { return NewPostgresSink() })
}

// PostgresSink writes results to PostgreSQL through pgx.
type PostgresSink struct {
	*sqlSink
}

// NewPostgresSink creates a new PostgreSQL sink instance.
func NewPostgresSink() *PostgresSink {
	return &PostgresSink{sqlSink: newSQLSink(dialect{
		name:        "postgres",
		driver:      "pgx",
		textType:    "TEXT",
		intType:     "INTEGER",
		floatType:   "DOUBLE PRECISION",
		placeholder: dollarN,
	})}
}

// Connect opens a PostgreSQL connection from cfg.
func (s *PostgresSink) Connect(ctx context.Context, cfg Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildPostgresDSN(cfg)
	}
	return s.open(ctx, dsn, cfg)
}

// buildPostgresDSN builds a keyword/value connection string.
func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if v, ok := cfg.Options["sslmode"]; ok {
		sslmode = v
	}

	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("dbname=%s", cfg.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if cfg.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", cfg.Username))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}

	extra := make([]string, 0, len(cfg.Options))
	for k := range cfg.Options {
		if k != "sslmode" {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s=%s", k, cfg.Options[k]))
	}
	return strings.Join(parts, " ")
}

// Ensure PostgresSink implements Sink interface
var _ Sink = (*PostgresSink)(nil)
