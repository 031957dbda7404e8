package export

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSink_WriteReplacesRun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "export.db")

	sink := NewSQLiteSink()
	require.NoError(t, sink.Connect(ctx, Config{Path: path}))
	defer func() { _ = sink.Close() }()

	batch := Batch{
		RunID:    "run-1",
		Scenario: "base",
		Series:   map[string][]float64{"subs.active": {100, 190, 271}},
	}
	n, err := sink.Write(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Writing the same run again replaces its rows.
	_, err = sink.Write(ctx, batch)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var count int
	var total float64
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(amount) FROM "+DefaultTable+" WHERE run_id = ?", "run-1").Scan(&count, &total))
	assert.Equal(t, 3, count)
	assert.InDelta(t, 561, total, 1e-9)
}

func TestDuckDBSink_InMemory(t *testing.T) {
	ctx := context.Background()
	sink := NewDuckDBSink()
	require.NoError(t, sink.Connect(ctx, Config{Path: ":memory:", Table: "fm"}))
	defer func() { _ = sink.Close() }()

	n, err := sink.Write(ctx, Batch{RunID: "r", LineItems: map[string][]float64{"pnl.ebitda": {1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var count int
	require.NoError(t, sink.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fm WHERE kind = 'line_item'").Scan(&count))
	assert.Equal(t, 2, count)
}
