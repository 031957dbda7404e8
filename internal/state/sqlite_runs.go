package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const runColumns = `id, model, scenario, months, years, status, started_at, completed_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateRun records a new run in the running state.
func (s *SQLiteStore) CreateRun(model, scenario string, months, years int) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{
		ID:        generateID(),
		Model:     model,
		Scenario:  scenario,
		Months:    months,
		Years:     years,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("model", model), slog.String("scenario", scenario))

	_, err := s.db.ExecContext(ctx(),
		`INSERT INTO runs (id, model, scenario, months, years, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Model, run.Scenario, run.Months, run.Years, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.ExecContext(ctx(),
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetLatestRun retrieves the most recent run of a model.
func (s *SQLiteStore) GetLatestRun(model string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx(),
		`SELECT `+runColumns+` FROM runs WHERE model = ? ORDER BY started_at DESC, rowid DESC LIMIT 1`, model))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No runs found, return nil without error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var status string
	var completedAt sql.NullTime
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &run.Model, &run.Scenario, &run.Months, &run.Years, &status,
		&run.StartedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// SaveSeries stores the computed series of a run, one row per key.
func (s *SQLiteStore) SaveSeries(runID string, series map[string][]float64) error {
	return s.saveValues("run_series", "key", runID, series)
}

// GetSeries loads the series saved for a run.
func (s *SQLiteStore) GetSeries(runID string) (map[string][]float64, error) {
	return s.loadValues("run_series", "key", runID)
}

// SaveLineItems stores the aggregated statement values of a run.
func (s *SQLiteStore) SaveLineItems(runID string, items map[string][]float64) error {
	return s.saveValues("run_line_items", "code", runID, items)
}

// GetLineItems loads the statement values saved for a run.
func (s *SQLiteStore) GetLineItems(runID string) (map[string][]float64, error) {
	return s.loadValues("run_line_items", "code", runID)
}

func (s *SQLiteStore) saveValues(table, keyCol, runID string, values map[string][]float64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	tx, err := s.db.BeginTx(ctx(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx(),
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (run_id, %s, "values") VALUES (?, ?, ?)`, table, keyCol))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		encoded, err := json.Marshal(values[k])
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", k, err)
		}
		if _, err := stmt.ExecContext(ctx(), runID, k, string(encoded)); err != nil {
			return fmt.Errorf("failed to save %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("saved run values", slog.String("run_id", runID), slog.String("table", table), slog.Int("count", len(keys)))
	return nil
}

func (s *SQLiteStore) loadValues(table, keyCol, runID string) (map[string][]float64, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx(),
		fmt.Sprintf(`SELECT %s, "values" FROM %s WHERE run_id = ? ORDER BY %s`, keyCol, table, keyCol), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]float64)
	for rows.Next() {
		var key, encoded string
		if err := rows.Scan(&key, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		var values []float64
		if err := json.Unmarshal([]byte(encoded), &values); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", key, err)
		}
		out[key] = values
	}
	return out, rows.Err()
}
