// Package repository provides PostgreSQL persistence for operators, cycle
// records and pause intervals. The write paths serialize per operator with an
// advisory transaction lock so that concurrent pause transitions and cycle
// computations observe a consistent snapshot.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/lineops/boteo/internal/engine"
	"github.com/lineops/boteo/internal/model"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// queryer lets the snapshot helpers run against either the pool or a transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) ListOperators(ctx context.Context) ([]model.Operator, error) {
	query := `
		SELECT id, name, production_line, station, active
		FROM operators
		WHERE active
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var operators []model.Operator
	for rows.Next() {
		var o model.Operator
		if err := rows.Scan(&o.ID, &o.Name, &o.ProductionLine, &o.Station, &o.Active); err != nil {
			return nil, err
		}
		operators = append(operators, o)
	}

	return operators, rows.Err()
}

// RecordCycle persists one cycle completion: it gathers the operator's prior
// cycle, the pause intervals in the window and the recent valid durations,
// runs the cycle computation, and inserts the resulting record. The whole
// sequence runs in one transaction holding the operator's advisory lock.
func (s *PostgresStore) RecordCycle(ctx context.Context, operatorID int64, now time.Time) (*CycleOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	if err := lockOperator(ctx, tx, operatorID); err != nil {
		return nil, err
	}

	assignment, err := activeAssignment(ctx, tx, operatorID)
	if err != nil {
		return nil, err
	}

	previous, err := lastCycleTime(ctx, tx, operatorID)
	if err != nil {
		return nil, err
	}

	var pauses []model.PauseInterval
	if previous != nil {
		pauses, err = pausesInWindow(ctx, tx, operatorID, *previous, now)
		if err != nil {
			return nil, err
		}
	}

	day := model.Day(now)
	recent, err := recentValidDurations(ctx, tx, operatorID, day)
	if err != nil {
		return nil, err
	}

	result := engine.ComputeCycle(engine.ComputeInput{
		Now:             now,
		PreviousCycleAt: previous,
		Pauses:          pauses,
		RecentDurations: recent,
		Task:            assignment.Task,
	})

	record := model.CycleRecord{
		OperatorID:      operatorID,
		TaskID:          assignment.Task.ID,
		RecordedAt:      now,
		DurationSeconds: result.DurationSeconds,
		AverageSeconds:  result.AverageSeconds,
		Status:          result.Status,
		Day:             day,
	}

	insert := `
		INSERT INTO cycle_records
			(operator_id, task_id, recorded_at, duration_seconds, average_seconds, status, day)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date)
		RETURNING id
	`
	err = tx.QueryRowContext(
		ctx,
		insert,
		record.OperatorID,
		record.TaskID,
		record.RecordedAt,
		record.DurationSeconds,
		record.AverageSeconds,
		record.Status,
		record.Day,
	).Scan(&record.ID)
	if err != nil {
		return nil, err
	}

	var cyclesToday int
	count := `SELECT COUNT(*) FROM cycle_records WHERE operator_id = $1 AND day = $2::date`
	if err := tx.QueryRowContext(ctx, count, operatorID, day).Scan(&cyclesToday); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &CycleOutcome{
		Record:      record,
		CyclesToday: cyclesToday,
		Anomaly:     result.Anomaly,
	}, nil
}

// StartPause opens a pause interval for the operator. Returns
// engine.ErrPauseActive when one is already open.
func (s *PostgresStore) StartPause(ctx context.Context, operatorID int64, reason string, now time.Time) (*model.PauseInterval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	if err := lockOperator(ctx, tx, operatorID); err != nil {
		return nil, err
	}

	open, err := openPauses(ctx, tx, operatorID)
	if err != nil {
		return nil, err
	}

	var current *model.PauseInterval
	if len(open) > 0 {
		current = &open[0]
	}

	pause, err := engine.OpenPause(current, operatorID, reason, now)
	if err != nil {
		return nil, err
	}

	insert := `
		INSERT INTO pause_records (operator_id, started_at, reason, day)
		VALUES ($1, $2, $3, $4::date)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insert, pause.OperatorID, pause.StartedAt, pause.Reason, model.Day(now)).Scan(&pause.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &pause, nil
}

// EndPause closes the operator's open pause and stores its duration. Returns
// engine.ErrNoActivePause when nothing is open.
func (s *PostgresStore) EndPause(ctx context.Context, operatorID int64, now time.Time) (*model.PauseInterval, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	if err := lockOperator(ctx, tx, operatorID); err != nil {
		return nil, err
	}

	open, err := openPauses(ctx, tx, operatorID)
	if err != nil {
		return nil, err
	}

	closed, _, err := engine.ClosePause(open, now)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE pause_records
		SET ended_at = $1, duration_seconds = $2
		WHERE id = $3
	`
	if _, err := tx.ExecContext(ctx, update, closed.EndedAt, closed.DurationSeconds, closed.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &closed, nil
}

func (s *PostgresStore) CountOpenPauses(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pause_records WHERE ended_at IS NULL`).Scan(&count)
	return count, err
}

func (s *PostgresStore) CountCycles(ctx context.Context, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycle_records WHERE day = $1::date`, day).Scan(&count)
	return count, err
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func lockOperator(ctx context.Context, tx *sql.Tx, operatorID int64) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, operatorID)
	return err
}

func activeAssignment(ctx context.Context, q queryer, operatorID int64) (*model.Assignment, error) {
	query := `
		SELECT t.id, t.name, t.standard_seconds, t.excellent_threshold_seconds, t.slow_threshold_seconds
		FROM operator_tasks ot
		JOIN tasks t ON t.id = ot.task_id
		WHERE ot.operator_id = $1 AND ot.active
		LIMIT 1
	`
	a := model.Assignment{OperatorID: operatorID}
	err := q.QueryRowContext(ctx, query, operatorID).Scan(
		&a.Task.ID,
		&a.Task.Name,
		&a.Task.StandardSeconds,
		&a.Task.ExcellentThreshold,
		&a.Task.SlowThreshold,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator %d has no active task: %w", operatorID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func lastCycleTime(ctx context.Context, q queryer, operatorID int64) (*time.Time, error) {
	query := `
		SELECT recorded_at
		FROM cycle_records
		WHERE operator_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	var at time.Time
	err := q.QueryRowContext(ctx, query, operatorID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &at, nil
}

func pausesInWindow(ctx context.Context, q queryer, operatorID int64, from, to time.Time) ([]model.PauseInterval, error) {
	query := `
		SELECT id, operator_id, started_at, ended_at, reason, duration_seconds
		FROM pause_records
		WHERE operator_id = $1 AND started_at > $2 AND started_at < $3
	`
	rows, err := q.QueryContext(ctx, query, operatorID, from, to)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var pauses []model.PauseInterval
	for rows.Next() {
		var p model.PauseInterval
		if err := rows.Scan(&p.ID, &p.OperatorID, &p.StartedAt, &p.EndedAt, &p.Reason, &p.DurationSeconds); err != nil {
			return nil, err
		}
		pauses = append(pauses, p)
	}

	return pauses, rows.Err()
}

func openPauses(ctx context.Context, q queryer, operatorID int64) ([]model.PauseInterval, error) {
	query := `
		SELECT id, operator_id, started_at, reason
		FROM pause_records
		WHERE operator_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
	`
	rows, err := q.QueryContext(ctx, query, operatorID)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var pauses []model.PauseInterval
	for rows.Next() {
		var p model.PauseInterval
		if err := rows.Scan(&p.ID, &p.OperatorID, &p.StartedAt, &p.Reason); err != nil {
			return nil, err
		}
		pauses = append(pauses, p)
	}

	return pauses, rows.Err()
}

func recentValidDurations(ctx context.Context, q queryer, operatorID int64, day string) ([]float64, error) {
	query := `
		SELECT duration_seconds
		FROM cycle_records
		WHERE operator_id = $1
		  AND duration_seconds IS NOT NULL
		  AND day = $2::date
		ORDER BY recorded_at DESC
		LIMIT 4
	`
	rows, err := q.QueryContext(ctx, query, operatorID, day)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var durations []float64
	for rows.Next() {
		var d float64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		durations = append(durations, d)
	}

	return durations, rows.Err()
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Printf("failed to roll back transaction: %v", err)
	}
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		log.Printf("failed to close rows: %v", err)
	}
}
