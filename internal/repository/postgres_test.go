package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lineops/boteo/internal/engine"
	"github.com/lineops/boteo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := &PostgresStore{db: db}
	return db, mock, store
}

func expectLock(mock sqlmock.Sqlmock, operatorID int64) {
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs(operatorID).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "standard_seconds", "excellent_threshold_seconds", "slow_threshold_seconds",
	}).AddRow(7, "bottle capping", 13.0, 11.0, 15.0)
}

func TestNewPostgresStore(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		t.Skip("Integration test - requires real database")
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewPostgresStore("invalid connection string")
		assert.Error(t, err)
	})
}

func TestRecordCycle(t *testing.T) {
	ctx := context.Background()
	operatorID := int64(3582)
	now := time.Date(2025, 3, 10, 9, 0, 20, 0, time.UTC)
	prev := now.Add(-20 * time.Second)

	t.Run("subtracts closed pauses in the window", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT t.id, t.name, t.standard_seconds").
			WithArgs(operatorID).
			WillReturnRows(assignmentRows())
		mock.ExpectQuery("SELECT recorded_at").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"recorded_at"}).AddRow(prev))

		pauseEnd := prev.Add(8 * time.Second)
		mock.ExpectQuery("SELECT id, operator_id, started_at, ended_at").
			WithArgs(operatorID, prev, now).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "operator_id", "started_at", "ended_at", "reason", "duration_seconds",
			}).AddRow(1, operatorID, prev.Add(3*time.Second), pauseEnd, "Break", 5))

		mock.ExpectQuery("SELECT duration_seconds").
			WithArgs(operatorID, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"duration_seconds"}).AddRow(13.0))

		mock.ExpectQuery("INSERT INTO cycle_records").
			WithArgs(operatorID, int64(7), now, sqlmock.AnyArg(), sqlmock.AnyArg(), model.StatusNormal, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cycle_records`).
			WithArgs(operatorID, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		mock.ExpectCommit()

		outcome, err := store.RecordCycle(ctx, operatorID, now)
		require.NoError(t, err)

		require.NotNil(t, outcome.Record.DurationSeconds)
		assert.InDelta(t, 15.0, *outcome.Record.DurationSeconds, 1e-9)
		require.NotNil(t, outcome.Record.AverageSeconds)
		assert.InDelta(t, 14.0, *outcome.Record.AverageSeconds, 1e-9)
		assert.Equal(t, model.StatusNormal, outcome.Record.Status)
		assert.Equal(t, int64(42), outcome.Record.ID)
		assert.Equal(t, 2, outcome.CyclesToday)
		assert.False(t, outcome.Anomaly)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first cycle has no duration", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT t.id, t.name, t.standard_seconds").
			WithArgs(operatorID).
			WillReturnRows(assignmentRows())
		mock.ExpectQuery("SELECT recorded_at").
			WithArgs(operatorID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT duration_seconds").
			WithArgs(operatorID, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"duration_seconds"}))
		mock.ExpectQuery("INSERT INTO cycle_records").
			WithArgs(operatorID, int64(7), now, nil, nil, model.StatusNormal, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM cycle_records`).
			WithArgs(operatorID, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectCommit()

		outcome, err := store.RecordCycle(ctx, operatorID, now)
		require.NoError(t, err)

		assert.Nil(t, outcome.Record.DurationSeconds)
		assert.Nil(t, outcome.Record.AverageSeconds)
		assert.Equal(t, model.StatusNormal, outcome.Record.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("operator without active task", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT t.id, t.name, t.standard_seconds").
			WithArgs(operatorID).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := store.RecordCycle(ctx, operatorID, now)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStartPause(t *testing.T) {
	ctx := context.Background()
	operatorID := int64(3582)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("opens a new pause", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT id, operator_id, started_at, reason").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "operator_id", "started_at", "reason"}))
		mock.ExpectQuery("INSERT INTO pause_records").
			WithArgs(operatorID, now, "No Materials", "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
		mock.ExpectCommit()

		pause, err := store.StartPause(ctx, operatorID, "No Materials", now)
		require.NoError(t, err)

		assert.Equal(t, int64(9), pause.ID)
		assert.True(t, pause.Open())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects when a pause is already open", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT id, operator_id, started_at, reason").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "operator_id", "started_at", "reason"}).
				AddRow(4, operatorID, now.Add(-time.Minute), "Break"))
		mock.ExpectRollback()

		_, err := store.StartPause(ctx, operatorID, "No Materials", now)
		assert.ErrorIs(t, err, engine.ErrPauseActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEndPause(t *testing.T) {
	ctx := context.Background()
	operatorID := int64(3582)
	now := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)

	t.Run("closes the open pause", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		started := now.Add(-150 * time.Second)
		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT id, operator_id, started_at, reason").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "operator_id", "started_at", "reason"}).
				AddRow(4, operatorID, started, "Break"))
		mock.ExpectExec("UPDATE pause_records").
			WithArgs(now, int64(150), int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		pause, err := store.EndPause(ctx, operatorID, now)
		require.NoError(t, err)

		require.NotNil(t, pause.DurationSeconds)
		assert.Equal(t, int64(150), *pause.DurationSeconds)
		assert.False(t, pause.Open())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no open pause", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		expectLock(mock, operatorID)
		mock.ExpectQuery("SELECT id, operator_id, started_at, reason").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "operator_id", "started_at", "reason"}))
		mock.ExpectRollback()

		_, err := store.EndPause(ctx, operatorID, now)
		assert.ErrorIs(t, err, engine.ErrNoActivePause)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetOperatorMetrics(t *testing.T) {
	ctx := context.Background()
	operatorID := int64(3582)

	t.Run("unknown operator", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		mock.ExpectQuery("SELECT o.id, o.name, o.production_line").
			WithArgs(operatorID).
			WillReturnError(sql.ErrNoRows)

		_, err := store.GetOperatorMetrics(ctx, operatorID, "2025-03-10")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("operator with open pause", func(t *testing.T) {
		db, mock, store := setupMockDB(t)
		defer func() { _ = db.Close() }()

		pauseStart := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

		mock.ExpectQuery("SELECT o.id, o.name, o.production_line").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "name", "production_line", "station", "active", "task_name", "standard_seconds",
			}).AddRow(operatorID, "Ana Torres", "Line A", "Station 3", true, "bottle capping", 13.0))
		mock.ExpectQuery(`SELECT COUNT\(\*\), AVG\(duration_seconds\)`).
			WithArgs(operatorID, "2025-03-10").
			WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(8, 12.5))
		mock.ExpectQuery("SELECT average_seconds, status").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"average_seconds", "status"}).AddRow(12.1, "Normal"))
		mock.ExpectQuery("SELECT started_at").
			WithArgs(operatorID).
			WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(pauseStart))

		row, err := store.GetOperatorMetrics(ctx, operatorID, "2025-03-10")
		require.NoError(t, err)

		assert.Equal(t, "Ana Torres", row.Operator.Name)
		assert.Equal(t, 8, row.CyclesToday)
		require.NotNil(t, row.DayAverageSeconds)
		assert.InDelta(t, 12.5, *row.DayAverageSeconds, 1e-9)
		assert.Equal(t, "Normal", row.LastStatus)
		require.NotNil(t, row.OpenPauseStartedAt)
		assert.Equal(t, pauseStart, *row.OpenPauseStartedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetPauseReasons(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT").
		WithArgs("2025-03-01", "2025-03-10").
		WillReturnRows(sqlmock.NewRows([]string{
			"reason", "pauses", "total_minutes", "average_minutes", "operators", "lines",
		}).AddRow("No Materials", 25, 120.0, 4.8, 6, "{Line A,Line B}"))

	reasons, err := store.GetPauseReasons(context.Background(), "2025-03-01", "2025-03-10")
	require.NoError(t, err)
	require.Len(t, reasons, 1)

	assert.Equal(t, "No Materials", reasons[0].Reason)
	assert.Equal(t, 25, reasons[0].Pauses)
	assert.Equal(t, []string{"Line A", "Line B"}, reasons[0].Lines)
	assert.NoError(t, mock.ExpectationsWereMet())
}
