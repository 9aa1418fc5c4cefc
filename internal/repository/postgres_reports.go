package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

func (s *PostgresStore) GetOperatorMetrics(ctx context.Context, operatorID int64, day string) (*OperatorMetricsRow, error) {
	base := `
		SELECT o.id, o.name, o.production_line, o.station, o.active, t.name, t.standard_seconds
		FROM operators o
		JOIN operator_tasks ot ON ot.operator_id = o.id AND ot.active
		JOIN tasks t ON t.id = ot.task_id
		WHERE o.id = $1
	`
	var row OperatorMetricsRow
	err := s.db.QueryRowContext(ctx, base, operatorID).Scan(
		&row.Operator.ID,
		&row.Operator.Name,
		&row.Operator.ProductionLine,
		&row.Operator.Station,
		&row.Operator.Active,
		&row.TaskName,
		&row.StandardSeconds,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator %d: %w", operatorID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	dayStats := `
		SELECT COUNT(*), AVG(duration_seconds)
		FROM cycle_records
		WHERE operator_id = $1 AND day = $2::date AND duration_seconds IS NOT NULL
	`
	var dayAverage sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, dayStats, operatorID, day).Scan(&row.CyclesToday, &dayAverage); err != nil {
		return nil, err
	}
	if dayAverage.Valid {
		row.DayAverageSeconds = &dayAverage.Float64
	}

	last := `
		SELECT average_seconds, status
		FROM cycle_records
		WHERE operator_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	var lastAverage sql.NullFloat64
	err = s.db.QueryRowContext(ctx, last, operatorID).Scan(&lastAverage, &row.LastStatus)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if lastAverage.Valid {
		row.LastAverageSeconds = &lastAverage.Float64
	}

	pause := `
		SELECT started_at
		FROM pause_records
		WHERE operator_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	var startedAt sql.NullTime
	err = s.db.QueryRowContext(ctx, pause, operatorID).Scan(&startedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if startedAt.Valid {
		row.OpenPauseStartedAt = &startedAt.Time
	}

	return &row, nil
}

func (s *PostgresStore) GetDashboard(ctx context.Context, day string) ([]DashboardRow, error) {
	query := `
		SELECT
			o.id,
			o.name,
			COUNT(rc.id) AS cycles_today,
			AVG(rc.duration_seconds) AS day_average,
			COALESCE((
				SELECT status FROM cycle_records
				WHERE operator_id = o.id
				ORDER BY recorded_at DESC LIMIT 1
			), 'No data') AS status,
			EXISTS(
				SELECT 1 FROM pause_records
				WHERE operator_id = o.id AND ended_at IS NULL
			) AS on_pause
		FROM operators o
		LEFT JOIN cycle_records rc ON rc.operator_id = o.id
			AND rc.day = $1::date
			AND rc.duration_seconds IS NOT NULL
		WHERE o.active
		GROUP BY o.id, o.name
		ORDER BY o.name
	`
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var board []DashboardRow
	for rows.Next() {
		var r DashboardRow
		var avg sql.NullFloat64
		if err := rows.Scan(&r.OperatorID, &r.Name, &r.CyclesToday, &avg, &r.Status, &r.OnPause); err != nil {
			return nil, err
		}
		if avg.Valid {
			r.DayAverageSeconds = &avg.Float64
		}
		board = append(board, r)
	}

	return board, rows.Err()
}

func (s *PostgresStore) GetDaySummary(ctx context.Context, day string) (*DaySummaryRow, error) {
	totals := `
		SELECT
			COUNT(DISTINCT o.id) AS active_operators,
			COUNT(DISTINCT CASE WHEN (
				SELECT status FROM cycle_records rc
				WHERE rc.operator_id = o.id AND rc.day = $1::date
				ORDER BY rc.recorded_at DESC LIMIT 1
			) = 'Excellent' THEN o.id END) AS excellent_operators,
			COUNT(DISTINCT CASE WHEN (
				SELECT status FROM cycle_records rc
				WHERE rc.operator_id = o.id AND rc.day = $1::date
				ORDER BY rc.recorded_at DESC LIMIT 1
			) = 'Slow' THEN o.id END) AS slow_operators,
			COALESCE((SELECT COUNT(*) FROM cycle_records WHERE day = $1::date), 0) AS total_cycles
		FROM operators o
		WHERE o.active
	`
	var summary DaySummaryRow
	err := s.db.QueryRowContext(ctx, totals, day).Scan(
		&summary.ActiveOperators,
		&summary.ExcellentOperators,
		&summary.SlowOperators,
		&summary.TotalCycles,
	)
	if err != nil {
		return nil, err
	}

	efficiency := `
		SELECT AVG(t.standard_seconds / rc.duration_seconds * 100)
		FROM cycle_records rc
		JOIN operator_tasks ot ON ot.operator_id = rc.operator_id AND ot.active
		JOIN tasks t ON t.id = ot.task_id
		WHERE rc.day = $1::date AND rc.duration_seconds IS NOT NULL
	`
	var avgEfficiency sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, efficiency, day).Scan(&avgEfficiency); err != nil {
		return nil, err
	}
	if avgEfficiency.Valid {
		summary.AverageEfficiency = &avgEfficiency.Float64
	}

	return &summary, nil
}

func (s *PostgresStore) GetDayOperators(ctx context.Context, day string) ([]DayOperatorRow, error) {
	query := `
		SELECT
			o.id,
			o.name,
			COALESCE((
				SELECT COUNT(*) FROM cycle_records
				WHERE operator_id = o.id AND day = $1::date
			), 0) AS cycles,
			(
				SELECT AVG(duration_seconds) FROM cycle_records
				WHERE operator_id = o.id AND day = $1::date AND duration_seconds IS NOT NULL
			) AS average_seconds,
			COALESCE((
				SELECT status FROM cycle_records
				WHERE operator_id = o.id AND day = $1::date
				ORDER BY recorded_at DESC LIMIT 1
			), 'No data') AS status,
			(
				SELECT t.standard_seconds FROM operator_tasks ot
				JOIN tasks t ON t.id = ot.task_id
				WHERE ot.operator_id = o.id AND ot.active
				LIMIT 1
			) AS standard_seconds,
			COALESCE((
				SELECT COUNT(*) FROM pause_records
				WHERE operator_id = o.id AND day = $1::date AND ended_at IS NOT NULL
			), 0) AS pauses,
			COALESCE((
				SELECT SUM(duration_seconds) / 60.0 FROM pause_records
				WHERE operator_id = o.id AND day = $1::date AND ended_at IS NOT NULL
			), 0) AS pause_minutes
		FROM operators o
		WHERE o.active
		ORDER BY o.name
	`
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var operators []DayOperatorRow
	for rows.Next() {
		var r DayOperatorRow
		var avg, standard sql.NullFloat64
		if err := rows.Scan(&r.OperatorID, &r.Name, &r.Cycles, &avg, &r.Status, &standard, &r.Pauses, &r.PauseMinutes); err != nil {
			return nil, err
		}
		if avg.Valid {
			r.AverageSeconds = &avg.Float64
		}
		if standard.Valid {
			r.StandardSeconds = &standard.Float64
		}
		operators = append(operators, r)
	}

	return operators, rows.Err()
}

func (s *PostgresStore) GetHistory(ctx context.Context, operatorID int64, from, to string) (*HistoryRows, error) {
	var history HistoryRows
	err := s.db.QueryRowContext(ctx, `SELECT name FROM operators WHERE id = $1`, operatorID).Scan(&history.OperatorName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator %d: %w", operatorID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var standard sql.NullFloat64
	standardQuery := `
		SELECT t.standard_seconds
		FROM operator_tasks ot
		JOIN tasks t ON t.id = ot.task_id
		WHERE ot.operator_id = $1 AND ot.active
		LIMIT 1
	`
	err = s.db.QueryRowContext(ctx, standardQuery, operatorID).Scan(&standard)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if standard.Valid {
		history.StandardSeconds = &standard.Float64
	}

	daysQuery := `
		SELECT
			day::text,
			COUNT(*) AS cycles,
			AVG(duration_seconds) AS average_seconds,
			COUNT(*) FILTER (WHERE status = 'Excellent') AS excellent,
			COUNT(*) FILTER (WHERE status = 'Normal') AS normal,
			COUNT(*) FILTER (WHERE status = 'Slow') AS slow
		FROM cycle_records
		WHERE operator_id = $1 AND day >= $2::date AND day <= $3::date
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.db.QueryContext(ctx, daysQuery, operatorID, from, to)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	for rows.Next() {
		var d DayCycleRow
		var avg sql.NullFloat64
		if err := rows.Scan(&d.Day, &d.Cycles, &avg, &d.Excellent, &d.Normal, &d.Slow); err != nil {
			return nil, err
		}
		if avg.Valid {
			d.AverageSeconds = &avg.Float64
		}
		history.Days = append(history.Days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pausesQuery := `
		SELECT day::text, COALESCE(reason, ''), COUNT(*), COALESCE(SUM(duration_seconds), 0)
		FROM pause_records
		WHERE operator_id = $1
		  AND ended_at IS NOT NULL
		  AND day >= $2::date AND day <= $3::date
		GROUP BY day, reason
	`
	pauseRows, err := s.db.QueryContext(ctx, pausesQuery, operatorID, from, to)
	if err != nil {
		return nil, err
	}
	defer closeRows(pauseRows)

	for pauseRows.Next() {
		var p DayPauseRow
		if err := pauseRows.Scan(&p.Day, &p.Reason, &p.Pauses, &p.TotalSeconds); err != nil {
			return nil, err
		}
		history.Pauses = append(history.Pauses, p)
	}

	return &history, pauseRows.Err()
}

func (s *PostgresStore) GetPauseReasons(ctx context.Context, from, to string) ([]PauseReasonRow, error) {
	query := `
		SELECT
			COALESCE(pr.reason, '') AS reason,
			COUNT(*) AS pauses,
			COALESCE(SUM(pr.duration_seconds), 0) / 60.0 AS total_minutes,
			COALESCE(AVG(pr.duration_seconds), 0) / 60.0 AS average_minutes,
			COUNT(DISTINCT pr.operator_id) AS operators,
			ARRAY_AGG(DISTINCT o.production_line) FILTER (WHERE o.production_line <> '') AS lines
		FROM pause_records pr
		JOIN operators o ON o.id = pr.operator_id
		WHERE pr.day >= $1::date AND pr.day <= $2::date AND pr.ended_at IS NOT NULL
		GROUP BY pr.reason
		ORDER BY pauses DESC
	`
	rows, err := s.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var reasons []PauseReasonRow
	for rows.Next() {
		var r PauseReasonRow
		var lines pq.StringArray
		if err := rows.Scan(&r.Reason, &r.Pauses, &r.TotalMinutes, &r.AverageMinutes, &r.Operators, &lines); err != nil {
			return nil, err
		}
		r.Lines = lines
		reasons = append(reasons, r)
	}

	return reasons, rows.Err()
}

func (s *PostgresStore) GetBottlenecks(ctx context.Context, day string) ([]BottleneckRow, error) {
	query := `
		SELECT
			o.id,
			o.name,
			o.station,
			o.production_line,
			AVG(rc.duration_seconds) AS average_seconds,
			t.standard_seconds,
			(AVG(rc.duration_seconds) / t.standard_seconds - 1) * 100 AS delay_percent
		FROM operators o
		JOIN cycle_records rc ON rc.operator_id = o.id
		JOIN operator_tasks ot ON ot.operator_id = o.id AND ot.active
		JOIN tasks t ON t.id = ot.task_id
		WHERE rc.day = $1::date AND rc.duration_seconds IS NOT NULL
		GROUP BY o.id, o.name, o.station, o.production_line, t.standard_seconds
		HAVING AVG(rc.duration_seconds) > t.standard_seconds * 1.1
		ORDER BY delay_percent DESC
	`
	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var bottlenecks []BottleneckRow
	for rows.Next() {
		var b BottleneckRow
		if err := rows.Scan(&b.OperatorID, &b.Name, &b.Station, &b.Line, &b.AverageSeconds, &b.StandardSeconds, &b.DelayPercent); err != nil {
			return nil, err
		}
		bottlenecks = append(bottlenecks, b)
	}

	return bottlenecks, rows.Err()
}

func (s *PostgresStore) GetComparison(ctx context.Context, operatorIDs []int64, from, to string) ([]ComparisonRow, error) {
	query := `
		SELECT
			o.id,
			o.name,
			COUNT(rc.id) AS cycles,
			AVG(rc.duration_seconds) AS average_seconds,
			COUNT(DISTINCT rc.day) AS days_worked,
			(
				SELECT t.standard_seconds FROM operator_tasks ot
				JOIN tasks t ON t.id = ot.task_id
				WHERE ot.operator_id = o.id AND ot.active
				LIMIT 1
			) AS standard_seconds
		FROM operators o
		LEFT JOIN cycle_records rc ON rc.operator_id = o.id
			AND rc.day >= $2::date AND rc.day <= $3::date
			AND rc.duration_seconds IS NOT NULL
		WHERE o.id = ANY($1)
		GROUP BY o.id, o.name
		ORDER BY o.name
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(operatorIDs), from, to)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var comparison []ComparisonRow
	for rows.Next() {
		var r ComparisonRow
		var avg, standard sql.NullFloat64
		if err := rows.Scan(&r.OperatorID, &r.Name, &r.Cycles, &avg, &r.DaysWorked, &standard); err != nil {
			return nil, err
		}
		if avg.Valid {
			r.AverageSeconds = &avg.Float64
		}
		if standard.Valid {
			r.StandardSeconds = &standard.Float64
		}
		comparison = append(comparison, r)
	}

	return comparison, rows.Err()
}
