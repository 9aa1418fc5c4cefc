package engine

import (
	"testing"
	"time"

	"github.com/lineops/boteo/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTask = model.Task{
	ID:                 1,
	Name:               "bottle capping",
	StandardSeconds:    13,
	ExcellentThreshold: 11,
	SlowThreshold:      15,
}

func closedPause(start time.Time, seconds int64) model.PauseInterval {
	end := start.Add(time.Duration(seconds) * time.Second)
	return model.PauseInterval{
		OperatorID:      3582,
		StartedAt:       start,
		EndedAt:         &end,
		DurationSeconds: &seconds,
	}
}

func openPause(start time.Time) model.PauseInterval {
	return model.PauseInterval{OperatorID: 3582, StartedAt: start}
}

func TestComputeCycle_FirstCycleHasNoBaseline(t *testing.T) {
	res := ComputeCycle(ComputeInput{
		Now:  time.Now(),
		Task: testTask,
	})

	assert.Nil(t, res.DurationSeconds)
	assert.Nil(t, res.AverageSeconds)
	assert.Equal(t, model.StatusNormal, res.Status)
	assert.False(t, res.Anomaly)
}

func TestComputeCycle_SubtractsClosedPauses(t *testing.T) {
	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := prev.Add(20 * time.Second)

	res := ComputeCycle(ComputeInput{
		Now:             now,
		PreviousCycleAt: &prev,
		Pauses:          []model.PauseInterval{closedPause(prev.Add(3*time.Second), 5)},
		Task:            testTask,
	})

	require.NotNil(t, res.DurationSeconds)
	assert.InDelta(t, 15.0, *res.DurationSeconds, 1e-9)
}

func TestComputeCycle_OpenPauseForcesUnknown(t *testing.T) {
	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := prev.Add(20 * time.Second)

	res := ComputeCycle(ComputeInput{
		Now:             now,
		PreviousCycleAt: &prev,
		Pauses:          []model.PauseInterval{openPause(prev.Add(2 * time.Second))},
		Task:            testTask,
	})

	assert.Nil(t, res.DurationSeconds)
	assert.Nil(t, res.AverageSeconds)
	assert.Equal(t, model.StatusNormal, res.Status)
	assert.False(t, res.Anomaly, "incomplete pause accounting is not an anomaly")
}

func TestComputeCycle_OpenPauseWinsOverClosedOnes(t *testing.T) {
	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := prev.Add(60 * time.Second)

	res := ComputeCycle(ComputeInput{
		Now:             now,
		PreviousCycleAt: &prev,
		Pauses: []model.PauseInterval{
			closedPause(prev.Add(5*time.Second), 10),
			openPause(prev.Add(30 * time.Second)),
		},
		Task: testTask,
	})

	assert.Nil(t, res.DurationSeconds)
}

func TestComputeCycle_OutlierGuard(t *testing.T) {
	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		now     time.Time
		pauses  []model.PauseInterval
		anomaly bool
	}{
		{
			name:    "raw elapsed above guard",
			now:     prev.Add(400 * time.Second),
			anomaly: true,
		},
		{
			name:    "pause subtraction pushes duration negative",
			now:     prev.Add(10 * time.Second),
			pauses:  []model.PauseInterval{closedPause(prev.Add(time.Second), 30)},
			anomaly: true,
		},
		{
			name:    "exactly at the guard boundary",
			now:     prev.Add(300 * time.Second),
			anomaly: false,
		},
		{
			name:    "zero duration",
			now:     prev,
			anomaly: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeCycle(ComputeInput{
				Now:             tt.now,
				PreviousCycleAt: &prev,
				Pauses:          tt.pauses,
				Task:            testTask,
			})

			assert.Equal(t, tt.anomaly, res.Anomaly)
			if tt.anomaly {
				assert.Nil(t, res.DurationSeconds)
				assert.Nil(t, res.AverageSeconds)
				assert.Equal(t, model.StatusNormal, res.Status)
			} else {
				require.NotNil(t, res.DurationSeconds)
				assert.GreaterOrEqual(t, *res.DurationSeconds, 0.0)
				assert.LessOrEqual(t, *res.DurationSeconds, float64(MaxPlausibleCycleSeconds))
			}
		})
	}
}

func TestComputeCycle_RollingAverage(t *testing.T) {
	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	now := prev.Add(10 * time.Second)

	tests := []struct {
		name    string
		recent  []float64
		wantAvg float64
	}{
		{name: "no prior cycles", recent: nil, wantAvg: 10},
		{name: "one prior cycle", recent: []float64{14}, wantAvg: 12},
		{name: "four prior cycles", recent: []float64{12, 14, 16, 18}, wantAvg: 14},
		{name: "window capped at five values", recent: []float64{12, 14, 16, 18, 1000}, wantAvg: 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ComputeCycle(ComputeInput{
				Now:             now,
				PreviousCycleAt: &prev,
				RecentDurations: tt.recent,
				Task:            testTask,
			})

			require.NotNil(t, res.AverageSeconds)
			assert.InDelta(t, tt.wantAvg, *res.AverageSeconds, 1e-9)
		})
	}
}

func TestComputeCycle_Classification(t *testing.T) {
	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		elapsed time.Duration
		recent  []float64
		want    model.CycleStatus
	}{
		{name: "average 10.5 is excellent", elapsed: 10 * time.Second, recent: []float64{11}, want: model.StatusExcellent},
		{name: "average at excellent threshold", elapsed: 11 * time.Second, recent: nil, want: model.StatusExcellent},
		{name: "average 13 is normal", elapsed: 13 * time.Second, recent: nil, want: model.StatusNormal},
		{name: "average at slow threshold", elapsed: 15 * time.Second, recent: nil, want: model.StatusSlow},
		{name: "average 16 is slow", elapsed: 16 * time.Second, recent: nil, want: model.StatusSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := prev.Add(tt.elapsed)
			res := ComputeCycle(ComputeInput{
				Now:             now,
				PreviousCycleAt: &prev,
				RecentDurations: tt.recent,
				Task:            testTask,
			})

			assert.Equal(t, tt.want, res.Status)
		})
	}
}

func TestComputeCycle_ClassificationIsMonotonic(t *testing.T) {
	rank := map[model.CycleStatus]int{
		model.StatusExcellent: 0,
		model.StatusNormal:    1,
		model.StatusSlow:      2,
	}

	prev := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	last := -1
	for seconds := 1; seconds <= 30; seconds++ {
		res := ComputeCycle(ComputeInput{
			Now:             prev.Add(time.Duration(seconds) * time.Second),
			PreviousCycleAt: &prev,
			Task:            testTask,
		})

		require.NotNil(t, res.AverageSeconds)
		assert.GreaterOrEqual(t, rank[res.Status], last,
			"status must not improve as the average grows")
		last = rank[res.Status]
	}
}

func TestOpenPause(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("creates an open interval", func(t *testing.T) {
		p, err := OpenPause(nil, 3582, "No Materials", now)
		require.NoError(t, err)

		assert.Equal(t, int64(3582), p.OperatorID)
		assert.Equal(t, now, p.StartedAt)
		assert.Equal(t, "No Materials", p.Reason)
		assert.True(t, p.Open())
	})

	t.Run("rejects a second open pause", func(t *testing.T) {
		active := openPause(now.Add(-time.Minute))
		_, err := OpenPause(&active, 3582, "Machine Failure", now)
		assert.ErrorIs(t, err, ErrPauseActive)
	})

	t.Run("a closed interval does not block", func(t *testing.T) {
		done := closedPause(now.Add(-time.Hour), 120)
		_, err := OpenPause(&done, 3582, "Break", now)
		assert.NoError(t, err)
	})
}

func TestClosePause(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("closes and returns whole seconds", func(t *testing.T) {
		p := openPause(now.Add(-90500 * time.Millisecond))
		closed, duration, err := ClosePause([]model.PauseInterval{p}, now)
		require.NoError(t, err)

		assert.Equal(t, int64(90), duration, "duration truncates to whole seconds")
		require.NotNil(t, closed.EndedAt)
		assert.Equal(t, now, *closed.EndedAt)
		require.NotNil(t, closed.DurationSeconds)
		assert.Equal(t, int64(90), *closed.DurationSeconds)
	})

	t.Run("no open pause", func(t *testing.T) {
		_, _, err := ClosePause(nil, now)
		assert.ErrorIs(t, err, ErrNoActivePause)

		_, _, err = ClosePause([]model.PauseInterval{closedPause(now.Add(-time.Hour), 60)}, now)
		assert.ErrorIs(t, err, ErrNoActivePause)
	})

	t.Run("most recently opened wins", func(t *testing.T) {
		older := openPause(now.Add(-10 * time.Minute))
		newer := openPause(now.Add(-2 * time.Minute))

		closed, duration, err := ClosePause([]model.PauseInterval{older, newer}, now)
		require.NoError(t, err)
		assert.Equal(t, newer.StartedAt, closed.StartedAt)
		assert.Equal(t, int64(120), duration)
	})
}
