// Package engine implements the cycle time accounting rules: pause-adjusted
// cycle durations, the 5-cycle rolling average, status classification against
// per-task thresholds, and the pause open/close state machine.
//
// All functions are pure; callers supply timestamps and storage snapshots,
// which keeps the engine deterministic and testable without a clock or a
// database.
package engine

import (
	"errors"
	"time"

	"github.com/lineops/boteo/internal/model"
)

// MaxPlausibleCycleSeconds bounds a single cycle duration. Anything longer,
// or negative, is treated as a measurement anomaly and discarded rather than
// propagated into averages.
const MaxPlausibleCycleSeconds = 300

// rollingWindow is the current cycle plus up to four prior valid same-day cycles.
const rollingWindow = 5

var (
	ErrPauseActive   = errors.New("pause already active")
	ErrNoActivePause = errors.New("no active pause")
)

type ComputeInput struct {
	// Now is the timestamp of the cycle completion being recorded.
	Now time.Time

	// PreviousCycleAt is the operator's most recent prior cycle record,
	// or nil for the first cycle of the tracked history.
	PreviousCycleAt *time.Time

	// Pauses holds every pause interval, open or closed, whose start lies
	// strictly between PreviousCycleAt and Now.
	Pauses []model.PauseInterval

	// RecentDurations holds up to four most recent valid durations recorded
	// for this operator on the current calendar date, most recent first.
	RecentDurations []float64

	Task model.Task
}

type ComputeResult struct {
	// DurationSeconds is nil when no baseline exists, when pause accounting
	// for the interval is incomplete, or when the plausibility guard fired.
	DurationSeconds *float64

	// AverageSeconds is the rolling 5-cycle mean; nil whenever DurationSeconds is.
	AverageSeconds *float64

	Status model.CycleStatus

	// Anomaly marks a duration discarded by the plausibility guard.
	Anomaly bool
}

// ComputeCycle derives the validated cycle duration, the updated rolling
// average and the status classification for a cycle completing at in.Now.
func ComputeCycle(in ComputeInput) ComputeResult {
	res := ComputeResult{Status: model.StatusNormal}

	if in.PreviousCycleAt == nil {
		// First cycle has no baseline to measure against.
		return res
	}

	var pausedSeconds float64
	for _, p := range in.Pauses {
		if p.Open() {
			// An unfinished pause inside the interval means the delta
			// cannot be trusted.
			return res
		}
		if p.DurationSeconds != nil {
			pausedSeconds += float64(*p.DurationSeconds)
		}
	}

	duration := in.Now.Sub(*in.PreviousCycleAt).Seconds() - pausedSeconds
	if duration < 0 || duration > MaxPlausibleCycleSeconds {
		res.Anomaly = true
		return res
	}
	res.DurationSeconds = &duration

	sum := duration
	count := 1
	for _, prior := range in.RecentDurations {
		if count == rollingWindow {
			break
		}
		sum += prior
		count++
	}
	average := sum / float64(count)
	res.AverageSeconds = &average

	switch {
	case average <= in.Task.ExcellentThreshold:
		res.Status = model.StatusExcellent
	case average >= in.Task.SlowThreshold:
		res.Status = model.StatusSlow
	}

	return res
}

// OpenPause validates the no-open-pause precondition and builds the new
// interval. current is the operator's open pause if one exists, nil otherwise.
func OpenPause(current *model.PauseInterval, operatorID int64, reason string, now time.Time) (model.PauseInterval, error) {
	if current != nil && current.Open() {
		return model.PauseInterval{}, ErrPauseActive
	}

	return model.PauseInterval{
		OperatorID: operatorID,
		StartedAt:  now,
		Reason:     reason,
	}, nil
}

// ClosePause closes the operator's open pause and returns the closed interval
// together with its duration in whole seconds. When storage ever holds more
// than one open interval the most recently opened wins; that should not occur
// under the open-pause precondition.
func ClosePause(pauses []model.PauseInterval, now time.Time) (model.PauseInterval, int64, error) {
	var open *model.PauseInterval
	for i := range pauses {
		if !pauses[i].Open() {
			continue
		}
		if open == nil || pauses[i].StartedAt.After(open.StartedAt) {
			open = &pauses[i]
		}
	}
	if open == nil {
		return model.PauseInterval{}, 0, ErrNoActivePause
	}

	closed := *open
	duration := int64(now.Sub(closed.StartedAt).Seconds())
	closed.EndedAt = &now
	closed.DurationSeconds = &duration

	return closed, duration, nil
}
