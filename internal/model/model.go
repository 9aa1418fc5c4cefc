// Package model defines the domain types shared by the engine, storage and API layers.
// It contains operators, tasks with their timing thresholds, cycle records and pause intervals.
package model

import "time"

type (
	CycleStatus string

	Operator struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		ProductionLine string `json:"production_line"`
		Station        string `json:"station"`
		Active         bool   `json:"active"`
	}

	Task struct {
		ID                 int64   `json:"id"`
		Name               string  `json:"name"`
		StandardSeconds    float64 `json:"standard_seconds"`
		ExcellentThreshold float64 `json:"excellent_threshold_seconds"`
		SlowThreshold      float64 `json:"slow_threshold_seconds"`
	}

	// Assignment is an operator's single active task. An operator has exactly
	// one active assignment at any time.
	Assignment struct {
		OperatorID int64 `json:"operator_id"`
		Task       Task  `json:"task"`
	}

	// CycleRecord is written once per completed cycle and never updated.
	// DurationSeconds and AverageSeconds are nil when the computation could
	// not produce a trustworthy value.
	CycleRecord struct {
		ID              int64       `json:"id"`
		OperatorID      int64       `json:"operator_id"`
		TaskID          int64       `json:"task_id"`
		RecordedAt      time.Time   `json:"recorded_at"`
		DurationSeconds *float64    `json:"duration_seconds"`
		AverageSeconds  *float64    `json:"average_5_cycles"`
		Status          CycleStatus `json:"status"`
		Day             string      `json:"day"`
	}

	PauseInterval struct {
		ID              int64      `json:"id"`
		OperatorID      int64      `json:"operator_id"`
		StartedAt       time.Time  `json:"started_at"`
		EndedAt         *time.Time `json:"ended_at,omitempty"`
		Reason          string     `json:"reason,omitempty"`
		DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	}
)

const (
	StatusExcellent CycleStatus = "Excellent"
	StatusNormal    CycleStatus = "Normal"
	StatusSlow      CycleStatus = "Slow"
)

// DayFormat is the calendar-date layout used across the API and storage.
const DayFormat = "2006-01-02"

// Open reports whether the pause has not been closed yet.
func (p PauseInterval) Open() bool {
	return p.EndedAt == nil
}

func Day(t time.Time) string {
	return t.Format(DayFormat)
}
