package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lineops/boteo/internal/model"
)

// ErrNotFound is returned when the requested operator does not exist or has
// no active task assignment.
var ErrNotFound = errors.New("not found")

type Store interface {
	ListOperators(ctx context.Context) ([]model.Operator, error)
	RecordCycle(ctx context.Context, operatorID int64, now time.Time) (*CycleOutcome, error)
	StartPause(ctx context.Context, operatorID int64, reason string, now time.Time) (*model.PauseInterval, error)
	EndPause(ctx context.Context, operatorID int64, now time.Time) (*model.PauseInterval, error)
	GetOperatorMetrics(ctx context.Context, operatorID int64, day string) (*OperatorMetricsRow, error)
	GetDashboard(ctx context.Context, day string) ([]DashboardRow, error)
	GetDaySummary(ctx context.Context, day string) (*DaySummaryRow, error)
	GetDayOperators(ctx context.Context, day string) ([]DayOperatorRow, error)
	GetHistory(ctx context.Context, operatorID int64, from, to string) (*HistoryRows, error)
	GetPauseReasons(ctx context.Context, from, to string) ([]PauseReasonRow, error)
	GetBottlenecks(ctx context.Context, day string) ([]BottleneckRow, error)
	GetComparison(ctx context.Context, operatorIDs []int64, from, to string) ([]ComparisonRow, error)
	CountOpenPauses(ctx context.Context) (int, error)
	CountCycles(ctx context.Context, day string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

// CycleOutcome is the result of persisting one cycle completion.
type CycleOutcome struct {
	Record      model.CycleRecord `json:"record"`
	CyclesToday int               `json:"cycles_today"`
	Anomaly     bool              `json:"-"`
}

type OperatorMetricsRow struct {
	Operator           model.Operator
	TaskName           string
	StandardSeconds    float64
	CyclesToday        int
	DayAverageSeconds  *float64
	LastAverageSeconds *float64
	LastStatus         string
	OpenPauseStartedAt *time.Time
}

type DashboardRow struct {
	OperatorID        int64    `json:"operator_id"`
	Name              string   `json:"name"`
	CyclesToday       int      `json:"cycles_today"`
	DayAverageSeconds *float64 `json:"day_average_seconds"`
	Status            string   `json:"status"`
	OnPause           bool     `json:"on_pause"`
}

type DaySummaryRow struct {
	ActiveOperators    int
	ExcellentOperators int
	SlowOperators      int
	TotalCycles        int
	AverageEfficiency  *float64
}

type DayOperatorRow struct {
	OperatorID      int64
	Name            string
	Cycles          int
	AverageSeconds  *float64
	Status          string
	StandardSeconds *float64
	Pauses          int
	PauseMinutes    float64
}

type DayCycleRow struct {
	Day            string
	Cycles         int
	AverageSeconds *float64
	Excellent      int
	Normal         int
	Slow           int
}

type DayPauseRow struct {
	Day          string
	Reason       string
	Pauses       int
	TotalSeconds int64
}

type HistoryRows struct {
	OperatorName    string
	StandardSeconds *float64
	Days            []DayCycleRow
	Pauses          []DayPauseRow
}

type PauseReasonRow struct {
	Reason         string
	Pauses         int
	TotalMinutes   float64
	AverageMinutes float64
	Operators      int
	Lines          []string
}

type BottleneckRow struct {
	OperatorID      int64
	Name            string
	Station         string
	Line            string
	AverageSeconds  float64
	StandardSeconds float64
	DelayPercent    float64
}

type ComparisonRow struct {
	OperatorID      int64
	Name            string
	Cycles          int
	AverageSeconds  *float64
	DaysWorked      int
	StandardSeconds *float64
}
