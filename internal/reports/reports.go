// Package reports shapes repository rows into the dashboard, history and
// report responses served by the API: efficiency percentages, problem
// detection, pause recommendations and bottleneck impact.
package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lineops/boteo/internal/repository"
)

// workdayHours is the assumed shift length used for the hours-worked figure.
const workdayHours = 8.0

// noData is the status label shown for operators without any cycle records.
const noData = "No data"

type OperatorMetrics struct {
	OperatorID          int64    `json:"operator_id"`
	Name                string   `json:"name"`
	CurrentTask         string   `json:"current_task"`
	StandardSeconds     float64  `json:"standard_seconds"`
	CyclesToday         int      `json:"cycles_today"`
	DayAverageSeconds   *float64 `json:"day_average_seconds"`
	AverageLast5        *float64 `json:"average_last_5"`
	CurrentStatus       string   `json:"current_status"`
	OnPause             bool     `json:"on_pause"`
	CurrentPauseSeconds *int64   `json:"current_pause_seconds,omitempty"`
	EfficiencyPercent   *float64 `json:"efficiency_percent"`
}

type HistoryDay struct {
	Day               string         `json:"day"`
	Cycles            int            `json:"cycles"`
	AverageSeconds    *float64       `json:"average_seconds"`
	Excellent         int            `json:"excellent_cycles"`
	Normal            int            `json:"normal_cycles"`
	Slow              int            `json:"slow_cycles"`
	Pauses            int            `json:"pauses"`
	PauseMinutes      float64        `json:"pause_minutes"`
	PausesByReason    map[string]int `json:"pauses_by_reason"`
	EfficiencyPercent *float64       `json:"efficiency_percent"`
	HoursWorked       float64        `json:"hours_worked"`
}

type PeriodSummary struct {
	AverageCyclesPerDay float64  `json:"average_cycles_per_day"`
	AverageEfficiency   *float64 `json:"average_efficiency"`
	ExcellentDays       int      `json:"excellent_days"`
	NormalDays          int      `json:"normal_days"`
	SlowDays            int      `json:"slow_days"`
}

type History struct {
	OperatorID int64         `json:"operator_id"`
	Operator   string        `json:"operator"`
	Days       []HistoryDay  `json:"days"`
	Summary    PeriodSummary `json:"period_summary"`
}

type Totals struct {
	ActiveOperators    int      `json:"active_operators"`
	ExcellentOperators int      `json:"excellent_operators"`
	SlowOperators      int      `json:"slow_operators"`
	TotalCycles        int      `json:"total_cycles"`
	AverageEfficiency  *float64 `json:"average_efficiency"`
}

type Problem struct {
	Kind     string `json:"kind"`
	Operator string `json:"operator"`
	Detail   string `json:"detail"`
}

type DayOperatorDetail struct {
	OperatorID        int64    `json:"operator_id"`
	Name              string   `json:"name"`
	Cycles            int      `json:"cycles"`
	AverageSeconds    *float64 `json:"average_seconds"`
	Status            string   `json:"status"`
	EfficiencyPercent *float64 `json:"efficiency_percent"`
	Pauses            int      `json:"pauses"`
	PauseMinutes      float64  `json:"pause_minutes"`
}

type DaySummary struct {
	Day       string              `json:"day"`
	Totals    Totals              `json:"totals"`
	Operators []DayOperatorDetail `json:"operators"`
	Problems  []Problem           `json:"problems"`
}

type ReasonBreakdown struct {
	Reason         string   `json:"reason"`
	Pauses         int      `json:"pauses"`
	TotalMinutes   float64  `json:"total_minutes"`
	AverageMinutes float64  `json:"average_minutes"`
	Operators      int      `json:"operators_affected"`
	Lines          []string `json:"lines_affected"`
}

type PauseReport struct {
	Period          string            `json:"period"`
	Reasons         []ReasonBreakdown `json:"pauses_by_reason"`
	Recommendations []string          `json:"recommendations"`
}

type Bottleneck struct {
	Operator        string  `json:"operator"`
	Station         string  `json:"station"`
	Line            string  `json:"line"`
	AverageSeconds  float64 `json:"average_seconds"`
	ExpectedSeconds float64 `json:"expected_seconds"`
	DelayPercent    float64 `json:"delay_percent"`
	LineImpact      string  `json:"line_impact"`
}

type BottleneckReport struct {
	Day         string       `json:"day"`
	Bottlenecks []Bottleneck `json:"bottlenecks"`
}

type OperatorComparison struct {
	OperatorID        int64    `json:"operator_id"`
	Name              string   `json:"name"`
	TotalCycles       int      `json:"total_cycles"`
	AverageSeconds    *float64 `json:"average_seconds"`
	EfficiencyPercent *float64 `json:"efficiency_percent"`
	DaysWorked        int      `json:"days_worked"`
	OverallStatus     string   `json:"overall_status"`
}

type Comparison struct {
	Period    string               `json:"period"`
	Operators []OperatorComparison `json:"operators"`
}

// Efficiency is the task's standard time over the observed average duration,
// as a percentage. Nil when no average is available.
func Efficiency(standardSeconds float64, averageSeconds *float64) *float64 {
	if averageSeconds == nil || *averageSeconds == 0 || standardSeconds == 0 {
		return nil
	}
	e := standardSeconds / *averageSeconds * 100
	return &e
}

func BuildOperatorMetrics(row *repository.OperatorMetricsRow, now time.Time) OperatorMetrics {
	m := OperatorMetrics{
		OperatorID:        row.Operator.ID,
		Name:              row.Operator.Name,
		CurrentTask:       row.TaskName,
		StandardSeconds:   row.StandardSeconds,
		CyclesToday:       row.CyclesToday,
		DayAverageSeconds: row.DayAverageSeconds,
		AverageLast5:      row.LastAverageSeconds,
		CurrentStatus:     row.LastStatus,
		EfficiencyPercent: Efficiency(row.StandardSeconds, row.DayAverageSeconds),
	}
	if m.CurrentStatus == "" {
		m.CurrentStatus = noData
	}
	if row.OpenPauseStartedAt != nil {
		m.OnPause = true
		elapsed := int64(now.Sub(*row.OpenPauseStartedAt).Seconds())
		m.CurrentPauseSeconds = &elapsed
	}

	return m
}

func BuildHistory(operatorID int64, rows *repository.HistoryRows) History {
	history := History{
		OperatorID: operatorID,
		Operator:   rows.OperatorName,
		Days:       []HistoryDay{},
	}

	byDay := make(map[string]int)
	for _, d := range rows.Days {
		day := HistoryDay{
			Day:            d.Day,
			Cycles:         d.Cycles,
			AverageSeconds: d.AverageSeconds,
			Excellent:      d.Excellent,
			Normal:         d.Normal,
			Slow:           d.Slow,
			PausesByReason: map[string]int{},
			HoursWorked:    workdayHours,
		}
		if rows.StandardSeconds != nil {
			day.EfficiencyPercent = Efficiency(*rows.StandardSeconds, d.AverageSeconds)
		}
		history.Days = append(history.Days, day)
		byDay[d.Day] = len(history.Days) - 1
	}

	for _, p := range rows.Pauses {
		i, ok := byDay[p.Day]
		if !ok {
			continue
		}
		day := &history.Days[i]
		day.Pauses += p.Pauses
		day.PauseMinutes += float64(p.TotalSeconds) / 60.0

		reason := p.Reason
		if reason == "" {
			reason = "Unspecified"
		}
		day.PausesByReason[reason] = p.Pauses
	}

	for i := range history.Days {
		day := &history.Days[i]
		day.HoursWorked = workdayHours - day.PauseMinutes/60.0
		if day.HoursWorked < 0 {
			day.HoursWorked = 0
		}
	}

	history.Summary = summarizePeriod(history.Days)
	return history
}

func summarizePeriod(days []HistoryDay) PeriodSummary {
	var summary PeriodSummary
	if len(days) == 0 {
		return summary
	}

	totalCycles := 0
	var efficiencies []float64
	for _, d := range days {
		totalCycles += d.Cycles
		if d.EfficiencyPercent == nil {
			continue
		}
		efficiencies = append(efficiencies, *d.EfficiencyPercent)
		switch {
		case *d.EfficiencyPercent >= 100:
			summary.ExcellentDays++
		case *d.EfficiencyPercent >= 80:
			summary.NormalDays++
		default:
			summary.SlowDays++
		}
	}

	summary.AverageCyclesPerDay = float64(totalCycles) / float64(len(days))
	if len(efficiencies) > 0 {
		sum := 0.0
		for _, e := range efficiencies {
			sum += e
		}
		avg := sum / float64(len(efficiencies))
		summary.AverageEfficiency = &avg
	}

	return summary
}

func BuildDaySummary(day string, totals *repository.DaySummaryRow, rows []repository.DayOperatorRow) DaySummary {
	summary := DaySummary{
		Day: day,
		Totals: Totals{
			ActiveOperators:    totals.ActiveOperators,
			ExcellentOperators: totals.ExcellentOperators,
			SlowOperators:      totals.SlowOperators,
			TotalCycles:        totals.TotalCycles,
			AverageEfficiency:  totals.AverageEfficiency,
		},
		Operators: []DayOperatorDetail{},
		Problems:  []Problem{},
	}

	for _, r := range rows {
		detail := DayOperatorDetail{
			OperatorID:     r.OperatorID,
			Name:           r.Name,
			Cycles:         r.Cycles,
			AverageSeconds: r.AverageSeconds,
			Status:         r.Status,
			Pauses:         r.Pauses,
			PauseMinutes:   r.PauseMinutes,
		}
		if r.StandardSeconds != nil {
			detail.EfficiencyPercent = Efficiency(*r.StandardSeconds, r.AverageSeconds)
		}
		summary.Operators = append(summary.Operators, detail)

		if r.Status == "Slow" && r.AverageSeconds != nil && r.StandardSeconds != nil && *r.AverageSeconds > *r.StandardSeconds {
			summary.Problems = append(summary.Problems, Problem{
				Kind:     "slow operator",
				Operator: r.Name,
				Detail:   fmt.Sprintf("averaging %.1fs against a %.1fs standard", *r.AverageSeconds, *r.StandardSeconds),
			})
		}
		if r.Pauses > 5 {
			summary.Problems = append(summary.Problems, Problem{
				Kind:     "excessive pauses",
				Operator: r.Name,
				Detail:   fmt.Sprintf("%d pauses (%.0f min total)", r.Pauses, r.PauseMinutes),
			})
		}
	}

	return summary
}

func BuildPauseReport(from, to string, rows []repository.PauseReasonRow) PauseReport {
	report := PauseReport{
		Period:          fmt.Sprintf("%s to %s", from, to),
		Reasons:         []ReasonBreakdown{},
		Recommendations: []string{},
	}

	for _, r := range rows {
		reason := r.Reason
		if reason == "" {
			reason = "Unspecified"
		}
		lines := r.Lines
		if lines == nil {
			lines = []string{}
		}
		report.Reasons = append(report.Reasons, ReasonBreakdown{
			Reason:         reason,
			Pauses:         r.Pauses,
			TotalMinutes:   r.TotalMinutes,
			AverageMinutes: r.AverageMinutes,
			Operators:      r.Operators,
			Lines:          lines,
		})

		switch {
		case reason == "No Materials" && r.Pauses > 20:
			report.Recommendations = append(report.Recommendations, "Review the materials supply chain")
		case reason == "Machine Failure" && r.Pauses > 10:
			affected := "the affected lines"
			if len(lines) > 0 {
				affected = strings.Join(lines, ", ")
			}
			report.Recommendations = append(report.Recommendations, "Schedule preventive maintenance on "+affected)
		}
	}

	return report
}

func BuildBottleneckReport(day string, rows []repository.BottleneckRow) BottleneckReport {
	report := BottleneckReport{
		Day:         day,
		Bottlenecks: []Bottleneck{},
	}

	for _, r := range rows {
		report.Bottlenecks = append(report.Bottlenecks, Bottleneck{
			Operator:        r.Name,
			Station:         r.Station,
			Line:            r.Line,
			AverageSeconds:  r.AverageSeconds,
			ExpectedSeconds: r.StandardSeconds,
			DelayPercent:    r.DelayPercent,
			LineImpact:      lineImpact(r.Station),
		})
	}

	return report
}

// lineImpact derives a human description from the station label. Stations are
// named "Station N"; N downstream stations wait on a slow one.
func lineImpact(station string) string {
	fields := strings.Fields(station)
	if len(fields) > 0 {
		if n, err := strconv.Atoi(fields[len(fields)-1]); err == nil && n > 0 {
			return fmt.Sprintf("Affects %d downstream stations", n)
		}
	}
	return "Affects downstream stations"
}

func BuildComparison(from, to string, rows []repository.ComparisonRow) Comparison {
	comparison := Comparison{
		Period:    fmt.Sprintf("%s to %s", from, to),
		Operators: []OperatorComparison{},
	}

	for _, r := range rows {
		op := OperatorComparison{
			OperatorID:     r.OperatorID,
			Name:           r.Name,
			TotalCycles:    r.Cycles,
			AverageSeconds: r.AverageSeconds,
			DaysWorked:     r.DaysWorked,
			OverallStatus:  noData,
		}
		if r.StandardSeconds != nil {
			op.EfficiencyPercent = Efficiency(*r.StandardSeconds, r.AverageSeconds)
		}
		if op.EfficiencyPercent != nil {
			switch {
			case *op.EfficiencyPercent >= 100:
				op.OverallStatus = "Excellent"
			case *op.EfficiencyPercent >= 80:
				op.OverallStatus = "Normal"
			default:
				op.OverallStatus = "Slow"
			}
		}
		comparison.Operators = append(comparison.Operators, op)
	}

	return comparison
}
