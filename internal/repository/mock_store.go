package repository

import (
	"context"
	"sync"
	"time"

	"github.com/lineops/boteo/internal/model"
)

// MockStore is a hand-written Store double for handler tests. Configure the
// result fields, then assert on the recorded calls.
type MockStore struct {
	mu sync.Mutex

	Operators        []model.Operator
	CycleOutcome     *CycleOutcome
	StartPauseResult *model.PauseInterval
	EndPauseResult   *model.PauseInterval
	Metrics          *OperatorMetricsRow
	Dashboard        []DashboardRow
	DaySummary       *DaySummaryRow
	DayOperators     []DayOperatorRow
	History          *HistoryRows
	PauseReasons     []PauseReasonRow
	Bottlenecks      []BottleneckRow
	Comparison       []ComparisonRow
	OpenPauseCount   int
	CycleCount       int

	RecordCycleCalls []RecordCycleCall
	StartPauseCalls  []StartPauseCall
	EndPauseCalls    []int64

	ListOperatorsErr error
	RecordCycleErr   error
	StartPauseErr    error
	EndPauseErr      error
	MetricsErr       error
	DashboardErr     error
	DaySummaryErr    error
	DayOperatorsErr  error
	HistoryErr       error
	PauseReasonsErr  error
	BottlenecksErr   error
	ComparisonErr    error
	PingErr          error
}

type RecordCycleCall struct {
	OperatorID int64
	Now        time.Time
}

type StartPauseCall struct {
	OperatorID int64
	Reason     string
	Now        time.Time
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) ListOperators(context.Context) ([]model.Operator, error) {
	return m.Operators, m.ListOperatorsErr
}

func (m *MockStore) RecordCycle(_ context.Context, operatorID int64, now time.Time) (*CycleOutcome, error) {
	m.mu.Lock()
	m.RecordCycleCalls = append(m.RecordCycleCalls, RecordCycleCall{OperatorID: operatorID, Now: now})
	m.mu.Unlock()

	if m.RecordCycleErr != nil {
		return nil, m.RecordCycleErr
	}
	return m.CycleOutcome, nil
}

func (m *MockStore) StartPause(_ context.Context, operatorID int64, reason string, now time.Time) (*model.PauseInterval, error) {
	m.mu.Lock()
	m.StartPauseCalls = append(m.StartPauseCalls, StartPauseCall{OperatorID: operatorID, Reason: reason, Now: now})
	m.mu.Unlock()

	if m.StartPauseErr != nil {
		return nil, m.StartPauseErr
	}
	return m.StartPauseResult, nil
}

func (m *MockStore) EndPause(_ context.Context, operatorID int64, _ time.Time) (*model.PauseInterval, error) {
	m.mu.Lock()
	m.EndPauseCalls = append(m.EndPauseCalls, operatorID)
	m.mu.Unlock()

	if m.EndPauseErr != nil {
		return nil, m.EndPauseErr
	}
	return m.EndPauseResult, nil
}

func (m *MockStore) GetOperatorMetrics(context.Context, int64, string) (*OperatorMetricsRow, error) {
	return m.Metrics, m.MetricsErr
}

func (m *MockStore) GetDashboard(context.Context, string) ([]DashboardRow, error) {
	return m.Dashboard, m.DashboardErr
}

func (m *MockStore) GetDaySummary(context.Context, string) (*DaySummaryRow, error) {
	return m.DaySummary, m.DaySummaryErr
}

func (m *MockStore) GetDayOperators(context.Context, string) ([]DayOperatorRow, error) {
	return m.DayOperators, m.DayOperatorsErr
}

func (m *MockStore) GetHistory(context.Context, int64, string, string) (*HistoryRows, error) {
	return m.History, m.HistoryErr
}

func (m *MockStore) GetPauseReasons(context.Context, string, string) ([]PauseReasonRow, error) {
	return m.PauseReasons, m.PauseReasonsErr
}

func (m *MockStore) GetBottlenecks(context.Context, string) ([]BottleneckRow, error) {
	return m.Bottlenecks, m.BottlenecksErr
}

func (m *MockStore) GetComparison(context.Context, []int64, string, string) ([]ComparisonRow, error) {
	return m.Comparison, m.ComparisonErr
}

func (m *MockStore) CountOpenPauses(context.Context) (int, error) {
	return m.OpenPauseCount, nil
}

func (m *MockStore) CountCycles(context.Context, string) (int, error) {
	return m.CycleCount, nil
}

func (m *MockStore) Ping(context.Context) error {
	return m.PingErr
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) RecordCycleCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RecordCycleCalls)
}
