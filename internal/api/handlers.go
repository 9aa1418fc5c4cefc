// Package api exposes the HTTP interface: cycle and pause recording for the
// shop-floor terminals, live metrics and dashboards for supervision, and the
// historical reports.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lineops/boteo/internal/alerts"
	"github.com/lineops/boteo/internal/cache"
	"github.com/lineops/boteo/internal/engine"
	"github.com/lineops/boteo/internal/httputil"
	"github.com/lineops/boteo/internal/metrics"
	"github.com/lineops/boteo/internal/model"
	"github.com/lineops/boteo/internal/reports"
	"github.com/lineops/boteo/internal/repository"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// slowAlertCooldown is the minimum gap between two slow-operator alerts for
// the same operator.
const slowAlertCooldown = 15 * time.Minute

type API struct {
	store  repository.Store
	cache  *cache.Cache
	alerts *alerts.Queue
	mux    *http.ServeMux
}

type CycleRequest struct {
	OperatorID int64 `json:"operator_id"`
}

type PauseRequest struct {
	OperatorID int64  `json:"operator_id"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
}

type CycleResponse struct {
	RecordID             int64             `json:"record_id"`
	DurationSeconds      *float64          `json:"duration_seconds"`
	AverageLast5         *float64          `json:"average_last_5"`
	Status               model.CycleStatus `json:"status"`
	Message              string            `json:"message"`
	CyclesCompletedToday int               `json:"cycles_completed_today"`
}

type PauseResponse struct {
	PauseID         int64  `json:"pause_id"`
	Message         string `json:"message"`
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`
}

// NewAPI builds the handler. cache and alertQueue may be nil; the endpoints
// then skip caching and alerting.
func NewAPI(store repository.Store, c *cache.Cache, alertQueue *alerts.Queue) *API {
	api := &API{
		store:  store,
		cache:  c,
		alerts: alertQueue,
		mux:    http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/cycles", a.handleCycles)
	a.mux.HandleFunc("/api/pauses", a.handlePauses)
	a.mux.HandleFunc("/api/operators", a.handleOperators)
	a.mux.HandleFunc("/api/metrics/", a.handleOperatorMetrics)
	a.mux.HandleFunc("/api/dashboard", a.handleDashboard)
	a.mux.HandleFunc("/api/dashboard/summary", a.handleDashboardSummary)
	a.mux.HandleFunc("/api/reports/pauses", a.handlePauseReport)
	a.mux.HandleFunc("/api/reports/bottlenecks", a.handleBottleneckReport)
	a.mux.HandleFunc("/api/reports/comparison", a.handleComparisonReport)
	a.mux.HandleFunc("/health", a.handleHealth)
	a.mux.Handle("/metrics", promhttp.Handler())
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CycleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OperatorID <= 0 {
		httputil.WriteJSONError(w, "operator_id is required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	outcome, err := a.store.RecordCycle(r.Context(), req.OperatorID, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httputil.WriteJSONError(w, fmt.Sprintf("operator %d not found or has no task assigned", req.OperatorID), http.StatusNotFound)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RecordCycle(outcome.Record.Status, outcome.Record.DurationSeconds, outcome.Anomaly)
	if outcome.Anomaly {
		log.Printf("Discarded implausible cycle duration for operator %d", req.OperatorID)
	}

	a.cache.Invalidate(r.Context(), cache.OperatorKey(req.OperatorID), cache.DashboardKey)
	a.maybeAlertSlow(r.Context(), outcome)

	message := fmt.Sprintf("Cycle recorded. Status: %s", outcome.Record.Status)
	if outcome.Record.AverageSeconds != nil {
		message += fmt.Sprintf(" (average: %.1fs)", *outcome.Record.AverageSeconds)
	}

	httputil.WriteJSON(w, http.StatusCreated, CycleResponse{
		RecordID:             outcome.Record.ID,
		DurationSeconds:      outcome.Record.DurationSeconds,
		AverageLast5:         outcome.Record.AverageSeconds,
		Status:               outcome.Record.Status,
		Message:              message,
		CyclesCompletedToday: outcome.CyclesToday,
	})
}

func (a *API) handlePauses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PauseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.OperatorID <= 0 {
		httputil.WriteJSONError(w, "operator_id is required", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "start":
		a.startPause(w, r, req)
	case "stop":
		a.stopPause(w, r, req)
	default:
		httputil.WriteJSONError(w, `action must be "start" or "stop"`, http.StatusBadRequest)
	}
}

func (a *API) startPause(w http.ResponseWriter, r *http.Request, req PauseRequest) {
	pause, err := a.store.StartPause(r.Context(), req.OperatorID, req.Reason, time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrPauseActive) {
			httputil.WriteJSONError(w, "a pause is already active for this operator", http.StatusBadRequest)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.RecordPauseStarted(req.Reason)
	a.cache.Invalidate(r.Context(), cache.OperatorKey(req.OperatorID), cache.DashboardKey)

	reason := req.Reason
	if reason == "" {
		reason = "unspecified"
	}

	httputil.WriteJSON(w, http.StatusCreated, PauseResponse{
		PauseID: pause.ID,
		Message: "Pause started: " + reason,
	})
}

func (a *API) stopPause(w http.ResponseWriter, r *http.Request, req PauseRequest) {
	pause, err := a.store.EndPause(r.Context(), req.OperatorID, time.Now())
	if err != nil {
		if errors.Is(err, engine.ErrNoActivePause) {
			httputil.WriteJSONError(w, "no active pause for this operator", http.StatusNotFound)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	duration := *pause.DurationSeconds
	metrics.RecordPauseEnded(duration)
	a.cache.Invalidate(r.Context(), cache.OperatorKey(req.OperatorID), cache.DashboardKey)

	httputil.WriteJSON(w, http.StatusCreated, PauseResponse{
		PauseID:         pause.ID,
		Message:         fmt.Sprintf("Pause ended. Duration: %ds (%dmin)", duration, duration/60),
		DurationSeconds: pause.DurationSeconds,
	})
}

func (a *API) handleOperators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	operators, err := a.store.ListOperators(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if operators == nil {
		operators = []model.Operator{}
	}

	httputil.WriteJSON(w, http.StatusOK, operators)
}

func (a *API) handleOperatorMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/metrics/")
	if history, found := strings.CutSuffix(rest, "/history"); found {
		operatorID, err := strconv.ParseInt(history, 10, 64)
		if err != nil {
			httputil.WriteJSONError(w, "invalid operator id", http.StatusBadRequest)
			return
		}
		a.operatorHistory(w, r, operatorID)
		return
	}

	operatorID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		httputil.WriteJSONError(w, "invalid operator id", http.StatusBadRequest)
		return
	}

	key := cache.OperatorKey(operatorID)
	if payload, ok := a.cache.Get(r.Context(), key); ok {
		writeRawJSON(w, payload)
		return
	}

	now := time.Now()
	row, err := a.store.GetOperatorMetrics(r.Context(), operatorID, model.Day(now))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httputil.WriteJSONError(w, fmt.Sprintf("operator %d not found", operatorID), http.StatusNotFound)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(reports.BuildOperatorMetrics(row, now))
	if err != nil {
		httputil.WriteJSONError(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	a.cache.Set(r.Context(), key, payload)
	writeRawJSON(w, payload)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

func (a *API) maybeAlertSlow(ctx context.Context, outcome *repository.CycleOutcome) {
	if a.alerts == nil || outcome.Record.Status != model.StatusSlow {
		return
	}

	allowed, err := a.alerts.Cooldown(ctx, alerts.KindSlowOperator, outcome.Record.OperatorID, slowAlertCooldown)
	if err != nil {
		log.Printf("Failed to check alert cooldown: %v", err)
		return
	}
	if !allowed {
		return
	}

	message := fmt.Sprintf("Operator %d classified Slow", outcome.Record.OperatorID)
	if outcome.Record.AverageSeconds != nil {
		message = fmt.Sprintf("Operator %d classified Slow with a 5-cycle average of %.1fs",
			outcome.Record.OperatorID, *outcome.Record.AverageSeconds)
	}

	alert := alerts.NewAlert(alerts.KindSlowOperator, outcome.Record.OperatorID, "", message)
	if err := a.alerts.Enqueue(ctx, alert); err != nil {
		log.Printf("Failed to enqueue alert: %v", err)
		return
	}
	metrics.RecordAlertEnqueued(string(alerts.KindSlowOperator))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, dst); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}

	return true
}

func writeRawJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		log.Printf("failed to write response: %v", err)
	}
}
