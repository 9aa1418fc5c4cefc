package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lineops/boteo/internal/cache"
	"github.com/lineops/boteo/internal/httputil"
	"github.com/lineops/boteo/internal/model"
	"github.com/lineops/boteo/internal/reports"
	"github.com/lineops/boteo/internal/repository"
)

func (a *API) operatorHistory(w http.ResponseWriter, r *http.Request, operatorID int64) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	rows, err := a.store.GetHistory(r.Context(), operatorID, from, to)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			httputil.WriteJSONError(w, fmt.Sprintf("operator %d not found", operatorID), http.StatusNotFound)
			return
		}
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reports.BuildHistory(operatorID, rows))
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if payload, ok := a.cache.Get(r.Context(), cache.DashboardKey); ok {
		writeRawJSON(w, payload)
		return
	}

	rows, err := a.store.GetDashboard(r.Context(), model.Day(time.Now()))
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []repository.DashboardRow{}
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	a.cache.Set(r.Context(), cache.DashboardKey, payload)
	writeRawJSON(w, payload)
}

func (a *API) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, ok := dateParam(w, r, "date")
	if !ok {
		return
	}

	totals, err := a.store.GetDaySummary(r.Context(), day)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	operators, err := a.store.GetDayOperators(r.Context(), day)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reports.BuildDaySummary(day, totals, operators))
}

func (a *API) handlePauseReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	rows, err := a.store.GetPauseReasons(r.Context(), from, to)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reports.BuildPauseReport(from, to, rows))
}

func (a *API) handleBottleneckReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, ok := dateParam(w, r, "date")
	if !ok {
		return
	}

	rows, err := a.store.GetBottlenecks(r.Context(), day)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reports.BuildBottleneckReport(day, rows))
}

func (a *API) handleComparisonReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("operators")
	if raw == "" {
		httputil.WriteJSONError(w, "operators parameter is required", http.StatusBadRequest)
		return
	}

	var operatorIDs []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			httputil.WriteJSONError(w, "operators must be a comma-separated list of ids", http.StatusBadRequest)
			return
		}
		operatorIDs = append(operatorIDs, id)
	}

	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	rows, err := a.store.GetComparison(r.Context(), operatorIDs, from, to)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reports.BuildComparison(from, to, rows))
}

// dateParam reads a required YYYY-MM-DD query parameter, writing a 400 when
// missing or malformed.
func dateParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := r.URL.Query().Get(name)
	if value == "" {
		httputil.WriteJSONError(w, name+" parameter is required", http.StatusBadRequest)
		return "", false
	}
	if _, err := time.Parse(model.DayFormat, value); err != nil {
		httputil.WriteJSONError(w, name+" must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return "", false
	}

	return value, true
}

func dateRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	from, ok := dateParam(w, r, "from")
	if !ok {
		return "", "", false
	}
	to, ok := dateParam(w, r, "to")
	if !ok {
		return "", "", false
	}
	if to < from {
		httputil.WriteJSONError(w, "to must not precede from", http.StatusBadRequest)
		return "", "", false
	}

	return from, to, true
}
