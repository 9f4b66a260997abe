package api

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

func (d *Dependencies) handleStats(w http.ResponseWriter, r *http.Request) {
	days := clamp(queryInt(r.URL.Query(), "days", 7), 1, 365)

	stats, err := d.Attacks.Stats(r.Context(), days)
	if err != nil {
		d.Logger.Error("failed to read attack stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to read stats"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (d *Dependencies) handleRecentAttacks(w http.ResponseWriter, r *http.Request) {
	limit := clamp(queryInt(r.URL.Query(), "limit", 100), 1, 1000)

	attacks, err := d.Attacks.Recent(r.Context(), limit)
	if err != nil {
		d.Logger.Error("failed to list recent attacks", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list attacks"})
		return
	}

	writeJSON(w, http.StatusOK, attacks)
}

func (d *Dependencies) handleRepeatOffenders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minCount := queryInt(q, "min_count", 3)
	if minCount < 1 {
		minCount = 1
	}
	days := clamp(queryInt(q, "days", 7), 1, 365)

	offenders, err := d.Attacks.RepeatOffenders(r.Context(), minCount, days)
	if err != nil {
		d.Logger.Error("failed to list repeat offenders", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "Failed to list repeat offenders"})
		return
	}

	writeJSON(w, http.StatusOK, offenders)
}

func queryInt(q url.Values, key string, defaultVal int) int {
	v := q.Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
