package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesCompleted  uint64
	AnalysesFailed     uint64
	ChatTurns          uint64
	ChatTurnsFailed    uint64
	MaskingTotal       uint64
	RateLimited        uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

// IncrementRequests increments total request counter
func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

// IncrementInProgress increments in-progress request counter
func IncrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, 1)
}

// DecrementInProgress decrements in-progress request counter
func DecrementInProgress() {
	atomic.AddUint64(&globalMetrics.RequestsInProgress, ^uint64(0))
}

// IncrementSuccess increments successful request counter
func IncrementSuccess() {
	atomic.AddUint64(&globalMetrics.RequestsSuccess, 1)
}

// IncrementFailed increments failed request counter
func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

// IncrementMasking counts one masking call against the local model
func IncrementMasking() {
	atomic.AddUint64(&globalMetrics.MaskingTotal, 1)
}

// IncrementRateLimited counts a rejected request
func IncrementRateLimited() {
	atomic.AddUint64(&globalMetrics.RateLimited, 1)
}

// RecordAnalysis counts one analysis run by its terminal status ("completed" or "failed").
func RecordAnalysis(status string) {
	atomic.AddUint64(&globalMetrics.AnalysesTotal, 1)
	switch status {
	case "completed":
		atomic.AddUint64(&globalMetrics.AnalysesCompleted, 1)
	case "failed":
		atomic.AddUint64(&globalMetrics.AnalysesFailed, 1)
	}
}

// RecordChatTurn counts one conversational turn; failed means the reply carried a provider error.
func RecordChatTurn(failed bool) {
	atomic.AddUint64(&globalMetrics.ChatTurns, 1)
	if failed {
		atomic.AddUint64(&globalMetrics.ChatTurnsFailed, 1)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"rate_limited":         atomic.LoadUint64(&globalMetrics.RateLimited),
		"analyses": map[string]uint64{
			"total":     atomic.LoadUint64(&globalMetrics.AnalysesTotal),
			"completed": atomic.LoadUint64(&globalMetrics.AnalysesCompleted),
			"failed":    atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		},
		"chat": map[string]uint64{
			"turns":        atomic.LoadUint64(&globalMetrics.ChatTurns),
			"turns_failed": atomic.LoadUint64(&globalMetrics.ChatTurnsFailed),
		},
		"masking_total":  atomic.LoadUint64(&globalMetrics.MaskingTotal),
		"uptime_seconds": time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		IncrementInProgress()
		defer DecrementInProgress()

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			IncrementSuccess()
		} else {
			IncrementFailed()
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
