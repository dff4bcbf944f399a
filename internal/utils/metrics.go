package utils

import (
	"sync"
	"time"
)

// Tracks performance metrics across the engine
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	// Maps operation name to list of latencies in nanoseconds
	operationTimes map[string][]int64

	systemStartTime time.Time
}

// MetricsSnapshot is the read-only view reported by the health endpoint.
type MetricsSnapshot struct {
	Requests         uint64             `json:"requests"`
	Errors           uint64             `json:"errors"`
	UptimeSeconds    float64            `json:"uptimeSeconds"`
	AvgLatencyMillis map[string]float64 `json:"avgLatencyMillis"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		operationTimes:  make(map[string][]int64),
		systemStartTime: time.Now(),
	}
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

func (mc *MetricsCollector) AddOperationLatency(operationName string, duration time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.operationTimes[operationName]; !exists {
		mc.operationTimes[operationName] = make([]int64, 0)
	}
	mc.operationTimes[operationName] = append(
		mc.operationTimes[operationName],
		duration.Nanoseconds(),
	)
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	averages := make(map[string]float64, len(mc.operationTimes))
	for op, samples := range mc.operationTimes {
		if len(samples) == 0 {
			continue
		}
		var total int64
		for _, s := range samples {
			total += s
		}
		averages[op] = float64(total) / float64(len(samples)) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		Requests:         mc.requestCount,
		Errors:           mc.errorCount,
		UptimeSeconds:    time.Since(mc.systemStartTime).Seconds(),
		AvgLatencyMillis: averages,
	}
}
