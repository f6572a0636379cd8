package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	sweepCount      int64
	ticketsChecked  int64
	triggersFound   int64
	triggersActed   int64
	sweepErrorCount int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep accumulates one monitoring cycle's totals.
func (m *Metrics) RecordSweep(checked, found, actioned, failed int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepCount++
	m.ticketsChecked += int64(checked)
	m.triggersFound += int64(found)
	m.triggersActed += int64(actioned)
	m.sweepErrorCount += int64(failed)
}

// SweepTotals reports the accumulated monitoring counters.
func (m *Metrics) SweepTotals() (sweeps, checked, found, actioned, failed int64) {
	if m == nil {
		return 0, 0, 0, 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepCount, m.ticketsChecked, m.triggersFound, m.triggersActed, m.sweepErrorCount
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
