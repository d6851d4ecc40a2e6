package ai

import (
	"math"
	"sync"
	"time"
)

// Meter accumulates token usage for a client. Embedding it gives the client
// the GetMetrics and ResetMetrics halves of GraphAIClient.
type Meter struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// Record adds one request's usage. TokenPerSecond is recomputed over the
// whole window rather than averaged per request.
func (m *Meter) Record(input, output int, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics.Requests++
	m.metrics.InputTokens += input
	m.metrics.OutputTokens += output
	m.metrics.TotalTokens += input + output
	m.metrics.DurationMs += took.Milliseconds()

	if m.metrics.DurationMs > 0 {
		tps := float64(m.metrics.TotalTokens) * 1000.0 / float64(m.metrics.DurationMs)
		m.metrics.TokenPerSecond = float32(math.Round(tps*100) / 100)
	}
}

func (m *Meter) GetMetrics() ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

func (m *Meter) ResetMetrics() {
	m.mu.Lock()
	m.metrics = ModelMetrics{}
	m.mu.Unlock()
}
