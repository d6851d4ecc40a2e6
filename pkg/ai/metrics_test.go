package ai

import (
	"testing"
	"time"
)

func TestMeter(t *testing.T) {
	var m Meter
	m.Record(100, 50, time.Second)
	m.Record(40, 10, 500*time.Millisecond)

	got := m.GetMetrics()
	want := ModelMetrics{
		Requests:       2,
		InputTokens:    140,
		OutputTokens:   60,
		TotalTokens:    200,
		DurationMs:     1500,
		TokenPerSecond: 133.33,
	}
	if got != want {
		t.Fatalf("GetMetrics() = %+v, want %+v", got, want)
	}

	m.ResetMetrics()
	if got := m.GetMetrics(); got != (ModelMetrics{}) {
		t.Fatalf("metrics after reset = %+v", got)
	}
}
