package core

import (
	"math"
	"testing"
)

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	if got := m.FrameTime(); math.Abs(got-16) > 1e-9 {
		t.Errorf("FrameTime() = %v, want 16", got)
	}
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	// 11 frames of 100ms push the accumulator past one second
	for i := 0; i < 11; i++ {
		m.Update(0.1)
	}
	if got := m.FPS(); got != 10 {
		t.Errorf("FPS() = %v, want 10", got)
	}
	fps, _ := m.Frame()
	if fps != m.FPS() {
		t.Errorf("Frame() fps = %v, want %v", fps, m.FPS())
	}
}
