package core

import (
	"regexp"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Duration
}

func (f *fakeClock) now() time.Duration { return f.t }

func newTestTimer(c *fakeClock) *Timer {
	t := &Timer{now: c.now}
	t.Reset()
	return t
}

func TestNewTimerDefaults(t *testing.T) {
	timer := NewTimer()

	if timer.TimeScale() != 1.0 {
		t.Errorf("TimeScale() = %v, want 1", timer.TimeScale())
	}
	if timer.DeltaTime() != 0 || timer.ElapsedTime() != 0 || timer.ElapsedUnscaledTime() != 0 {
		t.Errorf("expected zero times, got delta=%v elapsed=%v unscaled=%v",
			timer.DeltaTime(), timer.ElapsedTime(), timer.ElapsedUnscaledTime())
	}
	if timer.ElapsedFrames() != 0 {
		t.Errorf("ElapsedFrames() = %d, want 0", timer.ElapsedFrames())
	}
	if timer.IsRunning() {
		t.Error("new timer should not be running")
	}
}

func TestTimerSetTimeScale(t *testing.T) {
	timer := NewTimer()
	timer.SetTimeScale(0.5)
	if timer.TimeScale() != 0.5 {
		t.Errorf("TimeScale() = %v, want 0.5", timer.TimeScale())
	}
}

func TestTimerStartStop(t *testing.T) {
	timer := NewTimer()
	timer.Start()
	if !timer.IsRunning() {
		t.Fatal("timer should be running after Start")
	}
	timer.Stop()
	if timer.IsRunning() {
		t.Fatal("timer should not be running after Stop")
	}
}

func TestTimerUpdateScalesDelta(t *testing.T) {
	clock := &fakeClock{}
	timer := newTestTimer(clock)
	timer.SetTimeScale(0.5)
	timer.Start()

	clock.t += 2 * time.Second
	timer.Update()

	if got := timer.DeltaTime(); got != 1.0 {
		t.Errorf("DeltaTime() = %v, want 1", got)
	}
	if got := timer.ElapsedUnscaledTime(); got != 2.0 {
		t.Errorf("ElapsedUnscaledTime() = %v, want 2", got)
	}

	clock.t += time.Second
	timer.Update()

	if got := timer.ElapsedTime(); got != 1.5 {
		t.Errorf("ElapsedTime() = %v, want 1.5", got)
	}
	if got := timer.ElapsedFrames(); got != 2 {
		t.Errorf("ElapsedFrames() = %d, want 2", got)
	}
}

func TestTimerUpdateWhileStopped(t *testing.T) {
	clock := &fakeClock{}
	timer := newTestTimer(clock)

	clock.t += time.Second
	timer.Update()

	if timer.DeltaTime() != 0 {
		t.Errorf("DeltaTime() = %v, want 0 while stopped", timer.DeltaTime())
	}
	if timer.ElapsedFrames() != 1 {
		t.Errorf("ElapsedFrames() = %d, want 1", timer.ElapsedFrames())
	}
}

func TestTimerReset(t *testing.T) {
	clock := &fakeClock{}
	timer := newTestTimer(clock)
	timer.Start()
	timer.SetTimeScale(2)
	clock.t += time.Second
	timer.Update()

	timer.Reset()

	if timer.IsRunning() || timer.TimeScale() != 1 || timer.ElapsedFrames() != 0 || timer.ElapsedTime() != 0 {
		t.Errorf("Reset did not restore defaults: running=%v scale=%v frames=%d elapsed=%v",
			timer.IsRunning(), timer.TimeScale(), timer.ElapsedFrames(), timer.ElapsedTime())
	}
}

func TestDateTimeStrings(t *testing.T) {
	if ok, _ := regexp.MatchString(`^\d{4}-\d{2}-\d{2}_\d{2}:\d{2}:\d{2}$`, DateTimeString()); !ok {
		t.Errorf("unexpected DateTimeString %q", DateTimeString())
	}
	if len(DateString()) != 10 {
		t.Errorf("unexpected DateString %q", DateString())
	}
	if len(TimeString()) != 8 {
		t.Errorf("unexpected TimeString %q", TimeString())
	}
}
