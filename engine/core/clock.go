package core

import (
	"time"

	"github.com/loov/hrtime"
)

const dateTimeLayout = "2006-01-02_15:04:05"

// Timer tracks scaled frame deltas on top of the high resolution clock.
// Update is expected once per frame; a stopped timer still counts frames
// but reports a zero delta.
type Timer struct {
	now func() time.Duration

	startTime time.Duration
	currTime  time.Duration
	running   bool

	timeScale           float32
	deltaTime           float64
	elapsedTime         float64
	elapsedUnscaledTime float64
	elapsedFrames       uint64
}

func NewTimer() *Timer {
	t := &Timer{now: hrtime.Now}
	t.Reset()
	return t
}

func (t *Timer) Start() {
	t.running = true
}

// Stop halts delta accumulation. Elapsed values are kept.
func (t *Timer) Stop() {
	t.running = false
}

func (t *Timer) Reset() {
	t.startTime = t.now()
	t.currTime = t.startTime
	t.running = false
	t.timeScale = 1.0
	t.deltaTime = 0
	t.elapsedTime = 0
	t.elapsedUnscaledTime = 0
	t.elapsedFrames = 0
}

func (t *Timer) Update() {
	t.elapsedFrames++
	t.deltaTime = 0
	if !t.running {
		return
	}
	now := t.now()
	t.deltaTime = float64(t.timeScale) * (now - t.currTime).Seconds()
	t.elapsedUnscaledTime = (now - t.startTime).Seconds()
	t.elapsedTime += t.deltaTime
	t.currTime = now
}

func (t *Timer) TimeScale() float32 {
	return t.timeScale
}

func (t *Timer) SetTimeScale(scale float32) {
	t.timeScale = scale
}

// DeltaTime is the scaled duration of the last update, in seconds.
func (t *Timer) DeltaTime() float64 {
	return t.deltaTime
}

func (t *Timer) ElapsedTime() float64 {
	return t.elapsedTime
}

func (t *Timer) ElapsedUnscaledTime() float64 {
	return t.elapsedUnscaledTime
}

func (t *Timer) ElapsedFrames() uint64 {
	return t.elapsedFrames
}

func (t *Timer) IsRunning() bool {
	return t.running
}

// DateTimeString returns the current UTC time as YYYY-MM-DD_HH:MM:SS.
func DateTimeString() string {
	return time.Now().UTC().Format(dateTimeLayout)
}

func DateString() string {
	return DateTimeString()[:10]
}

func TimeString() string {
	return DateTimeString()[11:]
}
