package vulkan

import (
	"sort"

	"github.com/spaghettifunk/vktogo/engine/core"
)

type FrameCallback func(h *FrameHandler)

// FrameHandler counts frames, keeps the frame timer and runs the callbacks
// registered around each frame. Callbacks run in key order.
type FrameHandler struct {
	overlap uint8
	count   uint64

	timer   *core.Timer
	metrics *core.Metrics

	early map[string]FrameCallback
	late  map[string]FrameCallback
}

func NewFrameHandler(overlap uint8) *FrameHandler {
	if overlap == 0 {
		overlap = 1
	}
	h := &FrameHandler{
		overlap: overlap,
		timer:   core.NewTimer(),
		metrics: core.NewMetrics(),
		early:   make(map[string]FrameCallback),
		late:    make(map[string]FrameCallback),
	}
	h.timer.Start()
	return h
}

func (h *FrameHandler) FrameOverlap() uint8 {
	return h.overlap
}

func (h *FrameHandler) FrameCount() uint64 {
	return h.count
}

// CurrentFrameIndex is the slot of the frame ring used by the current frame.
func (h *FrameHandler) CurrentFrameIndex() int {
	return int(h.count % uint64(h.overlap))
}

// DeltaTime is the scaled duration of the previous frame in seconds.
func (h *FrameHandler) DeltaTime() float64 {
	return h.timer.DeltaTime()
}

func (h *FrameHandler) Timer() *core.Timer {
	return h.timer
}

func (h *FrameHandler) Metrics() *core.Metrics {
	return h.metrics
}

func runCallbacks(h *FrameHandler, callbacks map[string]FrameCallback) {
	keys := make([]string, 0, len(callbacks))
	for k := range callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		callbacks[k](h)
	}
}

// EarlyUpdate runs before the frame is recorded.
func (h *FrameHandler) EarlyUpdate() {
	runCallbacks(h, h.early)
}

// LateUpdate advances the frame counter and the timer, then runs the late
// callbacks.
func (h *FrameHandler) LateUpdate() {
	h.count++
	h.timer.Update()
	h.metrics.Update(h.timer.DeltaTime())
	runCallbacks(h, h.late)
}

func registerCallback(callbacks map[string]FrameCallback, key string, fn FrameCallback) string {
	if key == "" {
		key = core.NewIdentifier().String()
	}
	callbacks[key] = fn
	return key
}

// RegisterEarlyCallback stores fn under key, replacing any previous callback
// with the same key. An empty key gets a generated one, which is returned.
func (h *FrameHandler) RegisterEarlyCallback(key string, fn FrameCallback) string {
	return registerCallback(h.early, key, fn)
}

func (h *FrameHandler) RegisterLateCallback(key string, fn FrameCallback) string {
	return registerCallback(h.late, key, fn)
}

func (h *FrameHandler) UnregisterEarlyCallback(key string) {
	delete(h.early, key)
}

func (h *FrameHandler) UnregisterLateCallback(key string) {
	delete(h.late, key)
}
