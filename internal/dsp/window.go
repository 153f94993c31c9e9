// SPDX-License-Identifier: MIT
package dsp

// Window is a fixed-capacity ring of recent peak observations with a single
// write cursor. Appending once the ring is full evicts the oldest entry;
// there is no reallocation or element shifting on insert, which matters
// because the limiter appends once per chunk on the real-time path.
type Window struct {
	buf  []float32
	size int
	idx  int
}

// NewWindow creates a window holding at most capacity values.
// Capacity must be positive.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		panic("dsp: window capacity must be positive")
	}
	return &Window{
		buf:  make([]float32, 0, capacity),
		size: capacity,
	}
}

// Len reports how many values the window currently holds.
func (w *Window) Len() int { return len(w.buf) }

// Cap reports the fixed capacity chosen at construction.
func (w *Window) Cap() int { return w.size }

// Append inserts values in order, keeping only the newest capacity entries.
// Inputs longer than the capacity are truncated up front so that only their
// trailing portion ever enters the ring.
func (w *Window) Append(values ...float32) {
	if over := len(values) - w.size; over > 0 {
		values = values[over:]
	}
	if len(values) == 0 {
		return
	}

	// Split the insert at the physical end of the ring: tail goes at the
	// cursor, head wraps to the front.
	split := w.size - w.idx
	if split > len(values) {
		split = len(values)
	}
	tail, head := values[:split], values[split:]

	if len(w.buf) < w.size {
		// Still filling up: the cursor sits at the end of the backing
		// slice, so the tail extends it in place.
		w.buf = append(w.buf, tail...)
	} else {
		copy(w.buf[w.idx:], tail)
	}
	copy(w.buf, head)

	w.idx = (w.idx + len(values)) % w.size
}

// Each visits the held values oldest to newest. i counts from 0 and the
// callback must not call back into the window.
func (w *Window) Each(fn func(i int, v float32)) {
	n := 0
	for i := w.idx; i < len(w.buf); i++ {
		fn(n, w.buf[i])
		n++
	}
	for i := 0; i < w.idx && i < len(w.buf); i++ {
		fn(n, w.buf[i])
		n++
	}
}

// Values returns the held values oldest to newest as a fresh slice.
// Intended for inspection and tests, not for the hot path.
func (w *Window) Values() []float32 {
	out := make([]float32, 0, len(w.buf))
	w.Each(func(_ int, v float32) { out = append(out, v) })
	return out
}
