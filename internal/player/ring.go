// SPDX-License-Identifier: MIT
package player

import (
	"sync/atomic"

	"phono/pkg/bitint"
)

// RingBuffer is a single-writer single-reader PCM ring addressed by absolute
// frame numbers rather than relative offsets. The decode goroutine stores at
// the stream's decoded frame counter and the render callback fetches at the
// rendered frame counter, so positions never drift and a discontinuity (seek)
// is just a store at a new start frame.
//
// Performance Critical (Hot Path): Fetch runs inside the audio callback and
// must not allocate or block. Bounds are published with atomics; data slices
// are only touched inside the span the bounds guarantee.
type RingBuffer struct {
	data     []float32
	capacity int64 // frames, power of two
	mask     int64
	channels int

	boundsStart atomic.Int64 // oldest valid frame
	boundsEnd   atomic.Int64 // one past the newest valid frame
}

// NewRingBuffer allocates a ring holding at least capacityFrames interleaved
// frames. Capacity is rounded up to a power of two so frame numbers map to
// slots with a mask instead of a modulo.
func NewRingBuffer(capacityFrames int, channels int) *RingBuffer {
	capFrames := bitint.NextPowerOfTwo64(int64(capacityFrames))
	return &RingBuffer{
		data:     make([]float32, capFrames*int64(channels)),
		capacity: capFrames,
		mask:     capFrames - 1,
		channels: channels,
	}
}

// Capacity returns the ring size in frames.
func (rb *RingBuffer) Capacity() int64 { return rb.capacity }

// Channels returns the interleaved channel count the ring was sized for.
func (rb *RingBuffer) Channels() int { return rb.channels }

// ValidBounds returns the half-open span of frame numbers currently readable.
func (rb *RingBuffer) ValidBounds() (start, end int64) {
	return rb.boundsStart.Load(), rb.boundsEnd.Load()
}

// Reset empties the ring and repositions the valid span at startFrame.
func (rb *RingBuffer) Reset(startFrame int64) {
	rb.boundsStart.Store(startFrame)
	rb.boundsEnd.Store(startFrame)
}

// Store writes frameCount frames from src at absolute position startFrame.
// A store that is not contiguous with the current span resets the span to
// begin at startFrame; a contiguous store extends it, discarding the oldest
// frames once the span exceeds capacity. frameCount larger than the ring
// returns a RangeError.
func (rb *RingBuffer) Store(src []float32, frameCount int, startFrame int64) error {
	if int64(frameCount) > rb.capacity {
		start, end := rb.ValidBounds()
		return &RangeError{Op: "store", StartFrame: startFrame, FrameCount: frameCount, BoundStart: start, BoundEnd: end}
	}
	if frameCount == 0 {
		return nil
	}

	if startFrame != rb.boundsEnd.Load() {
		rb.Reset(startFrame)
	}

	rb.copyIn(src, frameCount, startFrame)

	end := startFrame + int64(frameCount)
	if start := end - rb.capacity; start > rb.boundsStart.Load() {
		rb.boundsStart.Store(start)
	}
	rb.boundsEnd.Store(end)
	return nil
}

// Fetch reads frameCount frames at absolute position startFrame into dst.
// The whole request must lie within the valid span or a RangeError is
// returned and dst is untouched.
func (rb *RingBuffer) Fetch(dst []float32, frameCount int, startFrame int64) error {
	if frameCount == 0 {
		return nil
	}

	start, end := rb.ValidBounds()
	if startFrame < start || startFrame+int64(frameCount) > end {
		return &RangeError{Op: "fetch", StartFrame: startFrame, FrameCount: frameCount, BoundStart: start, BoundEnd: end}
	}

	rb.copyOut(dst, frameCount, startFrame)
	return nil
}

func (rb *RingBuffer) copyIn(src []float32, frameCount int, startFrame int64) {
	ch := int64(rb.channels)
	offset := (startFrame & rb.mask) * ch
	n := int64(frameCount) * ch

	first := int64(len(rb.data)) - offset
	if first >= n {
		copy(rb.data[offset:offset+n], src[:n])
		return
	}
	copy(rb.data[offset:], src[:first])
	copy(rb.data[:n-first], src[first:n])
}

func (rb *RingBuffer) copyOut(dst []float32, frameCount int, startFrame int64) {
	ch := int64(rb.channels)
	offset := (startFrame & rb.mask) * ch
	n := int64(frameCount) * ch

	first := int64(len(rb.data)) - offset
	if first >= n {
		copy(dst[:n], rb.data[offset:offset+n])
		return
	}
	copy(dst[:first], rb.data[offset:])
	copy(dst[first:n], rb.data[:n-first])
}
