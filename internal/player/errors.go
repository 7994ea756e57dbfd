// SPDX-License-Identifier: MIT
package player

import (
	"errors"
	"fmt"
)

// ErrFormatMismatch is returned by Enqueue when a decoder's PCM format does
// not match the format already flowing through the ring buffer.
var ErrFormatMismatch = errors.New("decoder format does not match active stream format")

// ErrNotSeekable is returned by the seek operations when the current decoder
// cannot reposition its stream.
var ErrNotSeekable = errors.New("current decoder does not support seeking")

// ErrNothingPlaying is returned by operations that require a current decoder
// when the pipeline is idle.
var ErrNothingPlaying = errors.New("no decoder is currently playing")

// RangeError reports a ring buffer access outside the valid frame span.
type RangeError struct {
	Op         string // "store" or "fetch"
	StartFrame int64
	FrameCount int
	BoundStart int64
	BoundEnd   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("ring %s of %d frames at %d outside valid span [%d, %d)",
		e.Op, e.FrameCount, e.StartFrame, e.BoundStart, e.BoundEnd)
}
