// SPDX-License-Identifier: MIT
package player

import (
	"sync/atomic"

	"phono/internal/decode"
)

// Lifecycle flags for a decoderState. Set once each, in order, except
// flagStopDecoding which any control operation may raise.
const (
	flagDecodingComplete uint32 = 1 << iota
	flagRenderingStarted
	flagRenderingFinished
	flagReadyForCollection
	flagStopDecoding
)

// decoderState tracks one decoder's progress through the pipeline. States are
// published into the active registry with a CAS and thereafter shared between
// the decode goroutine, the render callback and the collector, so all mutable
// progress lives in atomics. The decoder itself is only touched by the decode
// goroutine.
type decoderState struct {
	decoder  decode.Decoder
	sequence uint64

	framesDecoded  atomic.Int64
	framesRendered atomic.Int64
	totalFrames    atomic.Int64 // decode.FrameUnknown until end of stream fixes it
	frameToSeek    atomic.Int64 // decode.FrameUnknown when no seek is pending

	flags atomic.Uint32

	// chunk is the decode scratch buffer, sized to one write chunk.
	// Only the decode goroutine touches it.
	chunk []float32
}

func newDecoderState(dec decode.Decoder, sequence uint64, chunkFrames int) *decoderState {
	ds := &decoderState{
		decoder:  dec,
		sequence: sequence,
		chunk:    make([]float32, chunkFrames*dec.Format().Channels),
	}
	ds.totalFrames.Store(dec.TotalFrames())
	ds.frameToSeek.Store(decode.FrameUnknown)
	return ds
}

func (ds *decoderState) setFlag(flag uint32)   { ds.flags.Or(flag) }
func (ds *decoderState) clearFlag(flag uint32) { ds.flags.And(^flag) }
func (ds *decoderState) hasFlag(flag uint32) bool {
	return ds.flags.Load()&flag != 0
}

// renderedEverything reports whether every decoded frame of a finished
// stream has passed through the render callback.
func (ds *decoderState) renderedEverything() bool {
	total := ds.totalFrames.Load()
	return total != decode.FrameUnknown && ds.framesRendered.Load() == total
}

// requestSeek records frame as the pending seek target, replacing any
// earlier unserviced target.
func (ds *decoderState) requestSeek(frame int64) {
	ds.frameToSeek.Store(frame)
}

// pendingSeek returns the outstanding seek target, or decode.FrameUnknown.
func (ds *decoderState) pendingSeek() int64 {
	return ds.frameToSeek.Load()
}

// clearSeek retires target if it is still the pending seek. A false return
// means a newer seek arrived while this one was being serviced.
func (ds *decoderState) clearSeek(target int64) bool {
	return ds.frameToSeek.CompareAndSwap(target, decode.FrameUnknown)
}
