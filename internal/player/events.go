// SPDX-License-Identifier: MIT
package player

import "phono/internal/decode"

// Events is the set of optional playback notifications. RenderingStarted and
// RenderingFinished fire on the audio callback goroutine and must return
// quickly; the rest fire on the decode or collector goroutines. All fields
// may be nil.
type Events struct {
	// DecodingStarted fires when a decoder is taken off the queue and its
	// first frames are about to be produced.
	DecodingStarted func(d decode.Decoder)

	// DecodingComplete fires when a decoder reaches end of stream.
	DecodingComplete func(d decode.Decoder)

	// DecodingError fires when a decoder fails mid-stream. The decoder is
	// abandoned and playback continues with the next queued decoder.
	DecodingError func(d decode.Decoder, err error)

	// RenderingStarted fires when a decoder's first frame reaches the
	// output device.
	RenderingStarted func(d decode.Decoder)

	// RenderingFinished fires when a decoder's last frame has been handed
	// to the output device.
	RenderingFinished func(d decode.Decoder)

	// PlaybackFinished fires after the output has been stopped because the
	// ring drained with no current decoder and nothing queued.
	PlaybackFinished func()
}

func (e *Events) decodingStarted(d decode.Decoder) {
	if e.DecodingStarted != nil {
		e.DecodingStarted(d)
	}
}

func (e *Events) decodingComplete(d decode.Decoder) {
	if e.DecodingComplete != nil {
		e.DecodingComplete(d)
	}
}

func (e *Events) decodingError(d decode.Decoder, err error) {
	if e.DecodingError != nil {
		e.DecodingError(d, err)
	}
}

func (e *Events) renderingStarted(d decode.Decoder) {
	if e.RenderingStarted != nil {
		e.RenderingStarted(d)
	}
}

func (e *Events) renderingFinished(d decode.Decoder) {
	if e.RenderingFinished != nil {
		e.RenderingFinished(d)
	}
}

func (e *Events) playbackFinished() {
	if e.PlaybackFinished != nil {
		e.PlaybackFinished()
	}
}
