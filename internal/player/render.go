// SPDX-License-Identifier: MIT
package player

import (
	"phono/internal/config"
	"phono/internal/decode"
)

// Render fills out with interleaved device samples. This is the pull side of
// the pipeline, invoked by the output device's audio callback.
//
// Performance Critical (Hot Path): no locks, no allocation, no blocking.
// Everything shared with the other goroutines is read through atomics; the
// one state transition that needs follow-up work (stopping the output after
// the ring drains) is handed to the collector.
func (p *Player) Render(out []float32) {
	p.renderSeq.Add(1)
	defer p.renderSeq.Add(1)

	for i := range out {
		out[i] = 0
	}

	if p.flags.Load()&(playerFlagSeeking|playerFlagFormatChanging) != 0 {
		return
	}

	ring := p.ring.Load()
	conv := p.conv.Load()
	if ring == nil || conv == nil {
		return
	}

	frames := len(out) / conv.dst.Channels
	renderedStart := p.framesRendered.Load()

	if p.framesDecoded.Load() == renderedStart {
		// Ring is dry. If the pipeline has nothing left to produce, ask the
		// collector to stop the output; a stop from inside the callback
		// would deadlock the device.
		if p.playing.Load() && p.currentDecoderState() == nil && !p.hasQueued() {
			p.stopWanted.Store(true)
			signal(p.collectSig)
		}
		signal(p.decodeSig)
		return
	}

	volume := p.Volume()
	srcCh := ring.Channels()
	pos := renderedStart

	conv.Fill(out, frames, volume, func(dst []float32, want int) int {
		n := int64(want)
		if avail := p.framesDecoded.Load() - pos; n > avail {
			n = avail
		}
		if n <= 0 {
			return 0
		}
		if err := ring.Fetch(dst[:int(n)*srcCh], int(n), pos); err != nil {
			return 0
		}
		pos += n
		p.framesRendered.Store(pos)
		return int(n)
	})

	p.attributeFrames(pos - renderedStart)

	if ring.Capacity()-(p.framesDecoded.Load()-p.framesRendered.Load()) >= config.WriteChunkFrames {
		signal(p.decodeSig)
	}

	if p.tap != nil {
		p.tap.Process(out[:frames*conv.dst.Channels], conv.dst, p.CurrentFrame(), p.TotalFrames())
	}
}

// attributeFrames walks the active states in sequence order, crediting the
// source frames just rendered to the decoders they came from and firing the
// rendering lifecycle events at the boundaries.
func (p *Player) attributeFrames(srcFrames int64) {
	remaining := srcFrames
	ds := p.currentDecoderState()

	for remaining > 0 && ds != nil {
		if !ds.hasFlag(flagRenderingStarted) {
			ds.setFlag(flagRenderingStarted)
			p.events.renderingStarted(ds.decoder)
		}

		credit := remaining
		if total := ds.totalFrames.Load(); total != decode.FrameUnknown {
			if left := total - ds.framesRendered.Load(); credit > left {
				credit = left
			}
		}
		ds.framesRendered.Add(credit)
		remaining -= credit

		// Retire only after the decode side confirmed end of stream; a
		// stream can look fully rendered for a moment while its final
		// frames are between the last store and the EOS read.
		if !ds.hasFlag(flagDecodingComplete) || !ds.renderedEverything() {
			break
		}
		ds.setFlag(flagRenderingFinished)
		p.events.renderingFinished(ds.decoder)
		signal(p.collectSig)
		ds = p.decoderStateAfter(ds.sequence)
	}
}
