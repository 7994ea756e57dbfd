// SPDX-License-Identifier: MIT
package player

import (
	"io"
	"runtime"
	"time"

	"phono/internal/config"
	"phono/internal/decode"
	"phono/internal/log"
)

// decodeLoop drains the decoder queue, one decoder at a time, until Close.
// The goroutine is pinned to its OS thread so decoding keeps a steady cadence
// relative to the audio callback.
func (p *Player) decodeLoop() {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	timer := newWaitTimer()
	for {
		select {
		case <-p.done:
			return
		default:
		}

		dec := p.popQueue()
		if dec == nil {
			if !p.waitSignal(p.decodeSig, timer) {
				return
			}
			continue
		}
		p.runDecoder(dec, timer)
	}
}

// runDecoder publishes a state for dec and decodes it into the ring until
// end of stream, a stop, or shutdown. The decoder is only touched here;
// flagReadyForCollection tells the collector this goroutine has let go.
func (p *Player) runDecoder(dec decode.Decoder, timer *time.Timer) {
	ds := newDecoderState(dec, p.sequence.Add(1), config.WriteChunkFrames)

	for !p.publishState(ds) {
		log.Warnf("active decoder registry full, decoder %d waiting for a slot", ds.sequence)
		if !p.waitSignal(p.decodeSig, timer) {
			dec.Close()
			return
		}
	}

	log.Debugf("decoding started: decoder %d, %d frames at %d Hz / %d ch",
		ds.sequence, dec.TotalFrames(), dec.Format().SampleRate, dec.Format().Channels)
	p.events.decodingStarted(dec)

	ch := dec.Format().Channels

	for !ds.hasFlag(flagStopDecoding) && !ds.hasFlag(flagRenderingFinished) {
		if target := ds.pendingSeek(); target != decode.FrameUnknown {
			p.performSeek(ds, target)
			continue
		}

		if ds.hasFlag(flagDecodingComplete) {
			// Done decoding but still rendering. Move on once another
			// decoder is waiting, otherwise linger to service late seeks.
			if p.hasQueued() {
				break
			}
			if !p.waitSignal(p.decodeSig, timer) {
				break
			}
			continue
		}

		ring := p.ring.Load()
		free := ring.Capacity() - (p.framesDecoded.Load() - p.framesRendered.Load())
		if free < config.WriteChunkFrames {
			if !p.waitSignal(p.decodeSig, timer) {
				break
			}
			continue
		}

		n, err := dec.ReadAudio(ds.chunk, config.WriteChunkFrames)
		if n > 0 {
			if serr := ring.Store(ds.chunk[:n*ch], n, p.framesDecoded.Load()); serr != nil {
				log.Errorf("ring store failed: %v", serr)
			}
			p.framesDecoded.Add(int64(n))
			ds.framesDecoded.Add(int64(n))
		}

		if n == 0 {
			if err != nil && err != io.EOF {
				log.Errorf("decoder %d failed: %v", ds.sequence, err)
				p.events.decodingError(dec, err)
			}
			p.finishDecoding(ds)
		}
	}

	ds.setFlag(flagReadyForCollection)
	signal(p.collectSig)
}

// finishDecoding pins the decoder's total frame count to what was actually
// produced and marks decoding complete. The render callback retires the
// state once its rendered count reaches that total.
func (p *Player) finishDecoding(ds *decoderState) {
	decoded := ds.framesDecoded.Load()
	if ds.totalFrames.Load() != decoded {
		ds.totalFrames.Store(decoded)
	}
	if !ds.hasFlag(flagDecodingComplete) {
		ds.setFlag(flagDecodingComplete)
		log.Debugf("decoding complete: decoder %d, %d frames", ds.sequence, decoded)
		p.events.decodingComplete(ds.decoder)
	}
}

// performSeek repositions ds's decoder at target and rewinds the shared
// frame timeline to the render position, so the next store restarts the
// ring span right where the output is reading. Rendering emits silence for
// the duration.
func (p *Player) performSeek(ds *decoderState, target int64) {
	dec := ds.decoder
	if !dec.SupportsSeeking() {
		ds.clearSeek(target)
		return
	}
	if total := ds.totalFrames.Load(); total != decode.FrameUnknown && target > total {
		target = total
	}

	p.flags.Or(playerFlagSeeking)

	// A render that passed the silence check before the flag was raised may
	// still be advancing framesRendered. Wait for it to drain so the rewind
	// below cannot interleave with its progress store.
	for p.renderSeq.Load()&1 != 0 {
		if ds.hasFlag(flagStopDecoding) {
			p.flags.And(^playerFlagSeeking)
			return
		}
		select {
		case <-p.done:
			p.flags.And(^playerFlagSeeking)
			return
		default:
			runtime.Gosched()
		}
	}

	reached := dec.SeekToFrame(target)
	if reached < 0 {
		log.Errorf("decoder %d: seek to frame %d failed", ds.sequence, target)
	} else {
		ds.framesDecoded.Store(reached)
		ds.framesRendered.Store(reached)
		p.framesDecoded.Store(p.framesRendered.Load())
		ds.clearFlag(flagDecodingComplete)
		log.Debugf("decoder %d: seeked to frame %d", ds.sequence, reached)
	}

	// A newer target may have arrived while this one was serviced; the CAS
	// leaves it in place for the next loop pass.
	ds.clearSeek(target)
	p.flags.And(^playerFlagSeeking)
}
