// SPDX-License-Identifier: MIT
package player

import "phono/internal/log"

// collectLoop retires decoder states after both sides of the pipeline are
// done with them: the render callback has finished (or a stop abandoned the
// decoder) and the decode goroutine has released it. It also services output
// stops requested from inside the render callback.
func (p *Player) collectLoop() {
	defer p.wg.Done()

	timer := newWaitTimer()
	for {
		if !p.waitSignal(p.collectSig, timer) {
			return
		}

		p.collectFinishedStates()
		p.serviceStopRequest()
	}
}

func (p *Player) collectFinishedStates() {
	for i := range p.active {
		ds := p.active[i].Load()
		if ds == nil || !ds.hasFlag(flagReadyForCollection) {
			continue
		}
		if !ds.hasFlag(flagRenderingFinished) && !ds.hasFlag(flagStopDecoding) {
			continue
		}
		if !p.active[i].CompareAndSwap(ds, nil) {
			continue
		}

		if err := ds.decoder.Close(); err != nil {
			log.Warnf("closing decoder %d: %v", ds.sequence, err)
		}
		log.Debugf("collected decoder %d (%d frames rendered)",
			ds.sequence, ds.framesRendered.Load())

		// A freed slot may unblock a decoder waiting to publish.
		signal(p.decodeSig)
	}
}

func (p *Player) serviceStopRequest() {
	if !p.stopWanted.CompareAndSwap(true, false) {
		return
	}
	if !p.playing.Load() {
		return
	}
	if err := p.out.Stop(); err != nil {
		log.Warnf("stopping drained output: %v", err)
	}
	p.playing.Store(false)
	log.Infof("playback finished, output stopped")
	p.events.playbackFinished()
}
