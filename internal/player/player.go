// SPDX-License-Identifier: MIT
/*
Package player implements the real-time playback pipeline: a decode goroutine
fills a frame-addressed ring buffer, the output device pulls converted PCM
through Render, and a collector goroutine retires spent decoders.

Decoded audio is addressed by absolute frame counters on a shared timeline.
The decode goroutine owns framesDecoded, the render callback owns
framesRendered, and the span between them is the audio buffered in the ring.
Decoder lifecycles are tracked in a fixed array of atomically published
states so the render callback can attribute frames to decoders without
taking a lock.
*/
package player

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"phono/internal/config"
	"phono/internal/decode"
	"phono/internal/log"
)

// Player pipeline flags.
const (
	playerFlagSeeking uint32 = 1 << iota
	playerFlagFormatChanging
)

// Renderer is the pull side of the pipeline, implemented by Player and
// consumed by output devices.
type Renderer interface {
	// Render fills out with interleaved device-format samples. It is called
	// from the audio callback and never blocks.
	Render(out []float32)
}

// Output abstracts the audio device the pipeline renders into.
type Output interface {
	// Open configures the device stream for the desired format and returns
	// the format actually granted. Reopening with a new format is allowed.
	Open(desired StreamFormat) (StreamFormat, error)

	// Start begins pulling audio through the renderer.
	Start() error

	// Stop halts the device stream. Buffered device frames are dropped.
	Stop() error

	// Close releases the device.
	Close() error
}

// RenderTap observes rendered audio without being part of the signal path.
// Process is called from the audio callback with the freshly rendered block
// and must not block.
type RenderTap interface {
	Process(buf []float32, format StreamFormat, positionFrames, totalFrames int64)
}

// Player coordinates decoding, buffering and rendering for a queue of
// decoders sharing one PCM format.
type Player struct {
	out    Output
	events Events

	// tap is set before playback starts and never mutated afterwards.
	tap RenderTap

	ring atomic.Pointer[RingBuffer]
	conv atomic.Pointer[Converter]

	// Global frame timeline. framesDecoded is advanced only by the decode
	// goroutine, framesRendered only by the render callback.
	framesDecoded  atomic.Int64
	framesRendered atomic.Int64

	flags      atomic.Uint32
	volumeBits atomic.Uint32
	playing    atomic.Bool
	stopWanted atomic.Bool // render asks the collector to stop the output

	// renderSeq is odd while a Render call is executing. The decode goroutine
	// waits for it to go even before rewinding the frame counters on a seek.
	renderSeq atomic.Uint64

	sequence atomic.Uint64
	active   [config.MaxActiveDecoders]atomic.Pointer[decoderState]

	mu           sync.Mutex
	queue        []decode.Decoder
	queued       atomic.Int32 // len(queue), readable from the render callback
	ringFormat   decode.Format
	deviceFormat StreamFormat

	decodeSig  chan struct{}
	collectSig chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
}

// New creates a Player rendering into out and starts its decode and collector
// goroutines. The caller must route the device's pull callback to Render,
// then drive playback with Enqueue and Play.
func New(out Output, events Events) *Player {
	p := &Player{
		out:        out,
		events:     events,
		decodeSig:  make(chan struct{}, 1),
		collectSig: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	p.setVolumeBits(config.DefaultVolume)

	p.wg.Add(2)
	go p.decodeLoop()
	go p.collectLoop()

	return p
}

// SetRenderTap installs an observer for rendered audio. Must be called
// before Play.
func (p *Player) SetRenderTap(t RenderTap) { p.tap = t }

// Enqueue adds a decoder to the playback queue. The first decoder enqueued
// while the pipeline is idle fixes the stream format; later decoders must
// match it until the pipeline drains back to idle.
func (p *Player) Enqueue(d decode.Decoder) error {
	f := d.Format()
	if !f.Valid() {
		return fmt.Errorf("enqueue: invalid decoder format %+v", f)
	}
	if f.SampleRate < config.MinSampleRate || f.SampleRate > config.MaxSampleRate {
		return fmt.Errorf("enqueue: sample rate %d outside [%d, %d]",
			f.SampleRate, config.MinSampleRate, config.MaxSampleRate)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.ring.Load() == nil:
		if err := p.setupStreamLocked(f); err != nil {
			return err
		}
	case f != p.ringFormat:
		if !p.idleLocked() {
			return fmt.Errorf("enqueue %d Hz / %d ch into %d Hz / %d ch stream: %w",
				f.SampleRate, f.Channels, p.ringFormat.SampleRate, p.ringFormat.Channels, ErrFormatMismatch)
		}
		if err := p.setupStreamLocked(f); err != nil {
			return err
		}
	}

	p.queue = append(p.queue, d)
	p.queued.Add(1)
	signal(p.decodeSig)
	return nil
}

// Play starts the output device.
func (p *Player) Play() error {
	if p.ring.Load() == nil {
		return ErrNothingPlaying
	}
	if p.playing.Load() {
		return nil
	}
	if err := p.out.Start(); err != nil {
		return fmt.Errorf("starting output: %w", err)
	}
	p.playing.Store(true)
	return nil
}

// Pause halts the output device without disturbing decode progress. Play
// resumes exactly where rendering left off.
func (p *Player) Pause() error {
	if !p.playing.Load() {
		return nil
	}
	if err := p.out.Stop(); err != nil {
		return fmt.Errorf("stopping output: %w", err)
	}
	p.playing.Store(false)
	return nil
}

// Playing reports whether the output device is running.
func (p *Player) Playing() bool { return p.playing.Load() }

// Stop halts playback and discards all playback state: queued decoders,
// active decoders and buffered audio. The stream stays configured so a
// subsequent Enqueue of the same format reuses it.
func (p *Player) Stop() error {
	err := p.Pause()

	p.mu.Lock()
	queued := p.queue
	p.queue = nil
	p.queued.Add(-int32(len(queued)))
	p.mu.Unlock()

	for _, d := range queued {
		d.Close()
	}

	// Flag every active state and wait for the decode goroutine to release
	// them, so no in-flight store lands after the counters reset. The loop
	// re-flags because a decoder popped just before the queue was cleared
	// may publish its state mid-stop.
	deadline := time.Now().Add(config.WaitTimeout)
	for time.Now().Before(deadline) {
		released := true
		for i := range p.active {
			ds := p.active[i].Load()
			if ds == nil {
				continue
			}
			ds.setFlag(flagStopDecoding)
			if !ds.hasFlag(flagReadyForCollection) {
				released = false
			}
		}
		if released {
			break
		}
		signal(p.decodeSig)
		time.Sleep(time.Millisecond)
	}
	signal(p.collectSig)

	p.framesDecoded.Store(0)
	p.framesRendered.Store(0)
	if ring := p.ring.Load(); ring != nil {
		ring.Reset(0)
	}
	return err
}

// Close stops playback, shuts down the pipeline goroutines and releases the
// output device.
func (p *Player) Close() error {
	err := p.Stop()

	close(p.done)
	p.wg.Wait()

	for i := range p.active {
		if ds := p.active[i].Swap(nil); ds != nil {
			ds.decoder.Close()
		}
	}

	if cerr := p.out.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// ClearQueuedDecoders discards decoders that have not started decoding.
// The current decoder is unaffected.
func (p *Player) ClearQueuedDecoders() {
	p.mu.Lock()
	queued := p.queue
	p.queue = nil
	p.queued.Add(-int32(len(queued)))
	p.mu.Unlock()

	for _, d := range queued {
		d.Close()
	}
}

// Volume returns the soft volume applied during rendering.
func (p *Player) Volume() float32 {
	return math.Float32frombits(p.volumeBits.Load())
}

// SetVolume sets the soft volume. v must be in [0, 1].
func (p *Player) SetVolume(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume %f outside [0, 1]", v)
	}
	p.setVolumeBits(v)
	return nil
}

func (p *Player) setVolumeBits(v float32) {
	p.volumeBits.Store(math.Float32bits(v))
}

// CurrentFrame returns the playback position of the current decoder in its
// own stream, or -1 when nothing is playing. A pending seek target is
// reported as the position immediately, before the decoder repositions.
func (p *Player) CurrentFrame() int64 {
	ds := p.currentDecoderState()
	if ds == nil {
		return -1
	}
	if target := ds.pendingSeek(); target != decode.FrameUnknown {
		return target
	}
	return ds.framesRendered.Load()
}

// TotalFrames returns the current decoder's length in frames, -1 when the
// length is unknown or nothing is playing.
func (p *Player) TotalFrames() int64 {
	ds := p.currentDecoderState()
	if ds == nil {
		return -1
	}
	return ds.totalFrames.Load()
}

// CurrentTime returns the playback position in seconds, or -1 when nothing
// is playing.
func (p *Player) CurrentTime() float64 {
	ds := p.currentDecoderState()
	if ds == nil {
		return -1
	}
	frame := ds.framesRendered.Load()
	if target := ds.pendingSeek(); target != decode.FrameUnknown {
		frame = target
	}
	return float64(frame) / float64(ds.decoder.Format().SampleRate)
}

// TotalTime returns the current decoder's duration in seconds, or -1 when
// unknown or nothing is playing.
func (p *Player) TotalTime() float64 {
	ds := p.currentDecoderState()
	if ds == nil {
		return -1
	}
	total := ds.totalFrames.Load()
	if total == decode.FrameUnknown {
		return -1
	}
	return float64(total) / float64(ds.decoder.Format().SampleRate)
}

// SeekToFrame requests a reposition of the current decoder to frame. The
// seek is serviced asynchronously by the decode goroutine; rendering emits
// silence until the decoder has repositioned.
func (p *Player) SeekToFrame(frame int64) error {
	ds := p.currentDecoderState()
	if ds == nil {
		return ErrNothingPlaying
	}
	if !ds.decoder.SupportsSeeking() {
		return ErrNotSeekable
	}

	if frame < 0 {
		frame = 0
	}
	if total := ds.totalFrames.Load(); total != decode.FrameUnknown && frame > total {
		frame = total
	}

	ds.requestSeek(frame)
	signal(p.decodeSig)
	return nil
}

// SupportsSeeking reports whether the current decoder can reposition its
// stream. Returns false when nothing is playing.
func (p *Player) SupportsSeeking() bool {
	ds := p.currentDecoderState()
	return ds != nil && ds.decoder.SupportsSeeking()
}

// SeekToTime seeks the current decoder to the given offset in seconds.
func (p *Player) SeekToTime(seconds float64) error {
	ds := p.currentDecoderState()
	if ds == nil {
		return ErrNothingPlaying
	}
	if seconds < 0 {
		seconds = 0
	}
	return p.SeekToFrame(int64(seconds * float64(ds.decoder.Format().SampleRate)))
}

// SeekForward seeks the current decoder ahead by the given seconds.
func (p *Player) SeekForward(seconds float64) error {
	return p.seekRelative(seconds)
}

// SeekBackward seeks the current decoder back by the given seconds.
func (p *Player) SeekBackward(seconds float64) error {
	return p.seekRelative(-seconds)
}

func (p *Player) seekRelative(seconds float64) error {
	ds := p.currentDecoderState()
	if ds == nil {
		return ErrNothingPlaying
	}
	pos := ds.framesRendered.Load()
	if target := ds.pendingSeek(); target != decode.FrameUnknown {
		pos = target
	}
	delta := int64(seconds * float64(ds.decoder.Format().SampleRate))
	return p.SeekToFrame(pos + delta)
}

// StreamFormatChanged reopens the output device for the active stream
// format. Call it when the device configuration changes underneath the
// pipeline (default device switch, sample rate change). Rendering emits
// silence while the device is rebuilt.
func (p *Player) StreamFormatChanged() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ring.Load() == nil {
		return nil
	}

	wasPlaying := p.playing.Load()
	if wasPlaying {
		if err := p.out.Stop(); err != nil {
			log.Warnf("stopping output for format change: %v", err)
		}
		p.playing.Store(false)
	}

	p.flags.Or(playerFlagFormatChanging)
	defer p.flags.And(^playerFlagFormatChanging)

	f := p.ringFormat
	actual, err := p.out.Open(StreamFormat{SampleRate: float64(f.SampleRate), Channels: f.Channels})
	if err != nil {
		return fmt.Errorf("reopening output: %w", err)
	}
	p.deviceFormat = actual
	p.conv.Store(NewConverter(f, actual, config.MaxBufferFrames))

	if wasPlaying {
		if err := p.out.Start(); err != nil {
			return fmt.Errorf("restarting output: %w", err)
		}
		p.playing.Store(true)
	}
	return nil
}

// DeviceStopped handles the output stream dying underneath the pipeline
// (device unplugged, host API teardown). The player stops tracking the
// stream as running and reports the end of playback; decoders and queue are
// left intact so a later Play can resume on a rebuilt stream.
func (p *Player) DeviceStopped() {
	if !p.playing.CompareAndSwap(true, false) {
		return
	}
	log.Warnf("output device stopped outside the pipeline")
	p.events.playbackFinished()
}

// setupStreamLocked opens the output for a new PCM format and rebuilds the
// ring and converter around it. Caller holds p.mu.
func (p *Player) setupStreamLocked(f decode.Format) error {
	actual, err := p.out.Open(StreamFormat{SampleRate: float64(f.SampleRate), Channels: f.Channels})
	if err != nil {
		return fmt.Errorf("opening output for %d Hz / %d ch: %w", f.SampleRate, f.Channels, err)
	}

	p.framesDecoded.Store(0)
	p.framesRendered.Store(0)
	p.ring.Store(NewRingBuffer(config.RingBufferFrames, f.Channels))
	p.conv.Store(NewConverter(f, actual, config.MaxBufferFrames))
	p.ringFormat = f
	p.deviceFormat = actual

	log.Debugf("stream configured: %d Hz / %d ch -> device %.0f Hz / %d ch",
		f.SampleRate, f.Channels, actual.SampleRate, actual.Channels)
	return nil
}

// idleLocked reports whether no decoder is queued or active. Caller holds
// p.mu.
func (p *Player) idleLocked() bool {
	if len(p.queue) > 0 {
		return false
	}
	for i := range p.active {
		if p.active[i].Load() != nil {
			return false
		}
	}
	return true
}

// currentDecoderState returns the active state with the lowest sequence
// number that has not finished rendering, or nil.
func (p *Player) currentDecoderState() *decoderState {
	var best *decoderState
	for i := range p.active {
		ds := p.active[i].Load()
		if ds == nil || ds.hasFlag(flagRenderingFinished) || ds.hasFlag(flagStopDecoding) {
			continue
		}
		if best == nil || ds.sequence < best.sequence {
			best = ds
		}
	}
	return best
}

// decoderStateAfter returns the live state with the lowest sequence number
// greater than sequence, or nil.
func (p *Player) decoderStateAfter(sequence uint64) *decoderState {
	var best *decoderState
	for i := range p.active {
		ds := p.active[i].Load()
		if ds == nil || ds.sequence <= sequence || ds.hasFlag(flagRenderingFinished) || ds.hasFlag(flagStopDecoding) {
			continue
		}
		if best == nil || ds.sequence < best.sequence {
			best = ds
		}
	}
	return best
}

// publishState installs ds into a free registry slot. Returns false when
// every slot is occupied.
func (p *Player) publishState(ds *decoderState) bool {
	for i := range p.active {
		if p.active[i].CompareAndSwap(nil, ds) {
			return true
		}
	}
	return false
}

func (p *Player) hasQueued() bool {
	return p.queued.Load() > 0
}

// popQueue removes and returns the next queued decoder, or nil.
func (p *Player) popQueue() decode.Decoder {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil
	}
	d := p.queue[0]
	p.queue = p.queue[1:]
	p.queued.Add(-1)
	return d
}

// signal wakes a pipeline goroutine without blocking. A signal that arrives
// while one is already pending collapses into it.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// waitSignal blocks on ch until a signal, the shutdown channel, or the wait
// timeout. Returns false on shutdown. The timer is owned by the calling
// goroutine and reused across waits to keep the loops allocation-free.
func (p *Player) waitSignal(ch chan struct{}, timer *time.Timer) bool {
	timer.Reset(config.WaitTimeout)
	defer timer.Stop()

	select {
	case <-ch:
		return true
	case <-p.done:
		return false
	case <-timer.C:
		return true
	}
}

// newWaitTimer returns a stopped timer for use with waitSignal.
func newWaitTimer() *time.Timer {
	t := time.NewTimer(config.WaitTimeout)
	t.Stop()
	return t
}
