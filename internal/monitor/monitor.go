// SPDX-License-Identifier: MIT
/*
Package monitor observes rendered audio through a player render tap and
publishes periodic analysis snapshots (level, spectrum band energies,
playback position) to one or more transports.

The tap side runs on the audio callback and only copies samples under a
non-blocking lock; all analysis happens on the publisher goroutine.
*/
package monitor

import (
	"math"
	"math/cmplx"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"phono/internal/log"
	"phono/internal/player"
	"phono/internal/transport"
	"phono/pkg/bitint"
)

// Band is one frequency band's energy in a snapshot.
type Band struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"lowHz"`
	HighHz float64 `json:"highHz"`
	Energy float64 `json:"energy"`
}

// Snapshot is the JSON payload published to transports.
type Snapshot struct {
	Sequence       uint64  `json:"sequence"`
	TimestampNs    int64   `json:"timestampNs"`
	SampleRate     float64 `json:"sampleRate"`
	PositionFrames int64   `json:"positionFrames"`
	TotalFrames    int64   `json:"totalFrames"`
	RMS            float64 `json:"rms"`
	Peak           float64 `json:"peak"`
	Bands          []Band  `json:"bands"`
}

// Monitor taps rendered audio, runs a windowed FFT over the most recent
// block and publishes snapshots at a fixed interval. It implements
// player.RenderTap.
type Monitor struct {
	fftSize  int
	interval time.Duration
	sinks    []transport.Transport

	// Capture state, shared between the audio callback and the publisher.
	// The callback uses TryLock and skips the block when the publisher
	// holds the lock.
	captureMu  sync.Mutex
	capture    []float64 // mono-mixed samples
	captureLen int
	sampleRate float64
	position   int64
	total      int64
	fresh      bool

	fft       *fourier.FFT
	window    []float64
	input     []float64
	coeffs    []complex128
	magnitude []float64
	bands     []Band

	sequence uint64
	done     chan struct{}
	wg       sync.WaitGroup
	started  bool
}

// New creates a Monitor publishing to sinks every interval. fftSize must be
// a power of two.
func New(fftSize int, interval time.Duration, sinks []transport.Transport) *Monitor {
	if !bitint.IsPowerOfTwo(fftSize) {
		fftSize = bitint.NextPowerOfTwo(fftSize)
		log.Warnf("monitor FFT size rounded up to %d", fftSize)
	}

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(fftSize-1)))
	}

	outputSize := fftSize/2 + 1
	return &Monitor{
		fftSize:   fftSize,
		interval:  interval,
		sinks:     sinks,
		capture:   make([]float64, fftSize),
		fft:       fourier.NewFFT(fftSize),
		window:    window,
		input:     make([]float64, fftSize),
		coeffs:    make([]complex128, outputSize),
		magnitude: make([]float64, outputSize),
		bands: []Band{
			{Name: "sub", LowHz: 20, HighHz: 60},
			{Name: "bass", LowHz: 60, HighHz: 250},
			{Name: "lowMid", LowHz: 250, HighHz: 500},
			{Name: "mid", LowHz: 500, HighHz: 2000},
			{Name: "highMid", LowHz: 2000, HighHz: 4000},
			{Name: "treble", LowHz: 4000, HighHz: 20000},
		},
		done: make(chan struct{}),
	}
}

// Process captures the rendered block. Part of the audio callback path: it
// never blocks and never allocates, dropping the block when the publisher
// holds the capture buffer.
func (m *Monitor) Process(buf []float32, format player.StreamFormat, positionFrames, totalFrames int64) {
	if !m.captureMu.TryLock() {
		return
	}
	defer m.captureMu.Unlock()

	ch := format.Channels
	if ch <= 0 {
		return
	}
	frames := len(buf) / ch

	for i := 0; i < frames && m.captureLen < m.fftSize; i++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf[i*ch+c])
		}
		m.capture[m.captureLen] = sum / float64(ch)
		m.captureLen++
	}

	m.sampleRate = format.SampleRate
	m.position = positionFrames
	m.total = totalFrames
	if m.captureLen == m.fftSize {
		m.fresh = true
	}
}

// Start launches the publisher goroutine.
func (m *Monitor) Start() {
	if m.started {
		return
	}
	m.started = true

	m.wg.Add(1)
	go m.publishLoop()
}

// Stop halts publishing and closes every sink.
func (m *Monitor) Stop() {
	if !m.started {
		return
	}
	m.started = false

	close(m.done)
	m.wg.Wait()

	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			log.Warnf("closing monitor sink: %v", err)
		}
	}
}

func (m *Monitor) publishLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if snap, ok := m.analyze(); ok {
				m.publish(snap)
			}
		case <-m.done:
			return
		}
	}
}

// analyze windows the captured block, runs the FFT and folds the magnitudes
// into band energies. Returns false when no complete block has arrived since
// the last snapshot.
func (m *Monitor) analyze() (Snapshot, bool) {
	m.captureMu.Lock()
	if !m.fresh {
		m.captureMu.Unlock()
		return Snapshot{}, false
	}

	var sumSquares, peak float64
	for i, v := range m.capture {
		if a := math.Abs(v); a > peak {
			peak = a
		}
		sumSquares += v * v
		m.input[i] = v * m.window[i]
	}

	snap := Snapshot{
		TimestampNs:    time.Now().UnixNano(),
		SampleRate:     m.sampleRate,
		PositionFrames: m.position,
		TotalFrames:    m.total,
		RMS:            math.Sqrt(sumSquares / float64(m.fftSize)),
		Peak:           peak,
	}

	m.fresh = false
	m.captureLen = 0
	m.captureMu.Unlock()

	m.fft.Coefficients(m.coeffs, m.input)
	for i := range m.coeffs {
		m.magnitude[i] = cmplx.Abs(m.coeffs[i])
	}

	snap.Bands = m.bandEnergies(snap.SampleRate)

	m.sequence++
	snap.Sequence = m.sequence
	return snap, true
}

// bandEnergies sums squared magnitudes per band, normalized by bin count.
func (m *Monitor) bandEnergies(sampleRate float64) []Band {
	out := make([]Band, len(m.bands))
	copy(out, m.bands)

	counts := make([]int, len(out))
	for i := range m.magnitude {
		freq := m.fft.Freq(i) * sampleRate
		for b := range out {
			if freq >= out[b].LowHz && freq < out[b].HighHz {
				out[b].Energy += m.magnitude[i] * m.magnitude[i]
				counts[b]++
				break
			}
		}
	}
	for b := range out {
		if counts[b] > 0 {
			out[b].Energy /= float64(counts[b])
		}
	}
	return out
}

func (m *Monitor) publish(snap Snapshot) {
	for _, sink := range m.sinks {
		if err := sink.Send(snap); err != nil {
			log.Warnf("monitor publish: %v", err)
		}
	}
}

var _ player.RenderTap = (*Monitor)(nil)
