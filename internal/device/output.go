// SPDX-License-Identifier: MIT
package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"phono/internal/config"
	"phono/internal/log"
	"phono/internal/player"
)

// Notifier receives device property notifications from the adapter.
// StreamFormatChanged is invoked after the output moves to another device so
// the pipeline can rebuild its stream state; DeviceStopped when the stream
// dies underneath it. Implemented by player.Player.
type Notifier interface {
	StreamFormatChanged() error
	DeviceStopped()
}

// Output drives a PortAudio output stream from a player.Renderer. It
// implements player.Output.
type Output struct {
	deviceID        int
	framesPerBuffer int
	lowLatency      bool

	renderer player.Renderer
	notifier Notifier

	mu      sync.Mutex
	stream  *portaudio.Stream
	format  player.StreamFormat
	running bool
}

// NewOutput creates an unopened output for the configured device. SetRenderer
// must be called before Open.
func NewOutput(cfg config.AudioConfig) *Output {
	return &Output{
		deviceID:        cfg.OutputDevice,
		framesPerBuffer: cfg.FramesPerBuffer,
		lowLatency:      cfg.LowLatency,
	}
}

// SetRenderer installs the pull source for the stream.
func (o *Output) SetRenderer(r player.Renderer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renderer = r
}

// SetNotifier installs the receiver for device property notifications.
func (o *Output) SetNotifier(n Notifier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notifier = n
}

// SelectDevice moves output to the device with the given ID and notifies the
// pipeline, which reopens its stream against the new device. If the reopen
// fails the pipeline is told the stream is gone.
func (o *Output) SelectDevice(id int) error {
	dev, err := outputDevice(id)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.deviceID = id
	n := o.notifier
	o.mu.Unlock()

	if n == nil {
		return nil
	}
	if err := n.StreamFormatChanged(); err != nil {
		n.DeviceStopped()
		return fmt.Errorf("reopening stream on %s: %w", dev.Name, err)
	}
	return nil
}

// Open configures a stream for the desired format, replacing any stream
// already open. The device may refuse the desired sample rate, in which case
// its default rate is used and returned; the caller converts.
func (o *Output) Open(desired player.StreamFormat) (player.StreamFormat, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.renderer == nil {
		return player.StreamFormat{}, errors.New("output has no renderer")
	}

	if err := o.closeStreamLocked(); err != nil {
		return player.StreamFormat{}, err
	}

	dev, err := outputDevice(o.deviceID)
	if err != nil {
		return player.StreamFormat{}, err
	}

	channels := desired.Channels
	if channels > dev.MaxOutputChannels {
		channels = dev.MaxOutputChannels
	}

	params := o.streamParameters(dev, channels, desired.SampleRate)
	render := o.renderer
	stream, err := portaudio.OpenStream(params, func(out []float32) {
		render.Render(out)
	})
	if err != nil && desired.SampleRate != dev.DefaultSampleRate {
		log.Warnf("device %s refused %.0f Hz, falling back to %.0f Hz: %v",
			dev.Name, desired.SampleRate, dev.DefaultSampleRate, err)
		params = o.streamParameters(dev, channels, dev.DefaultSampleRate)
		stream, err = portaudio.OpenStream(params, func(out []float32) {
			render.Render(out)
		})
	}
	if err != nil {
		return player.StreamFormat{}, fmt.Errorf("opening stream on %s: %w", dev.Name, err)
	}

	o.stream = stream
	o.format = player.StreamFormat{SampleRate: params.SampleRate, Channels: channels}

	log.Infof("output stream: %s, %.0f Hz, %d ch, %d frames/buffer",
		dev.Name, o.format.SampleRate, channels, params.FramesPerBuffer)
	return o.format, nil
}

func (o *Output) streamParameters(dev *portaudio.DeviceInfo, channels int, sampleRate float64) portaudio.StreamParameters {
	var params portaudio.StreamParameters
	if o.lowLatency {
		params = portaudio.LowLatencyParameters(nil, dev)
	} else {
		params = portaudio.HighLatencyParameters(nil, dev)
	}
	params.Output.Channels = channels
	params.SampleRate = sampleRate
	params.FramesPerBuffer = o.framesPerBuffer
	return params
}

// Start begins callback delivery.
func (o *Output) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil {
		return errors.New("output not open")
	}
	if o.running {
		return nil
	}
	if err := o.stream.Start(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	o.running = true
	return nil
}

// Stop halts callback delivery. The stream stays open for a later Start.
func (o *Output) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream == nil || !o.running {
		return nil
	}
	if err := o.stream.Stop(); err != nil {
		return fmt.Errorf("stopping stream: %w", err)
	}
	o.running = false
	return nil
}

// Close stops and releases the stream.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closeStreamLocked()
}

func (o *Output) closeStreamLocked() error {
	if o.stream == nil {
		return nil
	}
	if o.running {
		if err := o.stream.Stop(); err != nil {
			log.Warnf("stopping stream before close: %v", err)
		}
		o.running = false
	}
	if err := o.stream.Close(); err != nil {
		return fmt.Errorf("closing stream: %w", err)
	}
	o.stream = nil
	return nil
}
