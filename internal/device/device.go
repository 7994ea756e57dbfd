// SPDX-License-Identifier: MIT
/*
Package device wraps PortAudio output device discovery and streaming.

Initialize must be called once before any other function in this package,
and Terminate once after all streams are closed.
*/
package device

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"phono/internal/config"
	"phono/internal/log"
)

// Info describes an output-capable device for CLI listings.
type Info struct {
	ID                int
	Name              string
	HostAPI           string
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefault         bool
}

// Initialize starts the PortAudio runtime.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}
	return nil
}

// Terminate shuts down the PortAudio runtime.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("terminating portaudio: %w", err)
	}
	return nil
}

// ListOutputDevices returns every device that can render audio.
func ListOutputDevices() ([]Info, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	defaultDev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		log.Warnf("no default output device: %v", err)
	}

	var infos []Info
	for i, dev := range devices {
		if dev.MaxOutputChannels <= 0 {
			continue
		}
		infos = append(infos, Info{
			ID:                i,
			Name:              dev.Name,
			HostAPI:           dev.HostApi.Name,
			MaxOutputChannels: dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultDev != nil && dev == defaultDev,
		})
	}
	return infos, nil
}

// outputDevice resolves a configured device ID. config.DefaultOutputDevice
// selects the system default.
func outputDevice(id int) (*portaudio.DeviceInfo, error) {
	if id <= config.MinDeviceID {
		dev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return nil, fmt.Errorf("resolving default output device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if id >= len(devices) {
		return nil, fmt.Errorf("device ID %d out of range (%d devices)", id, len(devices))
	}
	dev := devices[id]
	if dev.MaxOutputChannels <= 0 {
		return nil, fmt.Errorf("device %d (%s) has no output channels", id, dev.Name)
	}
	return dev, nil
}
