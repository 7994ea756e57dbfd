// SPDX-License-Identifier: MIT
package config

import "time"

// Core constants that define the boundaries and defaults for the playback
// pipeline. Ring buffer geometry is fixed at compile time: the render path
// depends on the write-chunk granularity for its free-space accounting.
const (
	// Ring buffer geometry
	RingBufferFrames = 16384 // Default ring capacity in frames (power of 2)
	WriteChunkFrames = 2048  // Minimum decode store unit, amortizes sync cost

	// Active decoder registry
	MaxActiveDecoders = 8 // Fixed slot count; lookups are linear scans

	// Decode/collector wait bound. Waits are signal-driven; the timeout only
	// guarantees shutdown is noticed promptly.
	WaitTimeout = 2 * time.Second

	// Default values for the playback configuration
	DefaultOutputDevice    = MinDeviceID // System default output device
	DefaultFramesPerBuffer = 1024        // Device buffer size, balanced latency
	DefaultLowLatency      = false       // Standard latency mode
	DefaultVolume          = 1.0         // Full-scale soft volume
	DefaultLogLevel        = "info"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum device frames per buffer (power of 2)

	// Monitor defaults
	DefaultMonitorFFTSize  = 1024
	DefaultMonitorInterval = 33 * time.Millisecond // ~30 Hz
	DefaultMonitorWSAddr   = "127.0.0.1:8080"
	DefaultMonitorUDPAddr  = "127.0.0.1:9090"
)
