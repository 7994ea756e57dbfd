// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from
// YAML with environment overrides applied afterwards.
type Config struct {
	Debug    bool          `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel string        `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio    AudioConfig   `yaml:"audio"`     // Playback and device settings.
	Monitor  MonitorConfig `yaml:"monitor"`   // Playback monitor settings.
}

// AudioConfig holds settings related to the output device and playback.
type AudioConfig struct {
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Device buffer size in frames (affects latency).
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from the device.
	Volume          float64 `yaml:"volume"`            // Soft master volume, 0.0-1.0.
}

// MonitorConfig holds settings for the playback monitor, which publishes
// position, level, and spectrum snapshots of rendered audio.
type MonitorConfig struct {
	Enabled    bool     `yaml:"enabled"`            // Enable the playback monitor.
	FFTSize    int      `yaml:"fft_size"`           // Spectrum window size (power of 2).
	Interval   Duration `yaml:"interval"`           // Snapshot publish interval.
	WSEnabled  bool     `yaml:"ws_enabled"`         // Broadcast snapshots over WebSocket.
	WSAddr     string   `yaml:"ws_addr"`            // WebSocket listen address ("host:port").
	UDPEnabled bool     `yaml:"udp_enabled"`        // Send snapshots over UDP.
	UDPTarget  string   `yaml:"udp_target_address"` // UDP target ("host:port").
}

// Duration wraps time.Duration so YAML files can use human-readable values
// like "50ms" or "1s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty, it searches default locations ("config.yaml"). If no file is
// found, it uses built-in defaults. After loading, environment variable
// overrides are applied and the final configuration is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			OutputDevice:    DefaultOutputDevice,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			Volume:          DefaultVolume,
		},
		Monitor: MonitorConfig{
			Enabled:    false,
			FFTSize:    DefaultMonitorFFTSize,
			Interval:   Duration(DefaultMonitorInterval),
			WSEnabled:  false,
			WSAddr:     DefaultMonitorWSAddr,
			UDPEnabled: false,
			UDPTarget:  DefaultMonitorUDPAddr,
		},
	}

	if path == "" {
		candidates := []string{
			"config.yaml",
		}
		found := false
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				found = true
				break
			}
		}
		if !found {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer must be in (0, %d], got %d",
			MaxBufferFrames, c.Audio.FramesPerBuffer)
	}
	if c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("audio.output_device must be >= %d, got %d",
			MinDeviceID, c.Audio.OutputDevice)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		return fmt.Errorf("audio.volume must be in [0, 1], got %g", c.Audio.Volume)
	}
	if c.Monitor.Enabled {
		if c.Monitor.FFTSize <= 0 {
			return fmt.Errorf("monitor.fft_size must be positive, got %d", c.Monitor.FFTSize)
		}
		if c.Monitor.Interval <= 0 {
			return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
		}
		if c.Monitor.UDPEnabled && c.Monitor.UDPTarget == "" {
			return fmt.Errorf("monitor.udp_target_address must be set when UDP is enabled")
		}
	}
	return nil
}

// applyEnvOverrides applies PHONO_* environment variables, which take
// precedence over both defaults and values loaded from the file.
func (cfg *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("PHONO_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	if val, ok := os.LookupEnv("PHONO_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}
	if val, ok := os.LookupEnv("PHONO_OUTPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.OutputDevice = iVal
		}
	}
	if val, ok := os.LookupEnv("PHONO_MONITOR_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Monitor.Enabled = bVal
		}
	}
	if val, ok := os.LookupEnv("PHONO_MONITOR_WS_ADDR"); ok {
		cfg.Monitor.WSAddr = val
	}
	if val, ok := os.LookupEnv("PHONO_MONITOR_UDP_TARGET"); ok {
		cfg.Monitor.UDPTarget = val
	}
	if val, ok := os.LookupEnv("PHONO_MONITOR_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Monitor.Interval = Duration(dur)
		}
	}
}
