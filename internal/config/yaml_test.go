// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist-so-defaults.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit path")
	}

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig defaults failed: %v", err)
	}
	if cfg.Audio.OutputDevice != DefaultOutputDevice {
		t.Errorf("OutputDevice = %d, want %d", cfg.Audio.OutputDevice, DefaultOutputDevice)
	}
	if cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("FramesPerBuffer = %d, want %d", cfg.Audio.FramesPerBuffer, DefaultFramesPerBuffer)
	}
	if cfg.Audio.Volume != DefaultVolume {
		t.Errorf("Volume = %g, want %g", cfg.Audio.Volume, DefaultVolume)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	content := `
debug: true
log_level: debug
audio:
  output_device: 3
  frames_per_buffer: 512
  low_latency: true
  volume: 0.5
monitor:
  enabled: true
  fft_size: 2048
  interval: 50ms
  ws_enabled: true
  ws_addr: "127.0.0.1:9000"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
	if cfg.Audio.OutputDevice != 3 {
		t.Errorf("OutputDevice = %d, want 3", cfg.Audio.OutputDevice)
	}
	if cfg.Audio.FramesPerBuffer != 512 {
		t.Errorf("FramesPerBuffer = %d, want 512", cfg.Audio.FramesPerBuffer)
	}
	if cfg.Audio.Volume != 0.5 {
		t.Errorf("Volume = %g, want 0.5", cfg.Audio.Volume)
	}
	if !cfg.Monitor.Enabled || cfg.Monitor.FFTSize != 2048 {
		t.Errorf("Monitor = %+v, want enabled with fft_size 2048", cfg.Monitor)
	}
	if cfg.Monitor.Interval != Duration(50*time.Millisecond) {
		t.Errorf("Monitor.Interval = %s, want 50ms", cfg.Monitor.Interval)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("PHONO_OUTPUT_DEVICE", "7")
	t.Setenv("PHONO_DEBUG", "true")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Audio.OutputDevice != 7 {
		t.Errorf("OutputDevice = %d, want env override 7", cfg.Audio.OutputDevice)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want env override true")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero frames per buffer", func(c *Config) { c.Audio.FramesPerBuffer = 0 }},
		{"oversized frames per buffer", func(c *Config) { c.Audio.FramesPerBuffer = MaxBufferFrames + 1 }},
		{"negative device", func(c *Config) { c.Audio.OutputDevice = -2 }},
		{"volume above unity", func(c *Config) { c.Audio.Volume = 1.5 }},
		{"monitor without fft size", func(c *Config) { c.Monitor.Enabled = true; c.Monitor.FFTSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig("")
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid configuration")
			}
		})
	}
}
