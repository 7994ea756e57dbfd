// SPDX-License-Identifier: MIT
package player

import (
	"testing"

	"phono/internal/decode"
)

func feedRamp(src []float32, frameCount int) int {
	for i := range src[:frameCount] {
		src[i] = float32(i)
	}
	return frameCount
}

func TestConverterPassThrough(t *testing.T) {
	c := NewConverter(decode.Format{SampleRate: 44100, Channels: 2},
		StreamFormat{SampleRate: 44100, Channels: 2}, 256)

	dst := make([]float32, 64*2)
	n := c.Fill(dst, 64, 1.0, func(src []float32, frames int) int {
		for i := range src {
			src[i] = float32(i)
		}
		return frames
	})
	if n != 64 {
		t.Fatalf("Fill = %d frames, want 64", n)
	}
	for i := range dst {
		if dst[i] != float32(i) {
			t.Fatalf("sample %d = %f, want %d", i, dst[i], i)
		}
	}
}

func TestConverterVolume(t *testing.T) {
	c := NewConverter(decode.Format{SampleRate: 48000, Channels: 1},
		StreamFormat{SampleRate: 48000, Channels: 1}, 256)

	dst := make([]float32, 16)
	c.Fill(dst, 16, 0.5, func(src []float32, frames int) int {
		for i := range src[:frames] {
			src[i] = 1.0
		}
		return frames
	})
	for i, v := range dst {
		if v != 0.5 {
			t.Fatalf("sample %d = %f, want 0.5", i, v)
		}
	}
}

func TestConverterMonoToStereo(t *testing.T) {
	c := NewConverter(decode.Format{SampleRate: 44100, Channels: 1},
		StreamFormat{SampleRate: 44100, Channels: 2}, 256)

	dst := make([]float32, 8*2)
	n := c.Fill(dst, 8, 1.0, feedRamp)
	if n != 8 {
		t.Fatalf("Fill = %d frames, want 8", n)
	}
	for i := 0; i < 8; i++ {
		if dst[i*2] != float32(i) || dst[i*2+1] != float32(i) {
			t.Fatalf("frame %d = (%f, %f), want duplicated %d", i, dst[i*2], dst[i*2+1], i)
		}
	}
}

func TestConverterShortRead(t *testing.T) {
	c := NewConverter(decode.Format{SampleRate: 44100, Channels: 2},
		StreamFormat{SampleRate: 44100, Channels: 2}, 256)

	dst := make([]float32, 64*2)
	n := c.Fill(dst, 64, 1.0, func(src []float32, frames int) int {
		return 10 // source drained mid-block
	})
	if n != 10 {
		t.Fatalf("Fill = %d frames, want 10", n)
	}

	n = c.Fill(dst, 64, 1.0, func(src []float32, frames int) int {
		return 0
	})
	if n != 0 {
		t.Fatalf("Fill on empty source = %d frames, want 0", n)
	}
}

func TestConverterResampleRequestsScaledInput(t *testing.T) {
	// 48k ring into a 96k device: each device block should pull half as many
	// source frames as it emits.
	c := NewConverter(decode.Format{SampleRate: 48000, Channels: 1},
		StreamFormat{SampleRate: 96000, Channels: 1}, 256)

	var asked int
	dst := make([]float32, 128)
	n := c.Fill(dst, 128, 1.0, func(src []float32, frames int) int {
		asked = frames
		return feedRamp(src, frames)
	})
	if n != 128 {
		t.Fatalf("Fill = %d frames, want 128", n)
	}
	if asked != 64 {
		t.Fatalf("source request = %d frames, want 64", asked)
	}

	// Linear interpolation of a ramp is still a ramp (half slope here).
	for i := 1; i < 120; i++ {
		want := float32(i) * 0.5
		if diff := dst[i] - want; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("sample %d = %f, want %f", i, dst[i], want)
		}
	}
}

func TestConverterFillAllocs(t *testing.T) {
	c := NewConverter(decode.Format{SampleRate: 44100, Channels: 2},
		StreamFormat{SampleRate: 48000, Channels: 2}, 512)
	dst := make([]float32, 512*2)
	read := func(src []float32, frames int) int { return feedRamp(src, frames) }

	allocs := testing.AllocsPerRun(100, func() {
		c.Fill(dst, 512, 1.0, read)
	})
	if allocs != 0 {
		t.Errorf("Fill allocated %.1f times per run, want 0", allocs)
	}
}
