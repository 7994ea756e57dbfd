// SPDX-License-Identifier: MIT
package decode

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV renders a 16-bit stereo sine sweep to a temp file and returns
// its path.
func writeTestWAV(t *testing.T, sampleRate, channels, frames int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	for i := 0; i < frames; i++ {
		v := int(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 16000)
		for c := 0; c < channels; c++ {
			buf.Data[i*channels+c] = v
		}
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestOpenUnknownExtension(t *testing.T) {
	if _, err := Open("song.xyz"); err == nil {
		t.Fatal("expected error for unregistered extension")
	}
}

func TestExtensionsRegistered(t *testing.T) {
	want := map[string]bool{"wav": false, "mp3": false, "ogg": false, "flac": false}
	for _, ext := range Extensions() {
		if _, ok := want[ext]; ok {
			want[ext] = true
		}
	}
	for ext, seen := range want {
		if !seen {
			t.Errorf("extension %q not registered", ext)
		}
	}
}

func TestWAVDecoderRoundTrip(t *testing.T) {
	const (
		sampleRate = 44100
		channels   = 2
		frames     = 4096
	)
	path := writeTestWAV(t, sampleRate, channels, frames)

	dec, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dec.Close()

	format := dec.Format()
	if format.SampleRate != sampleRate || format.Channels != channels {
		t.Fatalf("format = %+v, want %d Hz / %d ch", format, sampleRate, channels)
	}
	if !dec.SupportsSeeking() {
		t.Fatal("WAV decoder must support seeking")
	}
	if got := dec.TotalFrames(); got != frames {
		t.Fatalf("TotalFrames = %d, want %d", got, frames)
	}

	dst := make([]float32, 1024*channels)
	read := int64(0)
	for {
		n, err := dec.ReadAudio(dst, 1024)
		read += int64(n)
		if n == 0 {
			break
		}
		for i := 0; i < n*channels; i++ {
			if v := dst[i]; v < -1 || v > 1 {
				t.Fatalf("sample %d out of range: %f", i, v)
			}
		}
		if err != nil {
			break
		}
	}
	if read != frames {
		t.Fatalf("read %d frames, want %d", read, frames)
	}
	if got := dec.CurrentFrame(); got != frames {
		t.Fatalf("CurrentFrame = %d, want %d", got, frames)
	}
}

func TestWAVDecoderSeek(t *testing.T) {
	const frames = 2048
	path := writeTestWAV(t, 44100, 2, frames)

	dec, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dec.Close()

	cases := []struct {
		seek int64
		want int64
	}{
		{0, 0},
		{512, 512},
		{frames, frames},
		{frames + 500, frames}, // clamp past end
		{-3, 0},                // clamp before start
	}
	for _, tc := range cases {
		if got := dec.SeekToFrame(tc.seek); got != tc.want {
			t.Errorf("SeekToFrame(%d) = %d, want %d", tc.seek, got, tc.want)
		}
		if got := dec.CurrentFrame(); got != tc.want {
			t.Errorf("CurrentFrame after seek to %d = %d, want %d", tc.seek, got, tc.want)
		}
	}

	// Reads resume from the seek target.
	dec.SeekToFrame(frames - 100)
	dst := make([]float32, 256*2)
	n, _ := dec.ReadAudio(dst, 256)
	if n != 100 {
		t.Fatalf("read after near-end seek = %d frames, want 100", n)
	}
}

func TestWAVDecoderMatchesEncodedSamples(t *testing.T) {
	const (
		channels = 1
		frames   = 64
	)
	path := filepath.Join(t.TempDir(), "ramp.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	enc := wav.NewEncoder(f, 8000, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: 8000},
		Data:           make([]int, frames),
		SourceBitDepth: 16,
	}
	for i := range buf.Data {
		buf.Data[i] = i * 256
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	dec, err := OpenWAV(path)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer dec.Close()

	dst := make([]float32, frames)
	n, err := dec.ReadAudio(dst, frames)
	if n != frames {
		t.Fatalf("ReadAudio = %d, %v, want %d frames", n, err, frames)
	}
	for i := 0; i < frames; i++ {
		want := float32(i*256) / 32768
		if diff := dst[i] - want; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("sample %d = %f, want %f", i, dst[i], want)
		}
	}
}
