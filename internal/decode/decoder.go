// SPDX-License-Identifier: MIT
/*
Package decode defines the decoder contract consumed by the playback pipeline
and provides file decoders for WAV, MP3, Ogg Vorbis and FLAC.

Decoders produce interleaved float32 PCM in [-1, 1] and are driven entirely by
the pipeline's decode goroutine; implementations may block on I/O but must
never be called concurrently.
*/
package decode

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FrameUnknown is the sentinel for an unknown frame count or position.
// Some formats (MP3) cannot report a total without scanning the whole file;
// the pipeline finalizes the count when the decoder reaches end of stream.
const FrameUnknown int64 = -1

// Format describes a PCM stream.
type Format struct {
	SampleRate int // Samples per second, per channel.
	Channels   int // Interleaved channel count.
}

// Valid reports whether the format describes playable PCM.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// Decoder produces PCM frames from one audio source. A frame is one sample
// per channel at a single instant.
type Decoder interface {
	// Format returns the stream's PCM format. Fixed for the decoder lifetime.
	Format() Format

	// ReadAudio decodes up to frameCount frames of interleaved float32
	// samples into dst, which must hold frameCount*channels values. It
	// returns the number of frames produced; zero frames signals end of
	// stream. A non-nil error with n > 0 still delivers the frames.
	ReadAudio(dst []float32, frameCount int) (int, error)

	// SupportsSeeking reports whether SeekToFrame is usable.
	SupportsSeeking() bool

	// SeekToFrame positions the stream at frame, returning the frame
	// actually reached, or FrameUnknown on failure.
	SeekToFrame(frame int64) int64

	// CurrentFrame returns the next frame ReadAudio will produce.
	CurrentFrame() int64

	// TotalFrames returns the total stream length in frames, or
	// FrameUnknown when the length is not known before end of stream.
	TotalFrames() int64

	// Close releases the underlying source.
	Close() error
}

// OpenFunc constructs a Decoder for the file at path.
type OpenFunc func(path string) (Decoder, error)

var (
	registryMu sync.Mutex
	registry   = map[string]OpenFunc{}
)

// Register associates a file extension (without the dot, lower case) with a
// decoder constructor. Later registrations replace earlier ones.
func Register(ext string, fn OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[ext] = fn
}

// Open constructs a decoder for path based on its file extension.
func Open(path string) (Decoder, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	registryMu.Lock()
	fn, ok := registry[ext]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no decoder registered for %q files", ext)
	}
	return fn(path)
}

// Extensions returns the registered file extensions, for CLI help output.
func Extensions() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
