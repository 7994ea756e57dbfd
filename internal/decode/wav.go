// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

func init() {
	Register("wav", OpenWAV)
}

// wavDecoder serves fully decoded WAV PCM from memory. WAV files decode
// cheaply, and holding the samples makes seeking exact for any bit depth.
type wavDecoder struct {
	format  Format
	samples []float32 // interleaved
	pos     int64     // frames
}

// OpenWAV opens a RIFF/WAVE file and decodes its PCM chunk up front.
func OpenWAV(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: decoding %s: %w", path, err)
	}
	if !d.WasPCMAccessed() || buf.Format == nil {
		return nil, fmt.Errorf("wav: %s contains no PCM data", path)
	}

	bitDepth := int(d.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d in %s", bitDepth, path)
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	format := Format{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
	}
	if !format.Valid() {
		return nil, fmt.Errorf("wav: invalid format %+v in %s", format, path)
	}

	return &wavDecoder{format: format, samples: samples}, nil
}

func (d *wavDecoder) Format() Format { return d.format }

func (d *wavDecoder) ReadAudio(dst []float32, frameCount int) (int, error) {
	total := d.totalFrames()
	if d.pos >= total {
		return 0, io.EOF
	}

	frames := int64(frameCount)
	if remaining := total - d.pos; frames > remaining {
		frames = remaining
	}

	ch := int64(d.format.Channels)
	copy(dst[:frames*ch], d.samples[d.pos*ch:(d.pos+frames)*ch])
	d.pos += frames

	return int(frames), nil
}

func (d *wavDecoder) SupportsSeeking() bool { return true }

func (d *wavDecoder) SeekToFrame(frame int64) int64 {
	if frame < 0 {
		frame = 0
	}
	if total := d.totalFrames(); frame > total {
		frame = total
	}
	d.pos = frame
	return frame
}

func (d *wavDecoder) CurrentFrame() int64 { return d.pos }

func (d *wavDecoder) TotalFrames() int64 { return d.totalFrames() }

func (d *wavDecoder) totalFrames() int64 {
	return int64(len(d.samples) / d.format.Channels)
}

func (d *wavDecoder) Close() error { return nil }
