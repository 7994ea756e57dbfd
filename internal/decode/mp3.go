// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

func init() {
	Register("mp3", OpenMP3)
}

// go-mp3 emits 16-bit little-endian stereo PCM, 4 bytes per frame.
const mp3BytesPerFrame = 4

// mp3Decoder adapts go-mp3's byte stream to frame-addressed PCM. The total
// frame count may be unknown for unseekable sources; the pipeline finalizes
// it at end of stream.
type mp3Decoder struct {
	f     *os.File
	dec   *gomp3.Decoder
	fmt   Format
	pos   int64 // frames
	total int64 // frames, FrameUnknown until known
	buf   []byte
}

// OpenMP3 opens an MPEG-1 Layer-3 file.
func OpenMP3(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mp3: decoding %s: %w", path, err)
	}

	total := FrameUnknown
	if n := dec.Length(); n > 0 {
		total = n / mp3BytesPerFrame
	}

	return &mp3Decoder{
		f:     f,
		dec:   dec,
		fmt:   Format{SampleRate: dec.SampleRate(), Channels: 2},
		total: total,
	}, nil
}

func (d *mp3Decoder) Format() Format { return d.fmt }

func (d *mp3Decoder) ReadAudio(dst []float32, frameCount int) (int, error) {
	need := frameCount * mp3BytesPerFrame
	if cap(d.buf) < need {
		d.buf = make([]byte, need)
	}
	d.buf = d.buf[:need]

	// Fill the byte buffer as far as possible; go-mp3 returns short reads.
	read := 0
	for read < need {
		n, err := d.dec.Read(d.buf[read:])
		read += n
		if err != nil {
			if err == io.EOF {
				break
			}
			if read == 0 {
				return 0, fmt.Errorf("mp3: read: %w", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	frames := read / mp3BytesPerFrame
	for i := 0; i < frames*2; i++ {
		v := int16(uint16(d.buf[2*i]) | uint16(d.buf[2*i+1])<<8)
		dst[i] = float32(v) / 32768.0
	}
	d.pos += int64(frames)

	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

func (d *mp3Decoder) SupportsSeeking() bool { return true }

func (d *mp3Decoder) SeekToFrame(frame int64) int64 {
	if frame < 0 {
		frame = 0
	}
	off, err := d.dec.Seek(frame*mp3BytesPerFrame, io.SeekStart)
	if err != nil {
		return FrameUnknown
	}
	d.pos = off / mp3BytesPerFrame
	return d.pos
}

func (d *mp3Decoder) CurrentFrame() int64 { return d.pos }

func (d *mp3Decoder) TotalFrames() int64 { return d.total }

func (d *mp3Decoder) Close() error { return d.f.Close() }
