// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

func init() {
	Register("ogg", OpenVorbis)
	Register("oga", OpenVorbis)
}

// vorbisDecoder wraps an Ogg Vorbis stream. oggvorbis already produces
// interleaved float32 and supports sample-accurate repositioning on
// seekable sources.
type vorbisDecoder struct {
	f   *os.File
	r   *oggvorbis.Reader
	fmt Format
}

// OpenVorbis opens an Ogg Vorbis file.
func OpenVorbis(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vorbis: %w", err)
	}

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("vorbis: decoding %s: %w", path, err)
	}

	return &vorbisDecoder{
		f:   f,
		r:   r,
		fmt: Format{SampleRate: r.SampleRate(), Channels: r.Channels()},
	}, nil
}

func (d *vorbisDecoder) Format() Format { return d.fmt }

func (d *vorbisDecoder) ReadAudio(dst []float32, frameCount int) (int, error) {
	want := frameCount * d.fmt.Channels

	// oggvorbis may return fewer values than requested; accumulate whole
	// frames until the request is satisfied or the stream ends.
	got := 0
	for got < want {
		n, err := d.r.Read(dst[got:want])
		got += n
		if err != nil {
			if err == io.EOF {
				break
			}
			if got == 0 {
				return 0, fmt.Errorf("vorbis: read: %w", err)
			}
			break
		}
		if n == 0 {
			break
		}
	}

	frames := got / d.fmt.Channels
	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

func (d *vorbisDecoder) SupportsSeeking() bool { return true }

func (d *vorbisDecoder) SeekToFrame(frame int64) int64 {
	if frame < 0 {
		frame = 0
	}
	if total := d.r.Length(); total > 0 && frame > total {
		frame = total
	}
	if err := d.r.SetPosition(frame); err != nil {
		return FrameUnknown
	}
	return d.r.Position()
}

func (d *vorbisDecoder) CurrentFrame() int64 { return d.r.Position() }

func (d *vorbisDecoder) TotalFrames() int64 {
	if total := d.r.Length(); total > 0 {
		return total
	}
	return FrameUnknown
}

func (d *vorbisDecoder) Close() error { return d.f.Close() }
