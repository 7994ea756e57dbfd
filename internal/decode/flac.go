// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

func init() {
	Register("flac", OpenFLAC)
}

// flacDecoder adapts mewkiz/flac's whole-frame parser to the pipeline's
// frame-count reads: decoded blocks that exceed the request are carried over
// into the next ReadAudio call.
type flacDecoder struct {
	f      *os.File
	stream *flac.Stream
	fmt    Format
	scale  float32
	pos    int64     // frames
	total  int64     // frames, FrameUnknown if the header omits it
	extra  []float32 // interleaved carry-over from the last parsed block
}

// OpenFLAC opens a FLAC file with seek support.
func OpenFLAC(path string) (Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}

	stream, err := flac.NewSeek(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("flac: decoding %s: %w", path, err)
	}

	info := stream.Info
	total := FrameUnknown
	if info.NSamples > 0 {
		total = int64(info.NSamples)
	}

	return &flacDecoder{
		f:      f,
		stream: stream,
		fmt:    Format{SampleRate: int(info.SampleRate), Channels: int(info.NChannels)},
		scale:  float32(int64(1) << (info.BitsPerSample - 1)),
		total:  total,
	}, nil
}

func (d *flacDecoder) Format() Format { return d.fmt }

func (d *flacDecoder) ReadAudio(dst []float32, frameCount int) (int, error) {
	ch := d.fmt.Channels
	want := frameCount * ch

	got := copy(dst, d.extra[:min(len(d.extra), want)])
	d.extra = d.extra[got:]

	for got < want {
		frame, err := d.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			if got == 0 {
				return 0, fmt.Errorf("flac: parse: %w", err)
			}
			break
		}

		blockFrames := len(frame.Subframes[0].Samples)
		for i := 0; i < blockFrames; i++ {
			for c := 0; c < ch; c++ {
				v := float32(frame.Subframes[c].Samples[i]) / d.scale
				if got < want {
					dst[got] = v
					got++
				} else {
					d.extra = append(d.extra, v)
				}
			}
		}
	}

	frames := got / ch
	d.pos += int64(frames)
	if frames == 0 {
		return 0, io.EOF
	}
	return frames, nil
}

func (d *flacDecoder) SupportsSeeking() bool { return true }

func (d *flacDecoder) SeekToFrame(frame int64) int64 {
	if frame < 0 {
		frame = 0
	}
	reached, err := d.stream.Seek(uint64(frame))
	if err != nil {
		return FrameUnknown
	}
	d.extra = d.extra[:0]
	d.pos = int64(reached)
	return d.pos
}

func (d *flacDecoder) CurrentFrame() int64 { return d.pos }

func (d *flacDecoder) TotalFrames() int64 { return d.total }

func (d *flacDecoder) Close() error { return d.f.Close() }
