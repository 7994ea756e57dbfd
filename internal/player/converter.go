// SPDX-License-Identifier: MIT
package player

import (
	"math"

	"phono/internal/decode"
)

// StreamFormat describes the device side of the pipeline. Sample rate is
// float64 to match hardware APIs that report fractional rates.
type StreamFormat struct {
	SampleRate float64
	Channels   int
}

// ReadFunc supplies source frames to Converter.Fill. It writes up to
// frameCount interleaved frames into dst and returns how many it produced.
type ReadFunc func(dst []float32, frameCount int) int

// Converter adapts ring PCM to the device stream: channel mapping, soft
// volume and linear resampling when the device could not be opened at the
// ring's sample rate. Resampling consumes whole source frames per Fill and
// carries no state between blocks, so the caller's frame accounting stays
// exact across seeks.
//
// Performance Critical (Hot Path): Fill runs inside the audio callback.
// The source buffer is preallocated at construction.
type Converter struct {
	src   decode.Format
	dst   StreamFormat
	ratio float64 // source frames per device frame

	srcBuf []float32
}

// NewConverter builds a converter from the ring format to the device format,
// able to serve Fill requests of up to maxFrames device frames.
func NewConverter(src decode.Format, dst StreamFormat, maxFrames int) *Converter {
	ratio := float64(src.SampleRate) / dst.SampleRate
	srcCap := int(math.Ceil(float64(maxFrames)*ratio)) + 1
	return &Converter{
		src:    src,
		dst:    dst,
		ratio:  ratio,
		srcBuf: make([]float32, srcCap*src.Channels),
	}
}

// Fill produces up to frames device frames into dst, pulling source frames
// through read. It returns the number of device frames written; the source
// frames consumed are exactly what read reported, so the caller can advance
// its counters from inside the callback.
func (c *Converter) Fill(dst []float32, frames int, volume float32, read ReadFunc) int {
	srcNeed := int(math.Ceil(float64(frames) * c.ratio))
	if srcNeed*c.src.Channels > len(c.srcBuf) {
		srcNeed = len(c.srcBuf) / c.src.Channels
	}

	n := read(c.srcBuf[:srcNeed*c.src.Channels], srcNeed)
	if n == 0 {
		return 0
	}

	out := frames
	if n < srcNeed {
		out = int(float64(n) / c.ratio)
		if out == 0 {
			out = 1
		}
	}

	if c.ratio == 1 {
		c.mapChannels(dst, n, volume)
		return n
	}
	c.resample(dst, out, n, volume)
	return out
}

// mapChannels handles the rate-matched case: interleave copy with channel
// up/down mix and volume.
func (c *Converter) mapChannels(dst []float32, frames int, volume float32) {
	srcCh, dstCh := c.src.Channels, c.dst.Channels

	if srcCh == dstCh {
		for i := 0; i < frames*dstCh; i++ {
			dst[i] = c.srcBuf[i] * volume
		}
		return
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < dstCh; ch++ {
			sc := ch
			if sc >= srcCh {
				sc = srcCh - 1
			}
			dst[i*dstCh+ch] = c.srcBuf[i*srcCh+sc] * volume
		}
	}
}

func (c *Converter) resample(dst []float32, outFrames, srcFrames int, volume float32) {
	srcCh, dstCh := c.src.Channels, c.dst.Channels

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * c.ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		i1 := idx
		if i1 >= srcFrames {
			i1 = srcFrames - 1
		}
		i2 := i1 + 1
		if i2 >= srcFrames {
			i2 = srcFrames - 1
		}

		for ch := 0; ch < dstCh; ch++ {
			sc := ch
			if sc >= srcCh {
				sc = srcCh - 1
			}
			a := c.srcBuf[i1*srcCh+sc]
			b := c.srcBuf[i2*srcCh+sc]
			dst[i*dstCh+ch] = (a + (b-a)*frac) * volume
		}
	}
}
