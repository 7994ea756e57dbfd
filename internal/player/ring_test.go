// SPDX-License-Identifier: MIT
package player

import (
	"errors"
	"testing"
)

func rampFrames(start, frames, channels int) []float32 {
	out := make([]float32, frames*channels)
	for i := range out {
		out[i] = float32(start*channels + i)
	}
	return out
}

func TestRingBufferRoundTrip(t *testing.T) {
	rb := NewRingBuffer(64, 2)

	if rb.Capacity() != 64 {
		t.Fatalf("Capacity = %d, want 64", rb.Capacity())
	}

	src := rampFrames(0, 16, 2)
	if err := rb.Store(src, 16, 0); err != nil {
		t.Fatalf("Store: %v", err)
	}

	start, end := rb.ValidBounds()
	if start != 0 || end != 16 {
		t.Fatalf("bounds = [%d, %d), want [0, 16)", start, end)
	}

	dst := make([]float32, 16*2)
	if err := rb.Fetch(dst, 16, 0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("sample %d = %f, want %f", i, dst[i], src[i])
		}
	}
}

func TestRingBufferWraparound(t *testing.T) {
	rb := NewRingBuffer(32, 1)

	// Fill past capacity in contiguous chunks so the span slides.
	pos := int64(0)
	for pos < 100 {
		chunk := rampFrames(int(pos), 10, 1)
		if err := rb.Store(chunk, 10, pos); err != nil {
			t.Fatalf("Store at %d: %v", pos, err)
		}
		pos += 10
	}

	start, end := rb.ValidBounds()
	if end != 100 || start != 100-32 {
		t.Fatalf("bounds = [%d, %d), want [68, 100)", start, end)
	}

	// A fetch crossing the physical wrap point must come back in order.
	dst := make([]float32, 20)
	if err := rb.Fetch(dst, 20, 70); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	for i, v := range dst {
		if want := float32(70 + i); v != want {
			t.Fatalf("frame %d = %f, want %f", 70+i, v, want)
		}
	}
}

func TestRingBufferRangeErrors(t *testing.T) {
	rb := NewRingBuffer(32, 2)
	rb.Store(rampFrames(0, 20, 2), 20, 0)

	dst := make([]float32, 64)
	cases := []struct {
		name  string
		start int64
		count int
	}{
		{"before span", -5, 4},
		{"past end", 18, 4},
		{"fully beyond", 30, 4},
	}
	for _, tc := range cases {
		err := rb.Fetch(dst, tc.count, tc.start)
		var re *RangeError
		if !errors.As(err, &re) {
			t.Errorf("%s: got %v, want RangeError", tc.name, err)
			continue
		}
		if re.Op != "fetch" || re.StartFrame != tc.start {
			t.Errorf("%s: RangeError = %+v", tc.name, re)
		}
	}

	// Oversized store is rejected outright.
	big := make([]float32, 40*2)
	if err := rb.Store(big, 40, 0); err == nil {
		t.Fatal("expected RangeError for store larger than capacity")
	}
}

func TestRingBufferDiscontinuousStoreResetsSpan(t *testing.T) {
	rb := NewRingBuffer(64, 1)
	rb.Store(rampFrames(0, 30, 1), 30, 0)

	// Seek: decoding restarts at frame 1000.
	rb.Store(rampFrames(1000, 8, 1), 8, 1000)

	start, end := rb.ValidBounds()
	if start != 1000 || end != 1008 {
		t.Fatalf("bounds after jump = [%d, %d), want [1000, 1008)", start, end)
	}

	// Old span is gone.
	dst := make([]float32, 8)
	if err := rb.Fetch(dst, 8, 0); err == nil {
		t.Fatal("expected RangeError fetching pre-jump frames")
	}
	if err := rb.Fetch(dst, 8, 1000); err != nil {
		t.Fatalf("Fetch at new span: %v", err)
	}
	if dst[0] != 1000 {
		t.Fatalf("frame 1000 = %f, want 1000", dst[0])
	}
}

func TestRingBufferCapacityRounding(t *testing.T) {
	rb := NewRingBuffer(100, 2)
	if rb.Capacity() != 128 {
		t.Fatalf("Capacity = %d, want 128", rb.Capacity())
	}
}

func TestRingBufferFetchAllocs(t *testing.T) {
	rb := NewRingBuffer(1024, 2)
	src := rampFrames(0, 512, 2)
	rb.Store(src, 512, 0)
	dst := make([]float32, 512*2)

	allocs := testing.AllocsPerRun(100, func() {
		if err := rb.Fetch(dst, 512, 0); err != nil {
			t.Fatal(err)
		}
	})
	if allocs != 0 {
		t.Errorf("Fetch allocated %.1f times per run, want 0", allocs)
	}
}
