/*
Package bitint provides power-of-2 bit manipulation helpers used for sizing
real-time audio buffers. Ring buffers and FFT windows index with a bitmask,
which requires power-of-2 capacities.

Design principles:
- Zero allocations: all operations use stack memory only
- Predictable performance: O(1) constant time operations
- Real-time safe: no locks, syscalls, or blocking operations

The subtraction (size-1) in NextPowerOfTwo is critical: without it, inputs
that are already powers of 2 would be incorrectly doubled. For input 8,
bits.Len(7) = 3 and 1<<3 = 8, preserving the value; bits.Len(8) = 4 would
yield 16.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
// Returns 1 for zero and negative inputs.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}

	// 64-bit platforms (where int is 64-bit)
	if ^uint(0)>>63 == 0 {
		return int(1 << (bits.Len64(uint64(size - 1))))
	}

	// 32-bit platforms
	return int(1 << (bits.Len32(uint32(size - 1))))
}

// NextPowerOfTwo64 is NextPowerOfTwo for 64-bit frame counts.
func NextPowerOfTwo64(size int64) int64 {
	if size <= 0 {
		return 1
	}
	return int64(1 << (bits.Len64(uint64(size - 1))))
}

// IsPowerOfTwo checks if n is a power of 2. Works because powers of 2 have
// exactly one bit set, so n & (n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
