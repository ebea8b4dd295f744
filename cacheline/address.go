// Package cacheline defines the per-line coherence state and the
// address-decomposition math shared by every cache in the system.
package cacheline

import "math/bits"

// Address is a byte address as seen by a processor.
type Address uint64

// Log2 returns the base-2 logarithm of n, which must be a power of
// two. It is used to derive the offset-bit and set-index-bit widths
// from blockSize and nsets.
func Log2(n int) uint {
	if n <= 0 || n&(n-1) != 0 {
		panic("cacheline: Log2 requires a positive power of two")
	}
	return uint(bits.TrailingZeros(uint(n)))
}

// BlockAddress returns a with its offset bits (the low blockBits bits)
// discarded, i.e. the full aligned block address stored in a
// CacheLine's Address field.
func (a Address) BlockAddress(blockBits uint) uint64 {
	return uint64(a) >> blockBits
}

// SetIndex returns the set a maps to, given the offset bit width
// blockBits and the number of sets nsets (a power of two).
//
// The source this simulator is modeled on computes this index as
// (addr >> nbbits) & (1 << (nsbits - 1)), which masks a single bit
// instead of the low nsbits bits and is only correct for nsets <= 2.
// SetIndex always uses the mathematically correct mask nsets-1.
func (a Address) SetIndex(blockBits uint, nsets uint64) uint64 {
	return a.BlockAddress(blockBits) & (nsets - 1)
}
