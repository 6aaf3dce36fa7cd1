// Package collections provides generic data structures for efficient graph
// and index processing.
package collections

import "math/bits"

// Bitset is a memory-efficient boolean set using one bit per element. For
// heaps with millions of objects it is roughly 8x smaller than []bool and
// far smaller than a map keyed by object index.
type Bitset struct {
	bits []uint64
	size int
}

// NewBitset creates a new bitset with the given size.
func NewBitset(size int) *Bitset {
	if size <= 0 {
		size = 64
	}
	numWords := (size + 63) / 64
	return &Bitset{
		bits: make([]uint64, numWords),
		size: size,
	}
}

// Set sets the bit at index i, growing the bitset if needed.
func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	wordIdx := i / 64
	if wordIdx >= len(b.bits) {
		b.grow(i + 1)
	}
	b.bits[wordIdx] |= 1 << (i % 64)
	if i >= b.size {
		b.size = i + 1
	}
}

// Clear clears the bit at index i.
func (b *Bitset) Clear(i int) {
	if i < 0 || i/64 >= len(b.bits) {
		return
	}
	b.bits[i/64] &^= 1 << (i % 64)
}

// Test returns true if the bit at index i is set.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i/64 >= len(b.bits) {
		return false
	}
	return b.bits[i/64]&(1<<(i%64)) != 0
}

// ClearAll clears all bits to 0.
func (b *Bitset) ClearAll() {
	for i := range b.bits {
		b.bits[i] = 0
	}
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	count := 0
	for _, word := range b.bits {
		count += bits.OnesCount64(word)
	}
	return count
}

// Size returns the size of the bitset.
func (b *Bitset) Size() int {
	return b.size
}

func (b *Bitset) grow(newSize int) {
	numWords := (newSize + 63) / 64
	if numWords <= len(b.bits) {
		return
	}
	newCap := len(b.bits) * 2
	if newCap < numWords {
		newCap = numWords
	}
	newBits := make([]uint64, newCap)
	copy(newBits, b.bits)
	b.bits = newBits
}

// Iterate calls fn for each set bit index in ascending order, stopping when
// fn returns false.
func (b *Bitset) Iterate(fn func(i int) bool) {
	for wordIdx, word := range b.bits {
		if word == 0 {
			continue
		}
		base := wordIdx * 64
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + tz) {
				return
			}
			word &= word - 1
		}
	}
}

// VersionedBitset is a bitset with O(1) reset: each slot stores the version
// at which it was last set, and Reset just bumps the current version.
// Useful when the same visited set is reused across many traversals.
type VersionedBitset struct {
	versions []uint32
	current  uint32
}

// NewVersionedBitset creates a versioned bitset with the given size.
func NewVersionedBitset(size int) *VersionedBitset {
	if size <= 0 {
		size = 64
	}
	return &VersionedBitset{
		versions: make([]uint32, size),
		current:  1,
	}
}

// Set marks index i in the current version.
func (v *VersionedBitset) Set(i int) {
	if i < 0 {
		return
	}
	if i >= len(v.versions) {
		grown := make([]uint32, i*2+1)
		copy(grown, v.versions)
		v.versions = grown
	}
	v.versions[i] = v.current
}

// Test reports whether index i is set in the current version.
func (v *VersionedBitset) Test(i int) bool {
	return i >= 0 && i < len(v.versions) && v.versions[i] == v.current
}

// Reset clears the set in O(1) by advancing the version. When the version
// counter wraps, the backing array is zeroed to avoid stale matches.
func (v *VersionedBitset) Reset() {
	v.current++
	if v.current == 0 {
		for i := range v.versions {
			v.versions[i] = 0
		}
		v.current = 1
	}
}
