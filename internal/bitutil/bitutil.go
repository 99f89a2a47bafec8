// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bitutil implements word-level primitives over bit-vectors stored as
// []uint64 pages, where bit b of page p represents the id p*64+b.
package bitutil

import (
	"math/bits"

	"golang.org/x/sync/errgroup"
)

const (
	// PageShift converts an id to its page index.
	PageShift = 6
	// PageMask extracts the bit index of an id within its page.
	PageMask = 1<<PageShift - 1
)

// PageOf returns the page index and the bit index within that page for id.
func PageOf(id int64) (page int, bit uint) {
	return int(uint64(id) >> PageShift), uint(id & PageMask)
}

// NumPages returns the number of pages needed to hold capacity ids.
func NumPages(capacity int64) int {
	return int(CeilDiv(capacity, 1<<PageShift))
}

// CeilDiv returns ceil(dividend/divisor) for non-negative operands.
func CeilDiv(dividend, divisor int64) int64 {
	return (dividend + divisor - 1) / divisor
}

// Align rounds value up to the next multiple of alignment, which must be a
// power of two.
func Align(value, alignment int64) int64 {
	return (value + alignment - 1) &^ (alignment - 1)
}

// Get returns true if the bit for id is set.
func Get(pages []uint64, id int64) bool {
	page, bit := PageOf(id)
	return pages[page]&(1<<bit) != 0
}

// Set sets the bit for id. Setting an already set bit is a no-op.
func Set(pages []uint64, id int64) {
	page, bit := PageOf(id)
	pages[page] |= 1 << bit
}

// RankInPage returns the number of set bits in word at positions <= bit.
func RankInPage(word uint64, bit uint) int {
	// Shift the bits above the target out of the word so that only bits
	// [0, bit] remain.
	return bits.OnesCount64(word << (63 - bit))
}

// SelectInPage returns the position of the set bit with the given 0-based
// rank within word. The rank must be less than bits.OnesCount64(word).
//
// The position is located by halving the word: at each step the set bits in
// the lower half are counted and the search continues in whichever half holds
// the target, so only six popcounts are needed regardless of density.
func SelectInPage(word uint64, rank int) int {
	pos := 0
	mask := uint64(0xFFFF_FFFF)
	for shift := 32; shift > 0; {
		lower := bits.OnesCount64(word & mask)
		if lower > rank {
			word &= mask
		} else {
			pos += shift
			rank -= lower
			word >>= shift
		}
		shift >>= 1
		mask >>= shift
	}
	return pos
}

// PopCount returns the number of set bits across pages.
func PopCount(pages []uint64) int64 {
	var n int64
	for _, w := range pages {
		n += int64(bits.OnesCount64(w))
	}
	return n
}

// Or sets dst to the bitwise OR of dst and src. Both must have the same
// length.
func Or(dst, src []uint64) {
	dst = dst[:len(src)]
	for i, w := range src {
		dst[i] |= w
	}
}

// ReduceOr combines vectors into one using a pairwise OR reduction and returns
// the combined vector. The reduction runs in rounds; within a round up to
// concurrency pairs are merged in parallel. Since OR is commutative and
// associative the result does not depend on the order of vectors.
//
// The vectors are consumed: the returned slice aliases vectors[0] and the
// contents of the other even-indexed vectors are overwritten.
func ReduceOr(vectors [][]uint64, concurrency int) []uint64 {
	if len(vectors) == 0 {
		return nil
	}
	for stride := 1; stride < len(vectors); stride *= 2 {
		var g errgroup.Group
		g.SetLimit(max(concurrency, 1))
		for i := 0; i+stride < len(vectors); i += 2 * stride {
			dst, src := vectors[i], vectors[i+stride]
			g.Go(func() error {
				Or(dst, src)
				return nil
			})
		}
		_ = g.Wait()
	}
	return vectors[0]
}
