// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"iter"
	"math"
	"math/bits"
	"sort"

	"github.com/cockroachdb/idmap/internal/bitutil"
	"github.com/cockroachdb/redact"
)

// NotFound is returned by ToMapped for ids that are not contained in the map.
const NotFound int64 = -1

const (
	// BlockSize is the number of pages grouped into a block. Each block records
	// the mapped id of its first set bit.
	BlockSize = 64
	// BlockIDs is the number of original ids covered by a block.
	BlockIDs = BlockSize << bitutil.PageShift

	blockShift   = 6
	blockIDShift = blockShift + bitutil.PageShift
	blockMask    = BlockSize - 1

	// unwrittenBlock marks blocks that received no ids. It sorts after every
	// valid offset.
	unwrittenBlock = math.MaxInt64
)

// ValidBatchSize rounds batchSize up to a multiple of BlockIDs. Batches passed
// to Builder.Set must cover whole blocks, otherwise two batches could both try
// to record the offset of the same block.
func ValidBatchSize(batchSize int) int {
	return int(bitutil.Align(int64(batchSize), BlockIDs))
}

// SparseMap maps a sparse, ascending set of original ids in [0, capacity) onto
// the dense range [0, IDCount()). The i-th smallest original id is mapped to
// i.
//
// The original ids are stored as a bit-vector of 64-bit pages. Pages are
// grouped into blocks of BlockSize pages and every block records the mapped
// id of its first set bit, so a rank query only needs to count bits within a
// single block. For select queries the block offsets are additionally kept in
// sorted order together with a permutation back to the block index, since
// blocks may be populated out of order.
//
// A SparseMap is immutable and safe for concurrent use. It is constructed by
// one of Builder, SequentialBuilder or ExistingBuilder.
type SparseMap struct {
	idCount  int64
	capacity int64
	// pages[p] holds the ids [p*64, p*64+64).
	pages []uint64
	// blockOffsets[k] is the mapped id of the first id in block k, or
	// unwrittenBlock. Offsets are not necessarily ascending in k.
	blockOffsets []int64
	// sortedBlockOffsets holds blockOffsets in ascending order.
	// blockMapping[i] is the block whose offset is sortedBlockOffsets[i].
	sortedBlockOffsets []int64
	blockMapping       []int32
}

// IDCount returns the number of ids in the map.
func (m *SparseMap) IDCount() int64 {
	return m.idCount
}

// Capacity returns the exclusive upper bound of original ids the map was built
// for.
func (m *SparseMap) Capacity() int64 {
	return m.capacity
}

// Contains returns true if originalID is part of the map. The id must be
// within [0, Capacity()).
func (m *SparseMap) Contains(originalID int64) bool {
	return bitutil.Get(m.pages, originalID)
}

// ToMapped returns the dense id of originalID, or NotFound if originalID is
// not part of the map. The id must be within [0, Capacity()).
func (m *SparseMap) ToMapped(originalID int64) int64 {
	page, bit := bitutil.PageOf(originalID)
	word := m.pages[page]
	if word&(1<<bit) == 0 {
		return NotFound
	}
	block := page >> blockShift
	mappedID := m.blockOffsets[block]
	for p := page &^ blockMask; p < page; p++ {
		mappedID += int64(bits.OnesCount64(m.pages[p]))
	}
	mappedID += int64(bitutil.RankInPage(word, bit))
	return mappedID - 1
}

// ToOriginal returns the original id that was mapped to mappedID.
//
// If mappedID is not within [0, IDCount()) the result is 0, which cannot be
// told apart from a valid mapping of the original id 0. Callers that need to
// detect this must check the bounds themselves.
func (m *SparseMap) ToOriginal(mappedID int64) int64 {
	if mappedID < 0 {
		return 0
	}
	// Find the last block whose offset is <= mappedID. Empty blocks share
	// their offset with the following block, so picking the last one skips
	// over them.
	i := sort.Search(len(m.sortedBlockOffsets), func(i int) bool {
		return m.sortedBlockOffsets[i] > mappedID
	}) - 1
	if i < 0 {
		return 0
	}
	block := int(m.blockMapping[i])
	rank := mappedID - m.blockOffsets[block]
	start := block << blockShift
	end := min(start+BlockSize, len(m.pages))
	for p := start; p < end; p++ {
		word := m.pages[p]
		n := int64(bits.OnesCount64(word))
		if rank < n {
			return int64(p)<<bitutil.PageShift + int64(bitutil.SelectInPage(word, int(rank)))
		}
		rank -= n
	}
	// The rank lies beyond the last id. Callers mapping ids back for output
	// treat 0 as the fallback.
	return 0
}

// All returns an iterator over (mapped, original) id pairs in ascending
// order.
func (m *SparseMap) All() iter.Seq2[int64, int64] {
	return func(yield func(int64, int64) bool) {
		var mappedID int64
		for p, word := range m.pages {
			for word != 0 {
				bit := bits.TrailingZeros64(word)
				if !yield(mappedID, int64(p)<<bitutil.PageShift+int64(bit)) {
					return
				}
				mappedID++
				word &= word - 1
			}
		}
	}
}

// String implements fmt.Stringer.
func (m *SparseMap) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m *SparseMap) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("sparse map: %d ids, capacity %d, %d blocks", m.idCount, m.capacity, len(m.blockOffsets))
}

// newSparseMapFromPrefixScan computes the block offsets of pages with a
// forward scan. The blocks are visited in ascending order, so the offsets are
// already sorted and the block mapping is the identity.
func newSparseMapFromPrefixScan(pages []uint64, capacity int64) *SparseMap {
	numBlocks := int(bitutil.CeilDiv(int64(len(pages)), BlockSize))
	blockOffsets := make([]int64, numBlocks)
	blockMapping := make([]int32, numBlocks)
	var count int64
	for block := range blockOffsets {
		blockOffsets[block] = count
		blockMapping[block] = int32(block)
		start := block << blockShift
		count += bitutil.PopCount(pages[start:min(start+BlockSize, len(pages))])
	}
	return &SparseMap{
		idCount:            count,
		capacity:           capacity,
		pages:              pages,
		blockOffsets:       blockOffsets,
		sortedBlockOffsets: blockOffsets,
		blockMapping:       blockMapping,
	}
}
