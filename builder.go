// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"cmp"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/idmap/internal/bitutil"
	"github.com/cockroachdb/idmap/internal/invariants"
)

// Builder constructs a SparseMap from batches of ids whose dense ids were
// allocated by the caller. This is the shape of a parallel loader that scans
// the id space in partitions and reserves a range of dense ids for each
// partition before writing it.
//
// Set may be called concurrently as long as the batches cover disjoint,
// block-aligned id ranges (see ValidBatchSize). Build must only be called
// once all calls to Set have returned.
type Builder struct {
	capacity     int64
	pages        []uint64
	blockOffsets []int64
	opts         *Options
	built        bool
}

// NewBuilder returns a Builder for original ids in [0, capacity).
func NewBuilder(capacity int64, opts *Options) *Builder {
	if capacity < 0 {
		panic(errors.AssertionFailedf("negative capacity %d", capacity))
	}
	opts = opts.Clone()
	opts.EnsureDefaults()
	numPages := bitutil.NumPages(capacity)
	blockOffsets := make([]int64, bitutil.CeilDiv(int64(numPages), BlockSize))
	for i := range blockOffsets {
		blockOffsets[i] = unwrittenBlock
	}
	return &Builder{
		capacity:     capacity,
		pages:        make([]uint64, numPages),
		blockOffsets: blockOffsets,
		opts:         opts,
	}
}

// Set adds a batch of ascending original ids. The first id of the batch is
// assigned the dense id allocationIndex, the next one allocationIndex+1 and so
// on. Callers holding a larger slice pass ids[offset:offset+length].
//
// Each block may only be written by a single batch. Recording the offset of a
// block a second time is a protocol violation and panics.
func (b *Builder) Set(allocationIndex int64, originalIDs []int64) {
	if len(originalIDs) == 0 {
		return
	}
	if invariants.Enabled {
		invariants.CheckAscending(originalIDs)
		invariants.CheckID(originalIDs[0], b.capacity)
		invariants.CheckID(originalIDs[len(originalIDs)-1], b.capacity)
	}
	prevBlock := -1
	prevCount := 0
	for i, id := range originalIDs {
		block := int(id >> blockIDShift)
		if block != prevBlock {
			if prevBlock != -1 {
				b.setBlockOffset(prevBlock, allocationIndex+int64(prevCount))
			}
			prevBlock = block
			prevCount = i
		}
		bitutil.Set(b.pages, id)
	}
	b.setBlockOffset(prevBlock, allocationIndex+int64(prevCount))
}

func (b *Builder) setBlockOffset(block int, offset int64) {
	if prev := b.blockOffsets[block]; prev != unwrittenBlock {
		panic(errors.AssertionFailedf(
			"block %d already has offset %d, cannot set offset %d", block, prev, offset))
	}
	b.blockOffsets[block] = offset
}

// Build finalizes the builder. The returned SparseMap takes ownership of the
// builder's storage, so the builder cannot be used afterwards.
func (b *Builder) Build() *SparseMap {
	if b.built {
		panic(errors.AssertionFailedf("builder already built"))
	}
	b.built = true

	// Sort the blocks by offset. The sort is stable so unwritten blocks keep
	// their index order at the end.
	blockMapping := make([]int32, len(b.blockOffsets))
	for i := range blockMapping {
		blockMapping[i] = int32(i)
	}
	slices.SortStableFunc(blockMapping, func(x, y int32) int {
		return cmp.Compare(b.blockOffsets[x], b.blockOffsets[y])
	})
	sortedBlockOffsets := make([]int64, len(b.blockOffsets))
	for i, block := range blockMapping {
		sortedBlockOffsets[i] = b.blockOffsets[block]
	}

	// The id count is the offset of the last written block plus the number of
	// ids within that block.
	var idCount int64
	last := len(sortedBlockOffsets) - 1
	for last >= 0 && sortedBlockOffsets[last] == unwrittenBlock {
		last--
	}
	if last >= 0 {
		start := int(blockMapping[last]) << blockShift
		idCount = sortedBlockOffsets[last] +
			bitutil.PopCount(b.pages[start:min(start+BlockSize, len(b.pages))])
	}

	m := &SparseMap{
		idCount:            idCount,
		capacity:           b.capacity,
		pages:              b.pages,
		blockOffsets:       b.blockOffsets,
		sortedBlockOffsets: sortedBlockOffsets,
		blockMapping:       blockMapping,
	}
	b.pages, b.blockOffsets = nil, nil
	if invariants.Enabled {
		checkIDCount(m)
	}
	if b.opts.Verbose {
		b.opts.Logger.Infof("idmap: built %s", m)
	}
	return m
}

// checkIDCount panics if the id count of m disagrees with the number of set
// bits.
func checkIDCount(m *SparseMap) {
	if n := bitutil.PopCount(m.pages); n != m.idCount {
		panic(errors.AssertionFailedf("id count %d, but %d bits are set", m.idCount, n))
	}
}
