// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"unsafe"

	"github.com/cockroachdb/crlib/crhumanize"
	"github.com/cockroachdb/redact"
)

// Metrics holds structural statistics of a SparseMap.
type Metrics struct {
	// IDCount is the number of mapped ids.
	IDCount int64
	// Capacity is the exclusive upper bound of original ids.
	Capacity int64
	// Pages is the number of 64-bit pages of the bit-vector.
	Pages int
	// Blocks is the number of blocks, each covering BlockSize pages.
	Blocks int
	// WrittenBlocks is the number of blocks containing at least one id.
	WrittenBlocks int
	// MemoryBytes is the memory held by the map's arrays.
	MemoryBytes uint64
}

// Metrics returns structural statistics of the map.
func (m *SparseMap) Metrics() Metrics {
	met := Metrics{
		IDCount:  m.idCount,
		Capacity: m.capacity,
		Pages:    len(m.pages),
		Blocks:   len(m.blockOffsets),
	}
	for block := range m.blockOffsets {
		start := block << blockShift
		for _, word := range m.pages[start:min(start+BlockSize, len(m.pages))] {
			if word != 0 {
				met.WrittenBlocks++
				break
			}
		}
	}
	met.MemoryBytes = uint64(len(m.pages))*uint64(unsafe.Sizeof(uint64(0))) +
		uint64(len(m.blockOffsets))*uint64(unsafe.Sizeof(int64(0))) +
		uint64(len(m.blockMapping))*uint64(unsafe.Sizeof(int32(0)))
	// The sequential builders alias the sorted offsets to the offsets.
	if len(m.sortedBlockOffsets) > 0 && &m.sortedBlockOffsets[0] != &m.blockOffsets[0] {
		met.MemoryBytes += uint64(len(m.sortedBlockOffsets)) * uint64(unsafe.Sizeof(int64(0)))
	}
	return met
}

// BitsPerID returns the number of bits of memory used per mapped id, or 0 for
// an empty map.
func (met Metrics) BitsPerID() float64 {
	if met.IDCount == 0 {
		return 0
	}
	return float64(met.MemoryBytes*8) / float64(met.IDCount)
}

// String implements fmt.Stringer.
func (met Metrics) String() string {
	return redact.StringWithoutMarkers(met)
}

// SafeFormat implements redact.SafeFormatter.
func (met Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("ids: %s of %s\n",
		crhumanize.Count(met.IDCount, crhumanize.Compact),
		crhumanize.Count(met.Capacity, crhumanize.Compact))
	w.Printf("pages: %d  blocks: %d (written %d)\n", met.Pages, met.Blocks, met.WrittenBlocks)
	w.Printf("memory: %s (%.2f bits/id)\n",
		crhumanize.Bytes(met.MemoryBytes, crhumanize.Compact, crhumanize.OmitI),
		redact.SafeFloat(met.BitsPerID()))
}
