// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/crlib/crstrings"
	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/idmap/internal/base"
	"github.com/cockroachdb/idmap/internal/bitutil"
	"github.com/stretchr/testify/require"
)

func parseIDs(t *testing.T, s string) []int64 {
	t.Helper()
	var ids []int64
	for _, f := range strings.Fields(s) {
		id, err := strconv.ParseInt(f, 10, 64)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// buildFromTestData builds a SparseMap with the builder named by the
// "builder" argument. For the explicit builder every input line has the form
// "<allocation index>: <ids>"; for the other builders every line holds the
// ids of one worker or partition.
func buildFromTestData(t *testing.T, td *datadriven.TestData) (m *SparseMap, err error) {
	var builder string
	var capacity int
	td.ScanArgs(t, "builder", &builder)
	td.ScanArgs(t, "capacity", &capacity)
	lines := crstrings.Lines(td.Input)

	switch builder {
	case "explicit":
		b := NewBuilder(int64(capacity), nil)
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			alloc, ids, ok := strings.Cut(line, ":")
			require.True(t, ok, "malformed batch %q", line)
			allocationIndex, err := strconv.ParseInt(strings.TrimSpace(alloc), 10, 64)
			require.NoError(t, err)
			b.Set(allocationIndex, parseIDs(t, ids))
		}
		return b.Build(), nil

	case "sequential":
		b := NewSequentialBuilder(int64(capacity), nil)
		for _, line := range lines {
			w := b.Worker()
			w.SetAll(parseIDs(t, line))
			w.Close()
		}
		return b.Build(), nil

	case "parallel":
		var partitions [][]int64
		for _, line := range lines {
			partitions = append(partitions, parseIDs(t, line))
		}
		return BuildParallel(int64(capacity), partitions, &Options{Concurrency: 2})

	case "existing":
		pages := make([]uint64, bitutil.NumPages(int64(capacity)))
		for _, line := range lines {
			for _, id := range parseIDs(t, line) {
				bitutil.Set(pages, id)
			}
		}
		return FromExisting(pages, nil).Build(), nil

	default:
		t.Fatalf("unknown builder %q", builder)
		return nil, nil
	}
}

func TestSparseMap(t *testing.T) {
	var m *SparseMap
	datadriven.RunTest(t, "testdata/sparse_map", func(t *testing.T, td *datadriven.TestData) (out string) {
		var buf strings.Builder
		switch td.Cmd {
		case "build":
			defer func() {
				if r := recover(); r != nil {
					m = nil
					out = fmt.Sprintf("panic: %v\n", r)
				}
			}()
			var err error
			m, err = buildFromTestData(t, td)
			if err != nil {
				m = nil
				return fmt.Sprintf("error: %v\n", err)
			}
			return m.String() + "\n"

		case "to-mapped":
			var ids []int
			td.ScanArgs(t, "ids", &ids)
			for _, id := range ids {
				if mapped := m.ToMapped(int64(id)); mapped == NotFound {
					fmt.Fprintf(&buf, "%d -> not found\n", id)
				} else {
					fmt.Fprintf(&buf, "%d -> %d\n", id, mapped)
				}
			}
			return buf.String()

		case "to-original":
			var mapped []int
			td.ScanArgs(t, "mapped", &mapped)
			for _, id := range mapped {
				fmt.Fprintf(&buf, "%d -> %d\n", id, m.ToOriginal(int64(id)))
			}
			return buf.String()

		case "contains":
			var ids []int
			td.ScanArgs(t, "ids", &ids)
			for _, id := range ids {
				fmt.Fprintf(&buf, "%d: %t\n", id, m.Contains(int64(id)))
			}
			return buf.String()

		case "all":
			for mapped, original := range m.All() {
				fmt.Fprintf(&buf, "%d -> %d\n", mapped, original)
			}
			return buf.String()

		default:
			return fmt.Sprintf("unknown command: %s", td.Cmd)
		}
	})
}

func TestValidBatchSize(t *testing.T) {
	require.Equal(t, 0, ValidBatchSize(0))
	require.Equal(t, BlockIDs, ValidBatchSize(1))
	require.Equal(t, BlockIDs, ValidBatchSize(BlockIDs))
	require.Equal(t, 2*BlockIDs, ValidBatchSize(BlockIDs+1))
	require.Equal(t, 4096, BlockIDs)
}

func TestMetrics(t *testing.T) {
	b := NewSequentialBuilder(200, nil)
	b.SetAll([]int64{3, 64, 199})
	met := b.Build().Metrics()
	require.Equal(t, Metrics{
		IDCount:       3,
		Capacity:      200,
		Pages:         4,
		Blocks:        1,
		WrittenBlocks: 1,
		MemoryBytes:   4*8 + 8 + 4,
	}, met)
	require.InDelta(t, float64(44*8)/3, met.BitsPerID(), 1e-9)
	require.Contains(t, met.String(), "blocks: 1 (written 1)")

	// The explicit builder keeps a separate sorted copy of the offsets.
	eb := NewBuilder(3*BlockIDs, nil)
	eb.Set(0, []int64{1, 2})
	eb.Set(2, []int64{2 * BlockIDs})
	met = eb.Build().Metrics()
	require.Equal(t, 3, met.Blocks)
	require.Equal(t, 2, met.WrittenBlocks)
	require.Equal(t, uint64(192*8+3*8+3*4+3*8), met.MemoryBytes)

	require.Zero(t, NewSequentialBuilder(10, nil).Build().Metrics().BitsPerID())
}

func TestVerboseLogging(t *testing.T) {
	var logger base.InMemLogger
	opts := &Options{Logger: &logger, Verbose: true}

	b := NewSequentialBuilder(200, opts)
	b.SetAll([]int64{3, 64, 199})
	b.Build()
	require.Equal(t, "idmap: built sparse map: 3 ids, capacity 200, 1 blocks from 1 workers\n", logger.String())

	logger.Reset()
	eb := NewBuilder(200, opts)
	eb.Set(0, []int64{7})
	eb.Build()
	require.Equal(t, "idmap: built sparse map: 1 ids, capacity 200, 1 blocks\n", logger.String())

	logger.Reset()
	_, err := BuildParallel(200, [][]int64{{1}, {2}}, opts)
	require.NoError(t, err)
	require.Equal(t, "idmap: built sparse map: 2 ids, capacity 200, 1 blocks from 2 partitions\n", logger.String())

	// Without Verbose nothing is logged.
	logger.Reset()
	FromExisting([]uint64{1}, &Options{Logger: &logger}).Build()
	require.Empty(t, logger.String())
}

func TestAllStopsEarly(t *testing.T) {
	m := FromExisting([]uint64{0b1011, 1}, nil).Build()
	var got []int64
	for _, original := range m.All() {
		got = append(got, original)
		if len(got) == 2 {
			break
		}
	}
	require.Equal(t, []int64{0, 1}, got)
}
