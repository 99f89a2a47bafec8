// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/idmap"
	"github.com/cockroachdb/swiss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var buildCapacity int64

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "build a map from a file of newline separated ids",
	Long: `
Reads original ids from <file> (or stdin if <file> is "-"), builds a sparse
map with the selected builder and prints its metrics. Ids may appear in any
order; duplicate ids are rejected.
`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	ids, err := readIDs(r)
	if err != nil {
		return err
	}
	capacity := buildCapacity
	if capacity == 0 && len(ids) > 0 {
		capacity = ids[len(ids)-1] + 1
	}
	if len(ids) > 0 && ids[len(ids)-1] >= capacity {
		return errors.Newf("id %d exceeds capacity %d", ids[len(ids)-1], capacity)
	}

	start := crtime.NowMono()
	m, err := buildMap(builderKind, capacity, ids)
	if err != nil {
		return err
	}
	elapsed := start.Elapsed()

	met := m.Metrics()
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"builder", "ids", "capacity", "pages", "blocks", "written", "bytes", "bits/id", "build"})
	table.Append([]string{
		builderKind,
		strconv.FormatInt(met.IDCount, 10),
		strconv.FormatInt(met.Capacity, 10),
		strconv.Itoa(met.Pages),
		strconv.Itoa(met.Blocks),
		strconv.Itoa(met.WrittenBlocks),
		strconv.FormatUint(met.MemoryBytes, 10),
		fmt.Sprintf("%.2f", met.BitsPerID()),
		elapsed.Round(time.Microsecond).String(),
	})
	table.Render()
	return nil
}

// readIDs parses one id per line, skipping blank lines, and returns the ids in
// ascending order.
func readIDs(r io.Reader) ([]int64, error) {
	var seen swiss.Map[int64, int]
	seen.Init(1024)
	var ids []int64
	s := bufio.NewScanner(r)
	for line := 1; s.Scan(); line++ {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if id < 0 {
			return nil, errors.Newf("line %d: negative id %d", line, id)
		}
		if prev, ok := seen.Get(id); ok {
			return nil, errors.Newf("line %d: duplicate id %d (first seen on line %d)", line, id, prev)
		}
		seen.Put(id, line)
		ids = append(ids, id)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

// buildMap builds a map over the ascending ids using the named builder.
func buildMap(kind string, capacity int64, ids []int64) (*idmap.SparseMap, error) {
	opts := &idmap.Options{Concurrency: concurrency, Verbose: verbose}
	if verbose {
		opts.Logger = idmap.DefaultLogger{}
	}

	switch kind {
	case "explicit":
		// Scan the id space in block aligned ranges, allocating dense ids for
		// each range up front, and write the ranges concurrently.
		b := idmap.NewBuilder(capacity, opts)
		span := int64(idmap.ValidBatchSize(batchSize))
		var g errgroup.Group
		g.SetLimit(max(concurrency, 1))
		var alloc int64
		for start := 0; start < len(ids); {
			limit := (ids[start]/span + 1) * span
			end, _ := slices.BinarySearch(ids[start:], limit)
			batch, allocationIndex := ids[start:start+end], alloc
			g.Go(func() error {
				b.Set(allocationIndex, batch)
				return nil
			})
			alloc += int64(end)
			start += end
		}
		_ = g.Wait()
		return b.Build(), nil

	case "sequential":
		b := idmap.NewSequentialBuilder(capacity, opts)
		var g errgroup.Group
		for _, chunk := range chunks(ids, concurrency) {
			w := b.Worker()
			g.Go(func() error {
				defer w.Close()
				w.SetAll(chunk)
				return nil
			})
		}
		_ = g.Wait()
		return b.Build(), nil

	case "parallel":
		return idmap.BuildParallel(capacity, chunks(ids, concurrency), opts)

	case "existing":
		pages := make([]uint64, (capacity+63)/64)
		for _, id := range ids {
			pages[id>>6] |= 1 << uint(id&63)
		}
		return idmap.FromExisting(pages, opts).Build(), nil

	default:
		return nil, errors.Newf("unknown builder %q", kind)
	}
}

// chunks splits ids into at most n contiguous chunks of similar size.
func chunks(ids []int64, n int) [][]int64 {
	n = max(n, 1)
	size := (len(ids) + n - 1) / n
	var out [][]int64
	for size > 0 && len(ids) > 0 {
		k := min(size, len(ids))
		out = append(out, ids[:k])
		ids = ids[k:]
	}
	return out
}
