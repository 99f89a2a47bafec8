// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/idmap"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"
)

const (
	minLatency = 1 * time.Nanosecond
	maxLatency = 10 * time.Millisecond
)

var benchConfig struct {
	capacity int64
	density  float64
	seed     uint64
	ops      int
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "benchmark building and querying sparse maps",
	Long: `
Generates a random id set, builds it with every builder, verifies that all
builders agree and reports the latency distribution of ToMapped and
ToOriginal queries.
`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatency.Nanoseconds(), maxLatency.Nanoseconds(), 2)
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := benchConfig
	if cfg.capacity <= 0 {
		return errors.Newf("capacity must be positive: %d", cfg.capacity)
	}
	if cfg.density <= 0 || cfg.density > 1 {
		return errors.Newf("density must be in (0, 1]: %f", cfg.density)
	}
	rng := rand.New(rand.NewSource(cfg.seed))
	var ids []int64
	for id := int64(0); id < cfg.capacity; id++ {
		if rng.Float64() < cfg.density {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return errors.New("no ids generated; increase capacity or density")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ids: %d  capacity: %d\n", len(ids), cfg.capacity)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"builder", "build", "op", "ops", "mean(ns)", "p50(ns)", "p99(ns)", "p99.9(ns)", "max(ns)"})
	var reference *idmap.SparseMap
	for _, kind := range []string{"explicit", "sequential", "parallel", "existing"} {
		start := crtime.NowMono()
		m, err := buildMap(kind, cfg.capacity, ids)
		if err != nil {
			return err
		}
		buildTime := start.Elapsed()
		if err := verify(m, ids); err != nil {
			return errors.Wrapf(err, "%s", kind)
		}
		if reference == nil {
			reference = m
		} else if m.IDCount() != reference.IDCount() {
			return errors.Newf("%s: id count %d, expected %d", kind, m.IDCount(), reference.IDCount())
		}

		toMapped, toOriginal := newHistogram(), newHistogram()
		for i := 0; i < cfg.ops; i++ {
			id := ids[rng.Intn(len(ids))]
			t := crtime.NowMono()
			mapped := m.ToMapped(id)
			_ = toMapped.RecordValue(int64(t.Elapsed()))

			t = crtime.NowMono()
			_ = m.ToOriginal(mapped)
			_ = toOriginal.RecordValue(int64(t.Elapsed()))
		}
		for _, h := range []struct {
			op   string
			hist *hdrhistogram.Histogram
		}{{"to-mapped", toMapped}, {"to-original", toOriginal}} {
			table.Append([]string{
				kind,
				buildTime.Round(time.Microsecond).String(),
				h.op,
				fmt.Sprint(h.hist.TotalCount()),
				fmt.Sprintf("%.1f", h.hist.Mean()),
				fmt.Sprint(h.hist.ValueAtQuantile(50)),
				fmt.Sprint(h.hist.ValueAtQuantile(99)),
				fmt.Sprint(h.hist.ValueAtQuantile(99.9)),
				fmt.Sprint(h.hist.Max()),
			})
		}
	}
	table.Render()
	return nil
}

// verify checks that m maps exactly the ascending ids.
func verify(m *idmap.SparseMap, ids []int64) error {
	if m.IDCount() != int64(len(ids)) {
		return errors.Newf("id count %d, expected %d", m.IDCount(), len(ids))
	}
	for i, id := range ids {
		if mapped := m.ToMapped(id); mapped != int64(i) {
			return errors.Newf("ToMapped(%d) = %d, expected %d", id, mapped, i)
		}
		if original := m.ToOriginal(int64(i)); original != id {
			return errors.Newf("ToOriginal(%d) = %d, expected %d", i, original, id)
		}
	}
	return nil
}
