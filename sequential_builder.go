// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/idmap/internal/bitutil"
	"github.com/cockroachdb/idmap/internal/invariants"
	"golang.org/x/sync/errgroup"
)

// SequentialBuilder constructs a SparseMap from ids written by any number of
// concurrent writers without pre-assigned dense ids. Dense ids follow the
// order of the original ids.
//
// Every writer obtains its own Worker, which owns a private bit-vector over
// the whole id space, so writers never share state. Closing a Worker merges
// its vector into the builder. Build merges all remaining workers and computes
// the block offsets with a single forward scan.
type SequentialBuilder struct {
	capacity int64
	numPages int
	opts     *Options
	// pool recycles cleared page vectors of numPages pages.
	pool sync.Pool

	mu struct {
		sync.Mutex
		// combined is the OR of all closed workers' vectors. The first closed
		// vector is adopted as is.
		combined []uint64
		workers  []*Worker
		built    bool
	}
	// local serves SequentialBuilder.Set for single-goroutine callers.
	local *Worker
}

// NewSequentialBuilder returns a SequentialBuilder for original ids in
// [0, capacity).
func NewSequentialBuilder(capacity int64, opts *Options) *SequentialBuilder {
	if capacity < 0 {
		panic(errors.AssertionFailedf("negative capacity %d", capacity))
	}
	opts = opts.Clone()
	opts.EnsureDefaults()
	b := &SequentialBuilder{
		capacity: capacity,
		numPages: bitutil.NumPages(capacity),
		opts:     opts,
	}
	b.pool.New = func() interface{} {
		pages := make([]uint64, b.numPages)
		return &pages
	}
	return b
}

// Worker returns a new writer with an exclusively owned bit-vector. The
// Worker must not be shared between goroutines. It should be closed once the
// writer is done; Build closes any Worker that is still open.
func (b *SequentialBuilder) Worker() *Worker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mu.built {
		panic(errors.AssertionFailedf("worker requested after build"))
	}
	w := &Worker{
		b:     b,
		pages: *b.pool.Get().(*[]uint64),
	}
	b.mu.workers = append(b.mu.workers, w)
	return w
}

// Set adds originalID through a builder-owned Worker. Set is not safe for
// concurrent use; concurrent writers use Worker instead.
func (b *SequentialBuilder) Set(originalID int64) {
	b.localWorker().Set(originalID)
}

// SetAll adds originalIDs through a builder-owned Worker. Callers holding a
// larger slice pass ids[offset:offset+length]. SetAll is not safe for
// concurrent use; concurrent writers use Worker instead.
func (b *SequentialBuilder) SetAll(originalIDs []int64) {
	b.localWorker().SetAll(originalIDs)
}

func (b *SequentialBuilder) localWorker() *Worker {
	if b.local == nil {
		b.local = b.Worker()
	}
	return b.local
}

// combine merges a closed worker's vector into the combined vector.
func (b *SequentialBuilder) combine(pages []uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mu.combined == nil {
		b.mu.combined = pages
		return
	}
	bitutil.Or(b.mu.combined, pages)
	clear(pages)
	b.pool.Put(&pages)
}

// Build closes all open workers and returns the resulting SparseMap. All
// writers must have returned before Build is called.
func (b *SequentialBuilder) Build() *SparseMap {
	b.mu.Lock()
	if b.mu.built {
		b.mu.Unlock()
		panic(errors.AssertionFailedf("builder already built"))
	}
	b.mu.built = true
	workers := b.mu.workers
	b.mu.workers = nil
	b.mu.Unlock()

	for _, w := range workers {
		if w.pages != nil {
			w.Close()
		}
	}

	b.mu.Lock()
	pages := b.mu.combined
	b.mu.combined = nil
	b.mu.Unlock()
	if pages == nil {
		pages = make([]uint64, b.numPages)
	}
	m := newSparseMapFromPrefixScan(pages, b.capacity)
	if b.opts.Verbose {
		b.opts.Logger.Infof("idmap: built %s from %d workers", m, len(workers))
	}
	return m
}

// Worker writes ids into a private bit-vector of a SequentialBuilder.
type Worker struct {
	b     *SequentialBuilder
	pages []uint64

	closeChecker invariants.CloseChecker
}

// Set adds originalID, which must be within [0, capacity). Adding an id twice
// is a no-op.
func (w *Worker) Set(originalID int64) {
	if invariants.Enabled {
		w.closeChecker.AssertNotClosed()
		invariants.CheckID(originalID, w.b.capacity)
	}
	bitutil.Set(w.pages, originalID)
}

// SetAll adds originalIDs, which need not be sorted.
func (w *Worker) SetAll(originalIDs []int64) {
	if invariants.Enabled {
		w.closeChecker.AssertNotClosed()
	}
	for _, id := range originalIDs {
		if invariants.Enabled {
			invariants.CheckID(id, w.b.capacity)
		}
		bitutil.Set(w.pages, id)
	}
}

// Close hands the worker's bit-vector to the builder. The Worker must not be
// used afterwards.
func (w *Worker) Close() {
	w.closeChecker.Close()
	if w.pages == nil {
		return
	}
	pages := w.pages
	w.pages = nil
	w.b.combine(pages)
}

// BuildParallel builds a SparseMap from partitions of original ids using a
// scatter/gather pass: every partition is written into a private bit-vector
// by its own goroutine, and the vectors are then merged with a pairwise OR
// reduction. At most opts.Concurrency goroutines run at a time. The
// partitions may overlap and need not be sorted.
//
// An error is returned if any id lies outside [0, capacity).
func BuildParallel(capacity int64, partitions [][]int64, opts *Options) (*SparseMap, error) {
	if capacity < 0 {
		return nil, errors.Newf("negative capacity %d", capacity)
	}
	opts = opts.Clone()
	opts.EnsureDefaults()
	numPages := bitutil.NumPages(capacity)

	vectors := make([][]uint64, len(partitions))
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, partition := range partitions {
		g.Go(func() error {
			pages := make([]uint64, numPages)
			for _, id := range partition {
				if id < 0 || id >= capacity {
					return errors.Newf("partition %d: id %d out of range [0, %d)", i, id, capacity)
				}
				bitutil.Set(pages, id)
			}
			vectors[i] = pages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := bitutil.ReduceOr(vectors, opts.Concurrency)
	if pages == nil {
		pages = make([]uint64, numPages)
	}
	m := newSparseMapFromPrefixScan(pages, capacity)
	if opts.Verbose {
		opts.Logger.Infof("idmap: built %s from %d partitions", m, len(partitions))
	}
	return m, nil
}
