// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/idmap/internal/bitutil"
)

// ExistingBuilder constructs a SparseMap from a bit-vector that was populated
// elsewhere. Bit b of pages[p] represents the original id p*64+b.
type ExistingBuilder struct {
	pages []uint64
	opts  *Options
	built bool
}

// FromExisting returns an ExistingBuilder wrapping pages. The capacity of the
// resulting map is len(pages)*64. The SparseMap returned by Build takes
// ownership of pages; the caller must not modify them afterwards.
func FromExisting(pages []uint64, opts *Options) *ExistingBuilder {
	opts = opts.Clone()
	opts.EnsureDefaults()
	return &ExistingBuilder{pages: pages, opts: opts}
}

// Build computes the block offsets and returns the resulting SparseMap.
func (b *ExistingBuilder) Build() *SparseMap {
	if b.built {
		panic(errors.AssertionFailedf("builder already built"))
	}
	b.built = true
	m := newSparseMapFromPrefixScan(b.pages, int64(len(b.pages))<<bitutil.PageShift)
	b.pages = nil
	if b.opts.Verbose {
		b.opts.Logger.Infof("idmap: built %s from existing pages", m)
	}
	return m
}
