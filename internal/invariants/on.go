// Copyright 2020 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

//go:build invariants || race

package invariants

import "github.com/cockroachdb/errors"

// Enabled is true if we were built with the "invariants" or "race" build tags.
const Enabled = true

// CloseChecker is used to check that objects are closed exactly once.
type CloseChecker struct {
	closed bool
}

// Close panics if called twice on the same object (if we were built with the
// "invariants" or "race" build tags).
func (d *CloseChecker) Close() {
	if d.closed {
		panic(errors.AssertionFailedf("double close"))
	}
	d.closed = true
}

// AssertNotClosed panics in invariant builds if Close was called.
func (d *CloseChecker) AssertNotClosed() {
	if d.closed {
		panic(errors.AssertionFailedf("use after close"))
	}
}

// CheckID panics if id does not fall within [0, capacity).
func CheckID(id, capacity int64) {
	if id < 0 || id >= capacity {
		panic(errors.AssertionFailedf("id %d out of range [0, %d)", id, capacity))
	}
}

// CheckAscending panics if ids are not strictly increasing.
func CheckAscending(ids []int64) {
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			panic(errors.AssertionFailedf("ids not ascending at %d: %d <= %d", i, ids[i], ids[i-1]))
		}
	}
}
