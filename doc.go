// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package idmap provides SparseMap, a succinct mapping between a sparse set of
// 64-bit original ids and the dense id range [0, n).
//
// A graph loader that receives node ids from an external source with large
// gaps uses a SparseMap to assign array-indexable dense ids, and translates
// the dense ids back when emitting results:
//
//	b := idmap.NewSequentialBuilder(capacity, nil)
//	w := b.Worker()
//	w.SetAll(ids)
//	w.Close()
//	m := b.Build()
//	dense := m.ToMapped(ids[0])  // 0
//	orig := m.ToOriginal(dense)  // ids[0]
//
// Three builders produce the same immutable SparseMap:
//
//   - Builder receives batches whose dense ids were allocated by the caller.
//     Batches must be aligned to whole blocks (see ValidBatchSize).
//   - SequentialBuilder and BuildParallel let concurrent writers fill private
//     bit-vectors which are merged with a bitwise OR.
//   - ExistingBuilder wraps a bit-vector that was populated elsewhere.
package idmap
