// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package idmap

import (
	"runtime"

	"github.com/cockroachdb/idmap/internal/base"
)

// Logger defines an interface for writing log messages.
type Logger = base.Logger

// DefaultLogger logs to the Go stdlib logs.
type DefaultLogger = base.DefaultLogger

// Options holds the optional parameters for building a SparseMap. A nil
// *Options is valid and uses the defaults.
type Options struct {
	// Concurrency bounds the number of goroutines used by BuildParallel, both
	// for populating the per-partition bit-vectors and for merging them.
	//
	// The default value is runtime.GOMAXPROCS(0).
	Concurrency int

	// Logger used to write log messages.
	//
	// The default logger discards all messages.
	Logger Logger

	// Verbose enables a log line summarizing every built SparseMap.
	Verbose bool
}

// EnsureDefaults ensures that the default values for all options are set if a
// valid value was not already specified.
func (o *Options) EnsureDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = base.NoopLogger{}
	}
}

// Clone creates a shallow-copy of the supplied options.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	n := *o
	return &n
}
