// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	builderKind string
	batchSize   int
	concurrency int
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "idmap [command] (flags)",
	Short: "sparse id map introspection/benchmarking tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		buildCmd,
		benchCmd,
	)

	for _, cmd := range []*cobra.Command{buildCmd, benchCmd} {
		cmd.Flags().IntVarP(
			&concurrency, "concurrency", "c", 4, "number of concurrent writers")
		cmd.Flags().IntVar(
			&batchSize, "batch", 10000,
			"ids per batch for the explicit builder (rounded up to whole blocks)")
		cmd.Flags().BoolVarP(
			&verbose, "verbose", "v", false, "log a summary of every built map")
	}

	buildCmd.Flags().StringVarP(
		&builderKind, "builder", "b", "sequential",
		"builder to use: explicit, sequential, parallel or existing")
	buildCmd.Flags().Int64Var(
		&buildCapacity, "capacity", 0,
		"exclusive upper bound of original ids (0 means max id + 1)")

	benchCmd.Flags().Int64Var(
		&benchConfig.capacity, "capacity", 1<<24, "exclusive upper bound of original ids")
	benchCmd.Flags().Float64Var(
		&benchConfig.density, "density", 0.05, "fraction of the id space that is populated")
	benchCmd.Flags().Uint64Var(
		&benchConfig.seed, "seed", 1, "random seed")
	benchCmd.Flags().IntVarP(
		&benchConfig.ops, "ops", "n", 1000000, "number of queries per operation")

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error message.
		os.Exit(1)
	}
}
