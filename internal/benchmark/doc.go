// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of an analysis run:
//   - CLI metadata decoding
//   - CUE configuration loading
//   - Reference graph construction and path enumeration
//   - End-to-end analysis of assemblies on disk
//
// To generate a PGO profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
