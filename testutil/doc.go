// Package testutil provides testing utilities for gomam.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random datasets and computing exact
// range and nearest-neighbor answers by linear scan.
//
// # Random Datasets
//
//	rng := testutil.NewRNG(seed)
//	points := rng.UniformPoints(1000, 2, 0, 100)
//
// # Exact Search (Ground Truth)
//
//	want := testutil.BruteForceKNN(points, query, k, false, distance.Euclidean)
package testutil
