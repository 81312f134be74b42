// Package testutil provides fixtures for tests of the planner and the index.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Input
//
//	rng := testutil.NewRNG(seed)
//	uids := rng.UIDs(32, 1000) // 32 distinct ids below 1000
//
// # Index Fixtures
//
//	fx := testutil.NewFixture(t)
//	fx.Add("NAME", "alice", "20240101_0", "person", 1, 2, 3)
//	fx.Scanners()  // stream.ScannerFactory over the fixture table
//	fx.Metadata()  // metadata.Helper listing every field added
//
// A fixture remembers what it was given, so tests can compare planned
// ranges with the documents that actually match.
package testutil
