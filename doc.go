// Package gomam provides metric access methods over paged storage.
//
// A metric access method indexes objects of any type under a caller supplied
// distance function and answers similarity queries with branch-and-bound
// pruning. Four trees are available:
//
//   - Dummy: a sequential scan over linked pages, the reference for the others
//   - GH: a generalized hyperplane tree with covering radii
//   - MM: a two-pivot tree whose nodes split space into four regions
//   - VP: a vantage point tree built in bulk
//
// Every tree stores its nodes in fixed-size pages served by a
// pagestore.Manager, so the same tree runs in memory, in a single file, in a
// set of shard files, in a Pebble database or against a remote page server.
//
// # Quick Start
//
//	mgr := pagestore.NewMemoryManager()
//	idx, _ := gomam.Open(mgr, gomam.KindMM, distance.Euclidean, codec.Codec[[]float64](codec.Float64Vector{}))
//	defer idx.Close()
//
//	_ = idx.Add(ctx, []float64{1, 2})
//	res, _ := idx.RangeQuery(ctx, []float64{0, 0}, 5)
//	for _, p := range res.Pairs() {
//	    fmt.Println(p.Object, p.Distance)
//	}
//
// # Query Types
//
// Range and k-nearest-neighbour queries are answered by every tree. Point,
// ring and the combined k-and-range, k-or-range and k-ring queries depend on
// the tree; Supports reports what an Index can answer and unsupported
// queries fail with ErrNotSupported.
//
// # Observability
//
// An Index reports every operation to a MetricsCollector and a Logger. Query
// statistics include the distance evaluations and page I/O the query caused.
package gomam
