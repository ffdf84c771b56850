// Package dataset reads the benchmark split the harness evaluates against.
//
// The split is a JSONL snapshot, one record per line, indexable by position.
// Fetch caches a remote snapshot on first use; hosting or re-deriving the
// dataset itself is out of scope.
package dataset
