// Package generate drives distributed caption generation over a benchmark
// split.
//
// Work is partitioned by modular striding: worker d of w handles every index
// i with i % w == d, giving disjoint shards whose union covers the split.
// Each worker owns one device-bound engine client and writes only its own
// indices, so the workers need no coordination beyond a final wait. The
// result store's existence check makes interrupted runs resumable.
package generate
