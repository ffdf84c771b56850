// Package results persists per-example generation outputs.
//
// Each example writes exactly one <idx>.json file inside a per-model shard
// directory; the file's existence is the only resume marker the harness
// uses. Writes go through a temp-file rename so interrupted runs never
// publish partial records. Merge folds the directory into a single JSONL
// file and removes it once every expected example is accounted for.
package results
