package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ccbench/internal/services"
)

// Record is the persisted output for one evaluated example.
type Record struct {
	VideoID string  `json:"video_id"`
	EventID string  `json:"event_id"`
	Begin   float64 `json:"begin"`
	End     float64 `json:"end"`
	Pred    string  `json:"pred"`
}

// Store keeps per-example JSON files under one shard directory. The
// existence of <idx>.json is the resume contract: a present file is a
// finished example and is never reprocessed or rewritten.
type Store struct {
	dir string
}

// ShardDir returns the shard directory for a model under outputDir.
func ShardDir(outputDir, model string) string {
	return filepath.Join(outputDir, filepath.Base(model))
}

// MergedPath returns the JSONL destination for a shard directory.
func MergedPath(shardDir string) string {
	return filepath.Clean(shardDir) + ".jsonl"
}

// Open creates the shard directory if needed and returns a store over it.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "results", "open", "shard directory required", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrTransient, "results", "open", fmt.Sprintf("create shard directory %s", dir), err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the shard directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(idx int) string {
	return filepath.Join(s.dir, strconv.Itoa(idx)+".json")
}

// Exists reports whether the example's output file is already materialized.
// This check is the sole resume primitive of the harness.
func (s *Store) Exists(idx int) bool {
	_, err := os.Stat(s.path(idx))
	return err == nil
}

// Write persists one record via a temp file and rename so a crash mid-write
// never leaves a partial file that Exists would treat as done.
func (s *Store) Write(idx int, record Record) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return services.Wrap(services.ErrValidation, "results", "write", fmt.Sprintf("encode record %d", idx), err)
	}

	tmp, err := os.CreateTemp(s.dir, fmt.Sprintf(".%d-*.json.tmp", idx))
	if err != nil {
		return services.Wrap(services.ErrTransient, "results", "write", "create temp file", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(encoded); err != nil {
		return services.Wrap(services.ErrTransient, "results", "write", fmt.Sprintf("write record %d", idx), err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "results", "write", fmt.Sprintf("close record %d", idx), err)
	}
	if err := os.Rename(tmp.Name(), s.path(idx)); err != nil {
		return services.Wrap(services.ErrTransient, "results", "write", fmt.Sprintf("publish record %d", idx), err)
	}
	return nil
}

// Read loads a previously written record.
func (s *Store) Read(idx int) (Record, error) {
	var record Record
	data, err := os.ReadFile(s.path(idx))
	if err != nil {
		return record, services.Wrap(services.ErrNotFound, "results", "read", fmt.Sprintf("record %d", idx), err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, services.Wrap(services.ErrValidation, "results", "read", fmt.Sprintf("decode record %d", idx), err)
	}
	return record, nil
}

// Indices returns the sorted example indices currently materialized.
func (s *Store) Indices() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "results", "indices", "read shard directory", err)
	}
	var idxs []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	return idxs, nil
}

// MergeSummary reports the outcome of an aggregation pass.
type MergeSummary struct {
	Expected   int
	Produced   int
	Missing    []int
	MergedPath string
	Removed    bool
}

// Complete reports whether every expected example was materialized.
func (m MergeSummary) Complete() bool {
	return m.Produced == m.Expected
}

// Merge concatenates every per-example file into one JSONL file, one compact
// object per line, ascending by index. expected is the dataset size the shard
// directory should cover; when fewer files are present the merge still writes
// the JSONL but leaves the shard directory in place unless force is set, so
// missing examples stay recoverable by a rerun.
func (s *Store) Merge(expected int, force bool) (MergeSummary, error) {
	summary := MergeSummary{Expected: expected, MergedPath: MergedPath(s.dir)}

	idxs, err := s.Indices()
	if err != nil {
		return summary, err
	}
	summary.Produced = len(idxs)
	if expected > 0 {
		present := make(map[int]struct{}, len(idxs))
		for _, idx := range idxs {
			present[idx] = struct{}{}
		}
		for i := 0; i < expected; i++ {
			if _, ok := present[i]; !ok {
				summary.Missing = append(summary.Missing, i)
			}
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(summary.MergedPath), ".merge-*.jsonl.tmp")
	if err != nil {
		return summary, services.Wrap(services.ErrTransient, "results", "merge", "create temp file", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	writer := bufio.NewWriter(tmp)
	for _, idx := range idxs {
		record, err := s.Read(idx)
		if err != nil {
			return summary, err
		}
		line, err := json.Marshal(record)
		if err != nil {
			return summary, services.Wrap(services.ErrValidation, "results", "merge", fmt.Sprintf("encode record %d", idx), err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			return summary, services.Wrap(services.ErrTransient, "results", "merge", "write jsonl", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "results", "merge", "flush jsonl", err)
	}
	if err := tmp.Close(); err != nil {
		return summary, services.Wrap(services.ErrTransient, "results", "merge", "close jsonl", err)
	}
	if err := os.Rename(tmp.Name(), summary.MergedPath); err != nil {
		return summary, services.Wrap(services.ErrTransient, "results", "merge", "publish jsonl", err)
	}

	if summary.Complete() || force {
		if err := os.RemoveAll(s.dir); err != nil {
			return summary, services.Wrap(services.ErrTransient, "results", "merge", "remove shard directory", err)
		}
		summary.Removed = true
	}
	return summary, nil
}
