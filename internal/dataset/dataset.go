package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ccbench/internal/services"
)

// Record is one example of the benchmark split. Records are read-only;
// the harness never mutates or writes them back.
type Record struct {
	Video      string  `json:"video"`
	VideoID    string  `json:"video_id"`
	EventID    string  `json:"event_id"`
	Begin      float64 `json:"begin"`
	End        float64 `json:"end"`
	EventTitle string  `json:"event_title"`
	PreASRText string  `json:"preasr_text"`
}

// Split holds the loaded benchmark split with stable, 0-based indexing.
type Split struct {
	records []Record
}

// Len returns the number of records in the split.
func (s *Split) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Record returns the record at idx.
func (s *Split) Record(idx int) (Record, error) {
	if s == nil || idx < 0 || idx >= len(s.records) {
		return Record{}, services.Wrap(services.ErrNotFound, "dataset", "record", fmt.Sprintf("index %d out of range [0,%d)", idx, s.Len()), nil)
	}
	return s.records[idx], nil
}

// Load reads a JSONL snapshot into memory. Blank lines are skipped;
// malformed lines abort the load with the offending line number.
func Load(path string) (*Split, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "dataset", "load", fmt.Sprintf("open snapshot %s", path), err)
	}
	defer file.Close()

	split := &Split{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, services.Wrap(services.ErrValidation, "dataset", "load", fmt.Sprintf("line %d", lineNo), err)
		}
		split.records = append(split.records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "dataset", "load", "scan snapshot", err)
	}
	return split, nil
}

// Fetch downloads the snapshot to cachePath unless a copy already exists.
// The existence check mirrors the result-store resume primitive: a finished
// download is never redone, and the download lands via a temp file rename so
// an interrupted fetch leaves no partial snapshot behind.
func Fetch(ctx context.Context, client *http.Client, url, cachePath string) error {
	if _, err := os.Stat(cachePath); err == nil {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "dataset", "fetch", "build request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "dataset", "fetch", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrExternalTool, "dataset", "fetch", fmt.Sprintf("%s: http %d", url, resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return services.Wrap(services.ErrTransient, "dataset", "fetch", "create cache directory", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(cachePath), ".snapshot-*")
	if err != nil {
		return services.Wrap(services.ErrTransient, "dataset", "fetch", "create temp file", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return services.Wrap(services.ErrTransient, "dataset", "fetch", "stream snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "dataset", "fetch", "close temp file", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		return services.Wrap(services.ErrTransient, "dataset", "fetch", "publish snapshot", err)
	}
	return nil
}
