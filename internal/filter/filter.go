package filter

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ccbench/internal/logging"
	"ccbench/internal/services"
)

// Reasons recorded for dropped lines.
const (
	ReasonInvalidJSON  = "invalid json"
	ReasonMissingVideo = "missing video field"
)

// Decision is the explicit keep/drop verdict for one input line. Dropped
// lines carry a reason so removals are inspectable instead of only printed.
type Decision struct {
	Index  int
	Kept   bool
	Reason string
}

// Summary aggregates one filter pass.
type Summary struct {
	Input   int
	Kept    int
	Dropped int
	Drops   []Decision
}

// Options configures a filter pass.
type Options struct {
	InputPath  string
	OutputPath string
	NumWorkers int
}

// Check inspects one JSONL line. A parseable object with a non-empty video
// field is kept; records from the tvqa subset are always kept regardless of
// the field's value.
func Check(index int, line string) Decision {
	var payload struct {
		Video *string `json:"video"`
	}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return Decision{Index: index, Reason: ReasonInvalidJSON}
	}
	if payload.Video != nil && strings.Contains(*payload.Video, "tvqa") {
		return Decision{Index: index, Kept: true}
	}
	if payload.Video == nil || *payload.Video == "" {
		return Decision{Index: index, Reason: ReasonMissingVideo}
	}
	return Decision{Index: index, Kept: true}
}

// Run reads every input line, evaluates Check on a bounded worker pool, and
// writes surviving lines to the output in their original order. Workers
// share only the immutable input slice and their own slots of the decision
// slice, so no locking is needed beyond the final wait.
func Run(ctx context.Context, logger *slog.Logger, opts Options) (Summary, error) {
	logger = logging.WithComponent(logger, "filter")
	summary := Summary{}

	if opts.NumWorkers < 1 {
		return summary, services.Wrap(services.ErrConfiguration, "filter", "run", "num_workers must be at least 1", nil)
	}

	lines, err := readLines(opts.InputPath)
	if err != nil {
		return summary, err
	}
	summary.Input = len(lines)

	decisions := make([]Decision, len(lines))
	indices := make(chan int)

	var wg sync.WaitGroup
	workers := opts.NumWorkers
	if workers > len(lines) && len(lines) > 0 {
		workers = len(lines)
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for idx := range indices {
				decisions[idx] = Check(idx, lines[idx])
			}
		}()
	}

feed:
	for idx := range lines {
		select {
		case <-ctx.Done():
			break feed
		case indices <- idx:
		}
	}
	close(indices)
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	for _, decision := range decisions {
		if decision.Kept {
			summary.Kept++
			continue
		}
		summary.Dropped++
		summary.Drops = append(summary.Drops, decision)
		logger.Warn("record dropped",
			logging.Int("line", decision.Index),
			logging.String("reason", decision.Reason),
		)
	}

	if err := writeKept(opts.OutputPath, lines, decisions); err != nil {
		return summary, err
	}

	logger.Info("filter complete",
		logging.Int("input", summary.Input),
		logging.Int("kept", summary.Kept),
		logging.Int("dropped", summary.Dropped),
	)
	return summary, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "filter", "read", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrTransient, "filter", "read", path, err)
	}
	return lines, nil
}

func writeKept(path string, lines []string, decisions []Decision) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".filter-*.jsonl.tmp")
	if err != nil {
		return services.Wrap(services.ErrTransient, "filter", "write", "create temp file", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	writer := bufio.NewWriter(tmp)
	for idx, decision := range decisions {
		if !decision.Kept {
			continue
		}
		if _, err := writer.WriteString(lines[idx]); err != nil {
			return services.Wrap(services.ErrTransient, "filter", "write", "write line", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return services.Wrap(services.ErrTransient, "filter", "write", "write line", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return services.Wrap(services.ErrTransient, "filter", "write", "flush output", err)
	}
	if err := tmp.Close(); err != nil {
		return services.Wrap(services.ErrTransient, "filter", "write", "close output", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return services.Wrap(services.ErrTransient, "filter", "write", "publish output", err)
	}
	return nil
}
