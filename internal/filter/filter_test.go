package filter_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ccbench/internal/filter"
	"ccbench/internal/logging"
	"ccbench/internal/testsupport"
)

func runFilter(t *testing.T, input string, workers int) (filter.Summary, []string) {
	t.Helper()
	dir := t.TempDir()
	inPath := filepath.Join(dir, "mvbench.jsonl")
	outPath := filepath.Join(dir, "mvbench_video_existed.jsonl")
	testsupport.WriteFile(t, inPath, input)

	summary, err := filter.Run(context.Background(), logging.NewNop(), filter.Options{
		InputPath:  inPath,
		OutputPath: outPath,
		NumWorkers: workers,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	trimmed := strings.TrimSuffix(string(content), "\n")
	if trimmed == "" {
		return summary, nil
	}
	return summary, strings.Split(trimmed, "\n")
}

func TestRunDropsMissingVideo(t *testing.T) {
	input := `{"video":"clips/a.mp4","question":"q1"}
{"question":"no video here"}
{"video":"clips/c.mp4","question":"q3"}
`
	summary, lines := runFilter(t, input, 4)

	if summary.Input != 3 || summary.Kept != 2 || summary.Dropped != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 output lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "q1") || !strings.Contains(lines[1], "q3") {
		t.Fatalf("output order not preserved: %v", lines)
	}
	if summary.Drops[0].Index != 1 || summary.Drops[0].Reason != filter.ReasonMissingVideo {
		t.Fatalf("unexpected drop decision %#v", summary.Drops[0])
	}
}

func TestRunKeepsTVQASubset(t *testing.T) {
	input := `{"video":"tvqa/missing_clip","question":"q1"}
{"video":"","question":"q2"}
`
	summary, lines := runFilter(t, input, 2)

	if summary.Kept != 1 || summary.Dropped != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}
	if len(lines) != 1 || !strings.Contains(lines[0], "tvqa") {
		t.Fatalf("tvqa record should be kept: %v", lines)
	}
}

func TestRunDropsInvalidJSON(t *testing.T) {
	input := `{"video":"clips/a.mp4"}
not json at all
`
	summary, _ := runFilter(t, input, 2)
	if summary.Dropped != 1 || summary.Drops[0].Reason != filter.ReasonInvalidJSON {
		t.Fatalf("unexpected summary %#v", summary)
	}
}

func TestRunPreservesOrderUnderManyWorkers(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, `{"video":"clips/%03d.mp4","n":%d}`+"\n", i, i)
	}
	summary, lines := runFilter(t, b.String(), 16)

	if summary.Kept != 200 {
		t.Fatalf("expected all lines kept, got %#v", summary)
	}
	for i, line := range lines {
		if !strings.Contains(line, fmt.Sprintf(`"n":%d}`, i)) {
			t.Fatalf("line %d out of order: %s", i, line)
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	summary, lines := runFilter(t, "", 4)
	if summary.Input != 0 || len(lines) != 0 {
		t.Fatalf("unexpected result for empty input: %#v %v", summary, lines)
	}
}

func TestCheckDecisions(t *testing.T) {
	cases := []struct {
		name   string
		line   string
		kept   bool
		reason string
	}{
		{"valid", `{"video":"a.mp4"}`, true, ""},
		{"tvqa", `{"video":"frames/tvqa/ep1"}`, true, ""},
		{"missing", `{"other":1}`, false, filter.ReasonMissingVideo},
		{"empty", `{"video":""}`, false, filter.ReasonMissingVideo},
		{"garbage", `{{{`, false, filter.ReasonInvalidJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := filter.Check(0, tc.line)
			if decision.Kept != tc.kept || decision.Reason != tc.reason {
				t.Fatalf("unexpected decision %#v", decision)
			}
		})
	}
}
