package report

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autoapply/internal/domain/job"
)

func TestSummaryCount(t *testing.T) {
	var s Summary
	for _, st := range []job.Status{
		job.StatusApplied, job.StatusApplied,
		job.StatusFailed,
		job.StatusSkipped,
		job.StatusNeedsManualCheck,
	} {
		s.Count(st)
	}
	if s.Processed != 5 || s.Applied != 2 || s.Failed != 1 || s.Skipped != 1 || s.NeedsManual != 1 {
		t.Fatalf("unexpected tallies: %+v", s)
	}
}

func TestWriterAppendsAttempts(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	a := job.Attempt{
		ID:         "attempt-1",
		RunID:      "run-1",
		JobID:      "job-1",
		Title:      "Backend Engineer",
		Company:    "Acme",
		Method:     job.MethodAPI,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Success:    true,
	}
	if err := w.Attempt(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Attempt(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Summarize(Summary{RunID: "run-1", Processed: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "applications_*.jsonl"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one daily log file, got %v (%v)", matches, err)
	}
	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var kinds []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			Kind    string `json:"kind"`
			RunID   string `json:"run_id"`
			Company string `json:"company"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("log line is not valid JSON: %v", err)
		}
		if line.RunID != "run-1" {
			t.Fatalf("run id lost: %+v", line)
		}
		kinds = append(kinds, line.Kind)
	}
	want := []string{"attempt", "attempt", "summary"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(kinds))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("line %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestWriterDisabledWithoutDir(t *testing.T) {
	var w *Writer
	if err := w.Attempt(job.Attempt{}); err != nil {
		t.Fatalf("nil writer must be a no-op: %v", err)
	}
	if err := NewWriter("").Summarize(Summary{}); err != nil {
		t.Fatalf("empty dir must be a no-op: %v", err)
	}
}

func TestRender(t *testing.T) {
	out := Render(Summary{Processed: 4, Applied: 2, Failed: 1, NeedsManual: 1, DryRun: true})
	for _, want := range []string{"Total Processed:    4", "Applied:            2", "dry run"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
