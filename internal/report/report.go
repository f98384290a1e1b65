package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoapply/internal/domain/job"
)

// Summary aggregates one run's terminal outcomes.
type Summary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Processed   int       `json:"processed"`
	Applied     int       `json:"applied"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	NeedsManual int       `json:"needs_manual"`
	DryRun      bool      `json:"dry_run,omitempty"`
}

func (s *Summary) Count(status job.Status) {
	if s == nil {
		return
	}
	s.Processed++
	switch status {
	case job.StatusApplied:
		s.Applied++
	case job.StatusFailed:
		s.Failed++
	case job.StatusSkipped:
		s.Skipped++
	case job.StatusNeedsManualCheck:
		s.NeedsManual++
	}
}

// Writer appends one structured record per attempt to a daily JSONL file and
// one summary record per run.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

type attemptRecord struct {
	Kind       string `json:"kind"`
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id"`
	AttemptID  string `json:"attempt_id"`
	JobID      string `json:"job_id"`
	Title      string `json:"title"`
	Company    string `json:"company"`
	URL        string `json:"url"`
	Source     string `json:"source"`
	Method     string `json:"method"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	Success    bool   `json:"success"`
	Category   string `json:"category,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
}

func (w *Writer) Attempt(a job.Attempt) error {
	if w == nil || w.dir == "" {
		return nil
	}
	rec := attemptRecord{
		Kind:       "attempt",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunID:      a.RunID,
		AttemptID:  a.ID,
		JobID:      a.JobID,
		Title:      a.Title,
		Company:    a.Company,
		URL:        a.URL,
		Source:     a.Source,
		Method:     string(a.Method),
		StartedAt:  a.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: a.FinishedAt.UTC().Format(time.RFC3339),
		Success:    a.Success,
		Category:   a.Category,
		Detail:     a.Detail,
		Screenshot: a.Screenshot,
	}
	return w.appendJSON(rec)
}

func (w *Writer) Summarize(s Summary) error {
	if w == nil || w.dir == "" {
		return nil
	}
	return w.appendJSON(struct {
		Kind string `json:"kind"`
		Summary
	}{Kind: "summary", Summary: s})
}

func (w *Writer) appendJSON(v any) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("applications_%s.jsonl", time.Now().UTC().Format("20060102")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open attempt log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append log record: %w", err)
	}
	return nil
}

// Render produces the human-readable run report printed after a run.
func Render(s Summary) string {
	line := strings.Repeat("=", 60)
	b := &strings.Builder{}
	fmt.Fprintln(b, line)
	fmt.Fprintln(b, "Application Report")
	fmt.Fprintln(b, line)
	fmt.Fprintf(b, "Total Processed:    %d\n", s.Processed)
	fmt.Fprintf(b, "Applied:            %d\n", s.Applied)
	fmt.Fprintf(b, "Failed:             %d\n", s.Failed)
	fmt.Fprintf(b, "Skipped:            %d\n", s.Skipped)
	fmt.Fprintf(b, "Needs Manual Check: %d\n", s.NeedsManual)
	if s.DryRun {
		fmt.Fprintln(b, "(dry run: nothing was submitted or persisted)")
	}
	fmt.Fprint(b, line)
	return b.String()
}
