package ledger

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autoapply/internal/domain/job"
)

var testHeader = []string{
	"Job Title", "Company", "Location", "Experience Required", "Job URL",
	"Posted Date", "Source", "Priority Score", "Days Since Posted",
	"Skills Match %", "Ready to Apply", "Applied", "Applied Date",
	"Application Method", "Application Error", "Status", "Notes",
}

func writeFixture(t *testing.T, rows [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(testHeader); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func row(title, company, url, source, priority, days, skills, ready, applied, status string) []string {
	return []string{
		title, company, "Remote", "2+ years", url,
		"2026-08-01", source, priority, days,
		skills, ready, applied, "",
		"", "", status, "keep me",
	}
}

func TestLoadSchemaError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("Job Title,Company\na,b\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewStore(path)
	err := s.Load()
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if !strings.Contains(err.Error(), "Job URL") {
		t.Fatalf("error should name missing columns, got %v", err)
	}
}

func TestRoundTripFidelity(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("Backend Engineer", "Acme", "https://remoteok.io/jobs/1", "RemoteOK", "87.5", "2", "91", "Yes", "No", ""),
		row("SRE", "Globex", "https://weworkremotely.com/jobs/2", "WeWorkRemotely", "", "", "", "", "No", "Not Applied"),
	})

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	got, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reread: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(got))
	}
	for i, h := range testHeader {
		if got[0][i] != h {
			t.Fatalf("header column %d changed: %q vs %q", i, got[0][i], h)
		}
	}
	if got[1][16] != "keep me" {
		t.Fatalf("unrecognized Notes column lost: %q", got[1][16])
	}
	if got[1][5] != "2026-08-01" {
		t.Fatalf("unrecognized Posted Date column lost: %q", got[1][5])
	}
}

func TestPersistPreservesHeaderPadding(t *testing.T) {
	padded := make([]string, len(testHeader))
	copy(padded, testHeader)
	padded[0] = " Job Title"
	padded[1] = "Company "

	path := filepath.Join(t.TempDir(), "jobs.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(padded); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if err := w.Write(row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", "")); err != nil {
		t.Fatalf("write row: %v", err)
	}
	w.Flush()
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load with padded header: %v", err)
	}
	if got := s.SelectEligible(0, Filters{}); len(got) != 1 || got[0].Title != "A" {
		t.Fatalf("padded header broke row keying: %+v", got)
	}
	if err := s.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer rf.Close()
	got, err := csv.NewReader(rf).ReadAll()
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if got[0][0] != " Job Title" || got[0][1] != "Company " {
		t.Fatalf("header padding normalized on rewrite: %q, %q", got[0][0], got[0][1])
	}
	if got[1][0] != "A" {
		t.Fatalf("row content lost: %q", got[1][0])
	}
}

func TestSelectEligibleInvariant(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", ""),
		row("B", "C2", "https://x.io/2", "RemoteOK", "99", "1", "50", "No", "No", ""),
		row("C", "C3", "https://x.io/3", "RemoteOK", "50", "1", "50", "Yes", "Yes", "Applied"),
		row("D", "C4", "https://x.io/4", "RemoteOK", "70", "1", "50", "", "No", ""),
		row("E", "C5", "https://x.io/5", "RemoteOK", "5", "1", "50", "Yes", "No", ""),
	})

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := s.SelectEligible(0, Filters{})
	if len(got) != 2 {
		t.Fatalf("expected 2 eligible, got %d", len(got))
	}
	// Original ledger order, no re-sort by priority.
	if got[0].Title != "A" || got[1].Title != "E" {
		t.Fatalf("selection re-ordered: %s, %s", got[0].Title, got[1].Title)
	}

	capped := s.SelectEligible(1, Filters{})
	if len(capped) != 1 || capped[0].Title != "A" {
		t.Fatalf("maxCount truncation wrong: %+v", capped)
	}
}

func TestSelectEligibleFilters(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("Low", "C1", "https://x.io/1", "RemoteOK", "20", "3", "40", "Yes", "No", ""),
		row("High", "C2", "https://x.io/2", "RemoteOK", "90", "10", "95", "Yes", "No", ""),
		row("Blank", "C3", "https://x.io/3", "RemoteOK", "", "", "", "Yes", "No", ""),
	})

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	minP := 50.0
	got := s.SelectEligible(0, Filters{MinPriority: &minP})
	if len(got) != 2 {
		t.Fatalf("min priority: expected High + Blank (no value passes), got %d", len(got))
	}

	maxAge := 5
	got = s.SelectEligible(0, Filters{MaxAgeDays: &maxAge})
	if len(got) != 2 {
		t.Fatalf("max age: expected Low + Blank, got %d", len(got))
	}

	minSkills := 50.0
	got = s.SelectEligible(0, Filters{MinSkillsMatch: &minSkills})
	if len(got) != 2 {
		t.Fatalf("min skills: expected High + Blank, got %d", len(got))
	}
}

func TestUpdateNeverClearsOtherFields(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", ""),
		row("B", "C2", "https://x.io/2", "RemoteOK", "20", "2", "60", "Yes", "No", ""),
	})

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	target := s.SelectEligible(1, Filters{})[0]
	status := job.StatusFailed
	if err := s.Update(target.Identity(), job.Patch{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Historical regression: a partial write used to clear Ready to Apply.
	got, err := s.Get(target.Identity())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReadyToApply != job.TriYes {
		t.Fatalf("Ready to Apply was cleared by a partial update")
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("status not applied: %s", got.Status)
	}
	if got.Applied {
		t.Fatalf("Applied flipped by a status-only patch")
	}

	other := s.Records()[1]
	if other.Status != job.StatusNotApplied || other.ReadyToApply != job.TriYes {
		t.Fatalf("unrelated record mutated: %+v", other)
	}
}

func TestUpdateUnknownIdentity(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", ""),
	})
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	status := job.StatusFailed
	if err := s.Update("deadbeef", job.Patch{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistWritesAllDefinedColumns(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", ""),
	})
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	applied := true
	date := "2026-08-30 12:00:00"
	method := job.MethodAPI
	noErr := ""
	status := job.StatusApplied
	id := s.Records()[0].Identity()
	if err := s.Update(id, job.Patch{Applied: &applied, AppliedDate: &date, Method: &method, ApplicationError: &noErr, Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}

	reloaded := NewStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	present := map[string]bool{}
	for _, h := range recs[0] {
		present[h] = true
	}
	for _, col := range RequiredColumns() {
		if !present[col] {
			t.Fatalf("defined column %q missing from persisted ledger", col)
		}
	}

	got := reloaded.Records()[0]
	if !got.Applied || got.Status != job.StatusApplied || got.Method != job.MethodAPI {
		t.Fatalf("terminal state lost across persist/load: %+v", got)
	}
	if got.AppliedDate != date {
		t.Fatalf("applied date lost: %q", got.AppliedDate)
	}
	if got.ApplicationError != "" {
		t.Fatalf("applied record must carry empty error, got %q", got.ApplicationError)
	}
}

func TestDuplicateIdentityCollapsed(t *testing.T) {
	path := writeFixture(t, [][]string{
		row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", ""),
		row("A", "C1", "https://x.io/1", "RemoteOK", "10", "1", "50", "Yes", "No", ""),
	})
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := s.SelectEligible(0, Filters{})
	if len(got) != 1 {
		t.Fatalf("duplicate identity selected twice")
	}

	status := job.StatusSkipped
	reason := "duplicate check"
	if err := s.Update(got[0].Identity(), job.Patch{Status: &status, ApplicationError: &reason}); err != nil {
		t.Fatalf("update: %v", err)
	}
	for i, rec := range s.Records() {
		if rec.Status != job.StatusSkipped {
			t.Fatalf("row %d diverged: %s", i, rec.Status)
		}
	}
}
