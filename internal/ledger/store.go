package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"autoapply/internal/domain/job"
)

var (
	ErrSchema   = errors.New("ledger schema violation")
	ErrNotFound = errors.New("record not found")
)

// Filters are the optional eligibility refinements. A record missing the
// backing column for a filter passes that filter; the columns are
// upstream-owned and may legitimately be absent.
type Filters struct {
	MinPriority    *float64
	MaxAgeDays     *int
	MinSkillsMatch *float64
}

// Store holds the full ledger in memory between Load and Persist. Raw rows
// are the source of truth so unrecognized columns survive a rewrite
// byte-for-byte in content. The header is kept in two forms: the raw cells
// as loaded, written back verbatim, and the trimmed names used for schema
// checks and row keying.
type Store struct {
	path   string
	header []string
	keys   []string
	rows   []map[string]string
	byID   map[string][]int
}

func NewStore(path string) *Store {
	return &Store{path: path, byID: map[string][]int{}}
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load reads the whole ledger. The header order and every column, owned or
// not, are preserved for Persist.
func (s *Store) Load() error {
	if s == nil {
		return fmt.Errorf("nil store")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	recs, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}
	if len(recs) == 0 {
		return fmt.Errorf("%w: empty file, header required", ErrSchema)
	}

	keys := make([]string, len(recs[0]))
	for i, h := range recs[0] {
		keys[i] = strings.TrimSpace(h)
	}

	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	var missing []string
	for _, req := range RequiredColumns() {
		if !seen[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrSchema, strings.Join(missing, ", "))
	}

	s.header = recs[0]
	s.keys = keys
	s.rows = make([]map[string]string, 0, len(recs)-1)
	s.byID = map[string][]int{}

	for _, rec := range recs[1:] {
		row := make(map[string]string, len(keys))
		for i, k := range keys {
			if i < len(rec) {
				row[k] = rec[i]
			} else {
				row[k] = ""
			}
		}
		idx := len(s.rows)
		s.rows = append(s.rows, row)
		id := recordFromRow(row).Identity()
		s.byID[id] = append(s.byID[id], idx)
	}
	return nil
}

// Records returns a typed view of every row in original ledger order.
func (s *Store) Records() []job.Record {
	if s == nil {
		return nil
	}
	out := make([]job.Record, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, recordFromRow(row))
	}
	return out
}

// SelectEligible returns records with Ready to Apply set and Applied unset,
// refined by the optional filters, in original ledger order. Selection never
// re-sorts; prioritization is an upstream concern. Duplicate identities are
// collapsed to their first occurrence so one posting cannot be processed
// twice in a run. max <= 0 means no limit.
func (s *Store) SelectEligible(max int, f Filters) []job.Record {
	if s == nil {
		return nil
	}
	var out []job.Record
	picked := map[string]bool{}
	for _, row := range s.rows {
		rec := recordFromRow(row)
		if !rec.Eligible() {
			continue
		}
		if !passes(row, rec, f) {
			continue
		}
		id := rec.Identity()
		if picked[id] {
			continue
		}
		picked[id] = true
		out = append(out, rec)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

func passes(row map[string]string, rec job.Record, f Filters) bool {
	if f.MinPriority != nil {
		if raw, ok := row[ColPriority]; ok && strings.TrimSpace(raw) != "" {
			if rec.PriorityScore < *f.MinPriority {
				return false
			}
		}
	}
	if f.MaxAgeDays != nil {
		if raw, ok := row[ColPostedDays]; ok && strings.TrimSpace(raw) != "" {
			if rec.FreshnessDays > *f.MaxAgeDays {
				return false
			}
		}
	}
	if f.MinSkillsMatch != nil {
		if raw, ok := row[ColSkillsPct]; ok && strings.TrimSpace(raw) != "" {
			if rec.SkillsMatch < *f.MinSkillsMatch {
				return false
			}
		}
	}
	return true
}

// Update merges a partial field set into every in-memory row carrying the
// identity. Fields absent from the patch are never touched, and columns not
// owned by this engine are never written at all.
func (s *Store) Update(identity string, patch job.Patch) error {
	if s == nil {
		return fmt.Errorf("nil store")
	}
	idxs, ok := s.byID[identity]
	if !ok || len(idxs) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	for _, i := range idxs {
		row := s.rows[i]
		if patch.Applied != nil {
			if *patch.Applied {
				row[ColApplied] = "Yes"
			} else {
				row[ColApplied] = "No"
			}
		}
		if patch.AppliedDate != nil {
			row[ColAppliedAt] = *patch.AppliedDate
		}
		if patch.Method != nil {
			row[ColMethod] = string(*patch.Method)
		}
		if patch.ApplicationError != nil {
			row[ColError] = *patch.ApplicationError
		}
		if patch.Status != nil {
			row[ColStatus] = string(*patch.Status)
		}
	}
	return nil
}

// Get returns the typed record for an identity.
func (s *Store) Get(identity string) (job.Record, error) {
	if s == nil {
		return job.Record{}, fmt.Errorf("nil store")
	}
	idxs, ok := s.byID[identity]
	if !ok || len(idxs) == 0 {
		return job.Record{}, fmt.Errorf("%w: %s", ErrNotFound, identity)
	}
	return recordFromRow(s.rows[idxs[0]]), nil
}

// Persist atomically rewrites the whole ledger: every column of every row,
// including rows untouched this run, in the loaded header order. The write
// goes to a temp file in the same directory and is renamed over the original
// so a crash mid-write cannot truncate the ledger.
func (s *Store) Persist() error {
	if s == nil {
		return fmt.Errorf("nil store")
	}
	if len(s.header) == 0 {
		return fmt.Errorf("%w: persist before load", ErrSchema)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(s.header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(s.keys))
	for _, row := range s.rows {
		for i, k := range s.keys {
			line[i] = row[k]
		}
		if err := w.Write(line); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func recordFromRow(row map[string]string) job.Record {
	rec := job.Record{
		Title:            row[ColTitle],
		Company:          row[ColCompany],
		Location:         row[ColLocation],
		Experience:       row[ColExperience],
		URL:              strings.TrimSpace(row[ColURL]),
		Source:           row[ColSource],
		ReadyToApply:     job.ParseTriState(row[ColReady]),
		Applied:          job.ParseBool(row[ColApplied]),
		AppliedDate:      row[ColAppliedAt],
		Method:           job.Method(strings.TrimSpace(row[ColMethod])),
		ApplicationError: row[ColError],
	}

	status := strings.TrimSpace(row[ColStatus])
	if status == "" {
		rec.Status = job.StatusNotApplied
	} else {
		rec.Status = job.Status(status)
	}

	if v, err := strconv.ParseFloat(strings.TrimSpace(row[ColPriority]), 64); err == nil {
		rec.PriorityScore = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(row[ColPostedDays])); err == nil {
		rec.FreshnessDays = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(row[ColSkillsPct]), "%"), 64); err == nil {
		rec.SkillsMatch = v
	}

	for name, val := range row {
		if recognized(name) {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = map[string]string{}
		}
		rec.Extra[name] = val
	}
	return rec
}
