package job

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
)

// Status is the terminal application state of a ledger record. A record
// starts as StatusNotApplied and, once processed in a run, holds exactly
// one of the other values until an external reset of Ready to Apply.
type Status string

const (
	StatusNotApplied       Status = "Not Applied"
	StatusApplied          Status = "Applied"
	StatusFailed           Status = "Failed"
	StatusSkipped          Status = "Skipped"
	StatusNeedsManualCheck Status = "Needs Manual Check"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusApplied, StatusFailed, StatusSkipped, StatusNeedsManualCheck:
		return true
	}
	return false
}

// Method is the submission strategy recorded on a ledger row.
type Method string

const (
	MethodNone    Method = ""
	MethodAPI     Method = "API"
	MethodBrowser Method = "Browser Automation"
	MethodManual  Method = "Manual"
)

// TriState models the Ready to Apply column: an upstream collaborator may
// leave it unset, in which case the record is not eligible.
type TriState int

const (
	TriUnset TriState = iota
	TriYes
	TriNo
)

func ParseTriState(raw string) TriState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "y":
		return TriYes
	case "no", "false", "0", "n":
		return TriNo
	}
	return TriUnset
}

func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

// Record is the typed view of one ledger row. Columns this engine does not
// own round-trip through Extra untouched.
type Record struct {
	Title      string
	Company    string
	Location   string
	Experience string
	URL        string
	Source     string

	PriorityScore float64
	FreshnessDays int
	SkillsMatch   float64

	ReadyToApply     TriState
	Applied          bool
	AppliedDate      string
	Method           Method
	ApplicationError string
	Status           Status

	// Extra holds every unrecognized column verbatim, keyed by header name.
	Extra map[string]string
}

// Identity is the stable composite key for a record within a run, derived
// from title, company and source URL so divergent rows for the same posting
// never receive duplicate updates.
func (r Record) Identity() string {
	h := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(r.Title)) + "|" +
		strings.ToLower(strings.TrimSpace(r.Company)) + "|" +
		strings.TrimSpace(r.URL)))
	return hex.EncodeToString(h[:])
}

// Eligible reports whether the record is selectable for processing.
func (r Record) Eligible() bool {
	return r.ReadyToApply == TriYes && !r.Applied
}

// Patch is a merge-only partial update of the columns this engine owns.
// Nil fields are left untouched on apply; a patch can never clear a column
// it does not carry.
type Patch struct {
	Applied          *bool
	AppliedDate      *string
	Method           *Method
	ApplicationError *string
	Status           *Status
}

func (p Patch) Apply(r *Record) {
	if r == nil {
		return
	}
	if p.Applied != nil {
		r.Applied = *p.Applied
	}
	if p.AppliedDate != nil {
		r.AppliedDate = *p.AppliedDate
	}
	if p.Method != nil {
		r.Method = *p.Method
	}
	if p.ApplicationError != nil {
		r.ApplicationError = *p.ApplicationError
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
}

// Attempt is the ephemeral trace of one job's processing. It exists for the
// duration of a single dispatch and for the emitted log record; it is never
// persisted to the ledger.
type Attempt struct {
	ID         string
	RunID      string
	JobID      string
	Title      string
	Company    string
	URL        string
	Source     string
	Method     Method
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Category   string
	Detail     string
	Screenshot string
}
