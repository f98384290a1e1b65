package ledger

// Column names of the ledger schema. Load, Update and Persist all go through
// this single definition; a write path that drops one of these is a bug, not
// a formatting choice.
const (
	ColTitle      = "Job Title"
	ColCompany    = "Company"
	ColLocation   = "Location"
	ColExperience = "Experience Required"
	ColURL        = "Job URL"
	ColSource     = "Source"
	ColReady      = "Ready to Apply"
	ColApplied    = "Applied"
	ColAppliedAt  = "Applied Date"
	ColMethod     = "Application Method"
	ColError      = "Application Error"
	ColStatus     = "Status"

	// Upstream-owned inputs; recognized for selection filters but never written.
	ColPriority   = "Priority Score"
	ColPostedDays = "Days Since Posted"
	ColSkillsPct  = "Skills Match %"
)

// RequiredColumns must all be present in the ledger header. Everything else
// in the file is passed through unchanged.
func RequiredColumns() []string {
	return []string{
		ColTitle,
		ColCompany,
		ColLocation,
		ColExperience,
		ColURL,
		ColSource,
		ColReady,
		ColApplied,
		ColAppliedAt,
		ColMethod,
		ColError,
		ColStatus,
	}
}

// OwnedColumns are the columns this engine is allowed to mutate. Ready to
// Apply is deliberately absent: only an external collaborator flips it.
func OwnedColumns() []string {
	return []string{ColApplied, ColAppliedAt, ColMethod, ColError, ColStatus}
}

func recognized(name string) bool {
	switch name {
	case ColTitle, ColCompany, ColLocation, ColExperience, ColURL, ColSource,
		ColReady, ColApplied, ColAppliedAt, ColMethod, ColError, ColStatus,
		ColPriority, ColPostedDays, ColSkillsPct:
		return true
	}
	return false
}
