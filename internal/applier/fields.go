package applier

import (
	"strconv"
	"strings"

	"autoapply/internal/domain/job"
	"autoapply/internal/profile"
)

// coverFor expands the profile's cover letter template for one posting.
func coverFor(form profile.FormData, rec job.Record) string {
	text := strings.ReplaceAll(form.CoverTemplate, "[Company]", rec.Company)
	return strings.ReplaceAll(text, "[Position]", rec.Title)
}

// valueForField maps an input's name/id onto a profile value, best effort.
// The second return is false when the field is not something the profile can
// answer (file uploads, consent checkboxes, unrelated inputs).
func valueForField(name string, form profile.FormData, coverLetter string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return "", false
	}

	switch {
	case strings.Contains(n, "email"):
		return form.Email, true
	case strings.Contains(n, "first") && strings.Contains(n, "name"):
		return form.FirstName, true
	case strings.Contains(n, "last") && strings.Contains(n, "name"):
		return form.LastName, true
	case strings.Contains(n, "fullname") || strings.Contains(n, "full_name") || strings.Contains(n, "full-name"):
		return form.FullName, true
	case strings.Contains(n, "phone") || strings.Contains(n, "tel") || strings.Contains(n, "mobile"):
		return form.Phone, true
	case strings.Contains(n, "linkedin"):
		return form.LinkedIn, true
	case strings.Contains(n, "github") || strings.Contains(n, "portfolio") || strings.Contains(n, "website"):
		return form.GitHub, true
	case strings.Contains(n, "location") || strings.Contains(n, "city"):
		return form.Location, true
	case strings.Contains(n, "cover") || strings.Contains(n, "letter") || strings.Contains(n, "message") || strings.Contains(n, "motivation"):
		return coverLetter, true
	case strings.Contains(n, "resume") || strings.Contains(n, "cv"):
		// File uploads are handled separately by the browser path.
		return "", false
	case strings.Contains(n, "experience") || strings.Contains(n, "years"):
		return strconv.FormatFloat(form.YearsOfExp, 'f', -1, 64), true
	case strings.Contains(n, "skill"):
		return form.Skills, true
	case strings.Contains(n, "name"):
		return form.FullName, true
	}
	return "", false
}
