package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrInvalid = errors.New("invalid profile")

// Profile is the immutable external input consumed by the appliers. It is
// loaded once per run and never mutated.
type Profile struct {
	PersonalInfo   PersonalInfo        `json:"personal_info"`
	Education      []Education         `json:"education"`
	WorkExperience []Experience        `json:"work_experience"`
	Skills         map[string][]string `json:"skills"`
	Resume         Resume              `json:"resume"`
	CoverLetter    CoverLetter         `json:"cover_letter"`
}

type PersonalInfo struct {
	FullName    string `json:"full_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
	LinkedInURL string `json:"linkedin_url"`
	GitHubURL   string `json:"github_url"`
}

type Education struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	EndDate     string `json:"end_date"`
	GPA         string `json:"gpa"`
}

type Experience struct {
	Position  string `json:"position"`
	Company   string `json:"company"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	IsCurrent bool   `json:"is_current"`
}

type Resume struct {
	FilePath string `json:"file_path"`
}

type CoverLetter struct {
	DefaultTemplate string `json:"default_template"`
}

// Load reads and validates the profile file. A missing or invalid profile is
// a run-fatal condition: nothing is attempted without one.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Profile) validate() error {
	if p == nil {
		return fmt.Errorf("%w: empty profile", ErrInvalid)
	}
	var missing []string
	if strings.TrimSpace(p.PersonalInfo.FullName) == "" {
		missing = append(missing, "personal_info.full_name")
	}
	if strings.TrimSpace(p.PersonalInfo.Email) == "" {
		missing = append(missing, "personal_info.email")
	}
	if strings.TrimSpace(p.PersonalInfo.Phone) == "" {
		missing = append(missing, "personal_info.phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}
	if rp := strings.TrimSpace(p.Resume.FilePath); rp != "" {
		if _, err := os.Stat(rp); err != nil {
			// The resume is optional for form fill; a dangling path is not fatal.
			p.Resume.FilePath = ""
		}
	}
	return nil
}

// FormData is the flattened view the appliers map onto form fields.
type FormData struct {
	FullName   string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	Location   string
	LinkedIn   string
	GitHub     string
	Skills     string
	Experience string
	YearsOfExp float64
	ResumePath string

	// CoverTemplate carries [Company]/[Position] placeholders for the
	// appliers to expand per posting.
	CoverTemplate string
}

func (p *Profile) FormData() FormData {
	if p == nil {
		return FormData{}
	}

	first := strings.TrimSpace(p.PersonalInfo.FirstName)
	last := strings.TrimSpace(p.PersonalInfo.LastName)
	full := strings.TrimSpace(p.PersonalInfo.FullName)
	if first == "" && full != "" {
		parts := strings.Fields(full)
		first = parts[0]
		if last == "" && len(parts) > 1 {
			last = strings.Join(parts[1:], " ")
		}
	}

	var skills []string
	for _, group := range p.Skills {
		skills = append(skills, group...)
	}

	var current string
	for _, exp := range p.WorkExperience {
		if exp.IsCurrent {
			current = exp.Position + " at " + exp.Company
			break
		}
	}
	if current == "" && len(p.WorkExperience) > 0 {
		current = p.WorkExperience[0].Position + " at " + p.WorkExperience[0].Company
	}

	return FormData{
		FullName:   full,
		FirstName:  first,
		LastName:   last,
		Email:      p.PersonalInfo.Email,
		Phone:      p.PersonalInfo.Phone,
		Location:   p.PersonalInfo.Location,
		LinkedIn:   p.PersonalInfo.LinkedInURL,
		GitHub:     p.PersonalInfo.GitHubURL,
		Skills:     strings.Join(skills, ", "),
		Experience: current,
		YearsOfExp: float64(len(p.WorkExperience)),
		ResumePath: p.Resume.FilePath,

		CoverTemplate: p.CoverLetter.DefaultTemplate,
	}
}

// CoverLetterFor fills the template placeholders for one posting.
func (p *Profile) CoverLetterFor(company, position string) string {
	if p == nil {
		return ""
	}
	text := p.CoverLetter.DefaultTemplate
	text = strings.ReplaceAll(text, "[Company]", company)
	text = strings.ReplaceAll(text, "[Position]", position)
	return text
}
