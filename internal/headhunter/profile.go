package headhunter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/profile"
)

var ErrNoResume = errors.New("no resume found on hh.ru")

// resumeDocument is the part of an hh.ru resume that maps onto a profile.
type resumeDocument struct {
	FirstName    string   `mapstructure:"first_name"`
	LastName     string   `mapstructure:"last_name"`
	Title        string   `mapstructure:"title"`
	Skills       string   `mapstructure:"skills"`
	SkillSet     []string `mapstructure:"skill_set"`
	AlternateURL string   `mapstructure:"alternate_url"`
	Area         struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"area"`
	Contact []struct {
		Type struct {
			ID string `mapstructure:"id"`
		} `mapstructure:"type"`
		Value any `mapstructure:"value"`
	} `mapstructure:"contact"`
	Site []struct {
		Type struct {
			ID string `mapstructure:"id"`
		} `mapstructure:"type"`
		URL string `mapstructure:"url"`
	} `mapstructure:"site"`
	Experience []struct {
		Company  string `mapstructure:"company"`
		Position string `mapstructure:"position"`
		Start    string `mapstructure:"start"`
		End      string `mapstructure:"end"`
	} `mapstructure:"experience"`
	Education struct {
		Primary []struct {
			Name   string `mapstructure:"name"`
			Result string `mapstructure:"result"`
			Year   int    `mapstructure:"year"`
		} `mapstructure:"primary"`
	} `mapstructure:"education"`
	ProfessionalRoles []struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"professional_roles"`
}

// ProfileSource serves the profile from one of the user's hh.ru resumes.
type ProfileSource struct {
	client *Client
	// Title selects the resume; the first resume is used when empty.
	Title string
}

func NewProfileSource(client *Client, title string) *ProfileSource {
	return &ProfileSource{client: client, Title: strings.TrimSpace(title)}
}

// Profile fetches the selected resume and maps it onto a profile.
func (s *ProfileSource) Profile(ctx context.Context) (*profile.Profile, error) {
	resumes, err := s.client.GetMineResumes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}

	if resumes.Len() == 0 {
		return nil, ErrNoResume
	}

	resume := resumes.Items[0]
	if s.Title != "" {
		if resume = resumes.FindByTitle(s.Title); resume == nil {
			return nil, fmt.Errorf("resume %q not found, available: %s", s.Title, strings.Join(resumes.Titles(), ", "))
		}
	}

	details, err := s.client.GetResumeDetails(ctx, resume.ID)
	if err != nil {
		return nil, fmt.Errorf("get resume %s: %w", resume.ID, err)
	}

	s.client.logger.Debug("resume fetched", zap.String("resume_id", details.ID), zap.String("title", details.Title))

	return ProfileFromResume(details)
}

// ProfileFromResume maps resume details onto a profile. Missing sections
// stay empty and show up in the completion gate.
func ProfileFromResume(details *ResumeDetails) (*profile.Profile, error) {
	var doc resumeDocument
	if err := mapstructure.WeakDecode(details.Raw, &doc); err != nil {
		return nil, fmt.Errorf("decode resume: %w", err)
	}

	p := &profile.Profile{
		FullName:  strings.TrimSpace(doc.FirstName + " " + doc.LastName),
		Headline:  strings.TrimSpace(doc.Title),
		Summary:   strings.TrimSpace(doc.Skills),
		Location:  doc.Area.Name,
		ResumeURL: doc.AlternateURL,
	}

	for _, skill := range doc.SkillSet {
		if skill = strings.TrimSpace(skill); skill != "" {
			p.Skills = append(p.Skills, skill)
		}
	}

	for _, c := range doc.Contact {
		switch c.Type.ID {
		case "email":
			p.Email = contactValue(c.Value)
		case "cell", "home", "work":
			if p.Phone == "" {
				p.Phone = contactValue(c.Value)
			}
		}
	}

	for _, site := range doc.Site {
		if site.Type.ID == "linkedin" {
			p.LinkedIn = site.URL
		}
	}

	for _, e := range doc.Experience {
		end := e.End
		if end == "" {
			end = "present"
		}
		p.Experience = append(p.Experience, fmt.Sprintf("%s, %s (%s - %s)", e.Position, e.Company, e.Start, end))
	}

	for _, e := range doc.Education.Primary {
		entry := e.Name
		if e.Result != "" {
			entry += ", " + e.Result
		}
		if e.Year > 0 {
			entry += fmt.Sprintf(" (%d)", e.Year)
		}
		p.Education = append(p.Education, entry)
	}

	for _, r := range doc.ProfessionalRoles {
		p.TargetRoles = append(p.TargetRoles, r.Name)
	}
	if len(p.TargetRoles) == 0 && p.Headline != "" {
		p.TargetRoles = []string{p.Headline}
	}

	return p, nil
}

// contactValue handles both plain string values and phone objects.
func contactValue(v any) string {
	switch typed := v.(type) {
	case map[string]any:
		if formatted, ok := typed["formatted"]; ok {
			return valueAsString(formatted)
		}
		return ""
	default:
		return strings.TrimSpace(valueAsString(v))
	}
}
