// Package profile computes how complete the user's job-search profile is.
// The profile itself belongs to a profile store; this package only reads it.
package profile

import (
	"context"
	"math"
	"strings"
)

// MinimumCompletion is the completion percentage required before any email
// can be sent.
const MinimumCompletion = 85.0

// Profile is a snapshot of the user's job-search profile.
type Profile struct {
	FullName    string   `json:"full_name" mapstructure:"full-name"`
	Email       string   `json:"email" mapstructure:"email"`
	Phone       string   `json:"phone,omitempty" mapstructure:"phone"`
	Location    string   `json:"location,omitempty" mapstructure:"location"`
	Headline    string   `json:"headline,omitempty" mapstructure:"headline"`
	Summary     string   `json:"summary,omitempty" mapstructure:"summary"`
	Skills      []string `json:"skills,omitempty" mapstructure:"skills"`
	Experience  []string `json:"experience,omitempty" mapstructure:"experience"`
	Education   []string `json:"education,omitempty" mapstructure:"education"`
	TargetRoles []string `json:"target_roles,omitempty" mapstructure:"target-roles"`
	LinkedIn    string   `json:"linkedin,omitempty" mapstructure:"linkedin"`
	ResumeURL   string   `json:"resume_url,omitempty" mapstructure:"resume-url"`
}

// Source reads the current profile.
type Source interface {
	Profile(ctx context.Context) (*Profile, error)
}

// Gate is the computed completion of a profile.
type Gate struct {
	Percentage float64  `json:"percentage"`
	Missing    []string `json:"missing"`
}

// Passed reports whether the gate allows sending with the given threshold.
func (g Gate) Passed(threshold float64) bool {
	return g.Percentage >= threshold
}

type field struct {
	name   string
	weight float64
	filled func(p *Profile) bool
}

func text(get func(p *Profile) string) func(p *Profile) bool {
	return func(p *Profile) bool { return strings.TrimSpace(get(p)) != "" }
}

func list(get func(p *Profile) []string) func(p *Profile) bool {
	return func(p *Profile) bool {
		for _, v := range get(p) {
			if strings.TrimSpace(v) != "" {
				return true
			}
		}
		return false
	}
}

// fields are ordered by importance; weights add up to 100.
var fields = []field{
	{"full name", 15, text(func(p *Profile) string { return p.FullName })},
	{"email", 15, text(func(p *Profile) string { return p.Email })},
	{"headline", 10, text(func(p *Profile) string { return p.Headline })},
	{"skills", 10, list(func(p *Profile) []string { return p.Skills })},
	{"experience", 10, list(func(p *Profile) []string { return p.Experience })},
	{"summary", 10, text(func(p *Profile) string { return p.Summary })},
	{"target roles", 10, list(func(p *Profile) []string { return p.TargetRoles })},
	{"location", 5, text(func(p *Profile) string { return p.Location })},
	{"education", 5, list(func(p *Profile) []string { return p.Education })},
	{"phone", 4, text(func(p *Profile) string { return p.Phone })},
	{"linkedin", 3, text(func(p *Profile) string { return p.LinkedIn })},
	{"resume url", 3, text(func(p *Profile) string { return p.ResumeURL })},
}

// Completion computes the gate for p. A nil profile is 0% complete.
func Completion(p *Profile) Gate {
	gate := Gate{Missing: make([]string, 0)}
	if p == nil {
		p = &Profile{}
	}

	var total, filled float64
	for _, f := range fields {
		total += f.weight
		if f.filled(p) {
			filled += f.weight
			continue
		}
		gate.Missing = append(gate.Missing, f.name)
	}

	gate.Percentage = math.Round(filled/total*1000) / 10
	return gate
}

// Static serves a fixed profile.
type Static struct {
	P *Profile
}

func (s Static) Profile(context.Context) (*Profile, error) {
	return s.P, nil
}
