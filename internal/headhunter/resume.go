package headhunter

import (
	"context"
	"fmt"
)

type Resumes struct {
	Items []*Resume
}

type Resume struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ResumeDetails keeps the full resume document undecoded, the profile
// mapping picks what it needs.
type ResumeDetails struct {
	ID    string
	Title string
	Raw   map[string]any
}

func (c *Client) GetMineResumes(ctx context.Context) (*Resumes, error) {
	items, err := listAll[*Resume](ctx, c, fmt.Sprintf("%s/resumes/%s", c.APIURL, mineResumID))
	if err != nil {
		return nil, err
	}

	return &Resumes{Items: items}, nil
}

func (r *Resumes) Len() int {
	return len(r.Items)
}

func (r *Resumes) Titles() []string {
	titles := make([]string, 0, len(r.Items))
	for _, v := range r.Items {
		titles = append(titles, v.Title)
	}

	return titles
}

func (r *Resumes) FindByTitle(title string) *Resume {
	for _, resume := range r.Items {
		if resume.Title == title {
			return resume
		}
	}

	return nil
}

func (c *Client) GetResumeDetails(ctx context.Context, id string) (*ResumeDetails, error) {
	if id == "" {
		return nil, fmt.Errorf("resume id is required")
	}

	var raw map[string]any
	if err := c.getJSON(ctx, fmt.Sprintf("%s/resumes/%s", c.APIURL, id), nil, &raw); err != nil {
		return nil, err
	}

	if raw == nil {
		raw = make(map[string]any)
	}

	return &ResumeDetails{
		ID:    valueAsString(raw["id"]),
		Title: valueAsString(raw["title"]),
		Raw:   raw,
	}, nil
}

func valueAsString(v any) string {
	if v == nil {
		return ""
	}

	switch typed := v.(type) {
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
