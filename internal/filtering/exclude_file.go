package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
)

// ExcludedContact is one entry of the exclude file. Either field may be set.
type ExcludedContact struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// Excluded is the content of the exclude file.
type Excluded struct {
	Items []ExcludedContact `json:"items"`
}

// LoadExcluded reads the exclude file. A missing or empty file yields an
// empty list.
func LoadExcluded(path string) (*Excluded, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Excluded{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &Excluded{}, nil
	}

	var excluded Excluded
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("parse exclude file %q: %w", path, err)
	}
	return &excluded, nil
}

// Add appends contacts that are not excluded yet.
func (e *Excluded) Add(contacts ...conversation.Contact) int {
	added := 0
	for _, c := range contacts {
		if e.Contains(c) {
			continue
		}
		e.Items = append(e.Items, ExcludedContact{ID: c.ID, Email: conversation.NormalizeAddress(c.Email)})
		added++
	}
	return added
}

// Contains matches by id or by normalized email.
func (e *Excluded) Contains(c conversation.Contact) bool {
	email := conversation.NormalizeAddress(c.Email)
	for _, item := range e.Items {
		if item.ID != "" && item.ID == c.ID {
			return true
		}
		if item.Email != "" && email != "" && conversation.NormalizeAddress(item.Email) == email {
			return true
		}
	}
	return false
}

func (e *Excluded) ToFile(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type excludeFileFilter struct {
	toggle
	path string
}

// NewExcludeFile creates a filter that removes contacts listed in the exclude file.
func NewExcludeFile() Filter {
	return &excludeFileFilter{}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate(cfg *Config) error {
	f.path = ""
	if cfg != nil {
		f.path = strings.TrimSpace(cfg.ExcludeFile)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, c *Contacts) (*Contacts, Step, error) {
	initial := c.Len()
	if f.path == "" {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded, err := LoadExcluded(f.path)
	if err != nil {
		return c, Step{}, fmt.Errorf("getting excluded contacts from file: %w", err)
	}

	removed := c.Exclude(excluded.Contains)
	if len(removed) > 0 {
		deps.Logger.Info("excluding contacts based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_contacts", removed),
			zap.Int("contacts_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(removed), Left: c.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
