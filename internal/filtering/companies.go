package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
)

type companiesFilter struct {
	toggle
	companies map[string]struct{}
	names     []string
}

// NewExcludedCompanies creates a filter that removes contacts working at
// companies listed in the config. Names are compared case-insensitively.
func NewExcludedCompanies() Filter {
	return &companiesFilter{}
}

func (f *companiesFilter) Name() string { return "excluded_companies" }

func (f *companiesFilter) Validate(cfg *Config) error {
	f.companies = make(map[string]struct{})
	f.names = nil
	if cfg == nil {
		return nil
	}
	for _, name := range cfg.ExcludeCompanies {
		key := companyKey(name)
		if key == "" {
			continue
		}
		if _, ok := f.companies[key]; !ok {
			f.names = append(f.names, strings.TrimSpace(name))
		}
		f.companies[key] = struct{}{}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, c *Contacts) (*Contacts, Step, error) {
	initial := c.Len()
	if len(f.companies) == 0 {
		return c, Step{Initial: initial, Dropped: 0, Left: c.Len()}, nil
	}

	excluded := c.Exclude(func(contact conversation.Contact) bool {
		_, ok := f.companies[companyKey(contact.Company)]
		return ok
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding contacts by company",
			zap.Strings("excluded_companies", f.names),
			zap.Strings("excluded_contacts", excluded),
			zap.Int("contacts_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["companies"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

func companyKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
