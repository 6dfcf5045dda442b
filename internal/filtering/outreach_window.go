package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/conversation"
	"github.com/spigell/hh-outreach/internal/eligibility"
)

type outreachWindowFilter struct {
	toggle
}

// NewOutreachWindow creates a filter that removes contacts who got an outbound
// email within the outreach window.
func NewOutreachWindow() Filter {
	return &outreachWindowFilter{}
}

func (f *outreachWindowFilter) Name() string { return "outreach_window" }

func (f *outreachWindowFilter) Validate(*Config) error { return nil }

func (f *outreachWindowFilter) Apply(_ context.Context, deps Deps, c *Contacts) (*Contacts, Step, error) {
	initial := c.Len()

	excluded := c.Exclude(func(contact conversation.Contact) bool {
		return !eligibility.AvailableForOutreach(contact, deps.Histories[contact.ID], deps.Now)
	})
	if len(excluded) > 0 {
		deps.Logger.Info("excluding recently contacted",
			zap.Strings("excluded_contacts", excluded),
			zap.Int("contacts_left", c.Len()),
		)
	}

	return c, Step{Initial: initial, Dropped: len(excluded), Left: c.Len()}, nil
}

func (f *outreachWindowFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"window": eligibility.OutreachWindow.String()},
	}
}
